package api

import (
	"context"
	"errors"
	"github.com/Banno/consumer-api-openid-connect-example/internal/aggregation"
	"github.com/Banno/consumer-api-openid-connect-example/internal/api/schema"
	"github.com/rs/zerolog/log"
	"net/http"
	"time"
)

// EndpointAccountsAndTransactions handles the 'GET /accountsAndTransactions' endpoint
func (service *Service) EndpointAccountsAndTransactions(writer http.ResponseWriter, request *http.Request) {
	identity := sessionFrom(request).Identity
	start := time.Now()

	report, err := service.Orchestrator.Run(request.Context(), identity.Subject(), identity.AccessToken)
	if err != nil {
		var upstreamErr *aggregation.UpstreamError
		switch {
		case errors.Is(err, context.Canceled):
			log.Debug().Str("user_id", identity.Subject()).Msg("client went away during the aggregation")
		case errors.Is(err, aggregation.ErrTimeout):
			log.Warn().Err(err).Str("user_id", identity.Subject()).Msg("aggregation timed out")
			service.writer.WriteErrors(writer, http.StatusGatewayTimeout, schema.ErrUpstreamTimeout)
		case errors.As(err, &upstreamErr):
			log.Warn().Err(err).Str("user_id", identity.Subject()).Msg("aggregation was rejected by the resource API")
			service.writer.WriteErrors(writer, http.StatusBadGateway, schema.ErrUpstream(upstreamErr.Operation, upstreamErr.Status))
		default:
			service.writer.WriteInternalError(writer, err)
		}
		return
	}

	log.Info().Str("user_id", identity.Subject()).Int("accounts", len(report.Accounts)).Dur("took", time.Since(start)).Msg("aggregation finished")
	service.writer.WriteText(writer, report.Text())
}
