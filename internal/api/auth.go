package api

import (
	"errors"
	"github.com/Banno/consumer-api-openid-connect-example/internal/auth"
	"github.com/rs/zerolog/log"
	"net/http"
)

// EndpointAuth handles the 'GET /auth' endpoint
func (service *Service) EndpointAuth(writer http.ResponseWriter, request *http.Request) {
	rawToken, err := service.ensureSession(writer, request)
	if err != nil {
		service.writer.WriteInternalError(writer, err)
		return
	}

	redirect, err := service.Flow.Initiate(request.Context(), rawToken, request.URL.Query().Get("returnPath"))
	if err != nil {
		service.writer.WriteInternalError(writer, err)
		return
	}
	http.Redirect(writer, request, redirect, http.StatusFound)
}

// EndpointAuthCallback handles the callback endpoint the identity provider redirects to
func (service *Service) EndpointAuthCallback(writer http.ResponseWriter, request *http.Request) {
	rawToken := rawTokenFrom(request)
	if rawToken == "" {
		log.Warn().Str("kind", "no_session").Msg("received a login callback without a session")
		http.Redirect(writer, request, loginPage, http.StatusFound)
		return
	}

	identity, next, err := service.Flow.Complete(request.Context(), rawToken, request.URL.Query())
	if err != nil {
		log.Warn().Err(err).Str("kind", loginErrorKind(err)).Str("session_id", sessionFrom(request).ID.String()).Msg("login failed")
		http.Redirect(writer, request, loginPage, http.StatusFound)
		return
	}

	log.Info().Str("session_id", sessionFrom(request).ID.String()).Str("subject", identity.Subject()).Msg("user logged in")
	http.Redirect(writer, request, next, http.StatusFound)
}

// EndpointLogout handles the 'GET /logout' endpoint
func (service *Service) EndpointLogout(writer http.ResponseWriter, request *http.Request) {
	if rawToken := rawTokenFrom(request); rawToken != "" {
		if err := service.Sessions.Terminate(request.Context(), rawToken); err != nil {
			service.writer.WriteInternalError(writer, err)
			return
		}
	}
	unsetCookie(writer, cookieNameSession)
	http.Redirect(writer, request, loginPage, http.StatusFound)
}

func loginErrorKind(err error) string {
	switch {
	case errors.Is(err, auth.ErrStateMismatch):
		return "state_mismatch"
	case errors.Is(err, auth.ErrProviderDenied):
		return "provider_denied"
	case errors.Is(err, auth.ErrLoginFailure):
		return "login_failure"
	default:
		return "internal"
	}
}
