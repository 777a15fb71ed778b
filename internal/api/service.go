package api

import (
	"context"
	"embed"
	"errors"
	"github.com/Banno/consumer-api-openid-connect-example/internal/aggregation"
	"github.com/Banno/consumer-api-openid-connect-example/internal/api/schema"
	"github.com/Banno/consumer-api-openid-connect-example/internal/auth"
	"github.com/Banno/consumer-api-openid-connect-example/internal/config"
	"github.com/Banno/consumer-api-openid-connect-example/internal/session"
	"github.com/Banno/consumer-api-openid-connect-example/internal/task"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"
)

//go:embed public
var public embed.FS

var sessionCleanupInterval = time.Minute

// Service represents the browser facing HTTP service
type Service struct {
	server *http.Server

	Config *config.Config

	Sessions     session.Storage
	Flow         *auth.Flow
	Orchestrator *aggregation.Orchestrator

	cleanupTask *task.RepeatingTask
	writer      *schema.Writer
}

// Router builds the HTTP handler serving all endpoints
func (service *Service) Router() http.Handler {
	// Create the HTTP schema writer
	service.writer = &schema.Writer{
		InternalErrorHook: func(err error) {
			log.Error().Err(err).Msg("the HTTP service experienced an unexpected error")
		},
	}

	// Create the HTTP router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.RedirectSlashes)
	router.Use(service.MiddlewareLoadSession)
	router.MethodNotAllowed(func(writer http.ResponseWriter, _ *http.Request) {
		service.writer.WriteErrors(writer, http.StatusMethodNotAllowed, schema.ErrMethodNotAllowed)
	})

	router.Get("/", func(writer http.ResponseWriter, request *http.Request) {
		http.Redirect(writer, request, "/hello", http.StatusFound)
	})

	// Register the OIDC authentication endpoints
	router.Get("/auth", service.EndpointAuth)
	router.Get(service.Config.Environment.RedirectPath(), service.EndpointAuthCallback)
	router.Get("/logout", service.EndpointLogout)

	// Register the endpoints requiring an authenticated session
	router.Group(func(router chi.Router) {
		router.Use(service.MiddlewareRequireIdentity)
		router.Get("/me", service.EndpointMe)
		router.Get("/hello", service.EndpointHello)
		router.Get("/accountsAndTransactions", service.EndpointAccountsAndTransactions)
	})

	// Serve the static pages (i.e. the login page)
	static, _ := fs.Sub(public, "public")
	files := http.FileServer(http.FS(static))
	router.NotFound(func(writer http.ResponseWriter, request *http.Request) {
		name := strings.TrimPrefix(path.Clean(request.URL.Path), "/")
		if info, err := fs.Stat(static, name); name == "" || err != nil || info.IsDir() {
			service.writer.WriteErrors(writer, http.StatusNotFound, schema.ErrNotFound)
			return
		}
		files.ServeHTTP(writer, request)
	})

	return router
}

// Startup starts up the HTTP service.
// Errors raised by the listener after startup are sent to errs.
func (service *Service) Startup(errs chan<- error) {
	// Schedule the task that terminates expired sessions
	service.cleanupTask = task.NewRepeating(func() {
		n, err := service.Sessions.TerminateExpired(context.Background())
		if err != nil {
			log.Error().Err(err).Msg("could not terminate expired sessions")
		} else if n > 0 {
			log.Debug().Int("amount", n).Msg("terminated expired sessions")
		}
	}, sessionCleanupInterval)
	service.cleanupTask.Start()

	// Start up the server
	server := &http.Server{
		Addr:              service.Config.ListenAddress(),
		Handler:           service.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	service.server = server
	go func() {
		var err error
		if service.Config.IsTLS() {
			err = server.ListenAndServeTLS(service.Config.TLSCertFile, service.Config.TLSKeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()
}

// Shutdown gracefully shuts down the HTTP service
func (service *Service) Shutdown() {
	if service.cleanupTask != nil {
		service.cleanupTask.Stop(false)
		service.cleanupTask = nil
	}
	if service.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := service.server.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("the HTTP server did not shut down gracefully")
		}
		service.server = nil
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		wrapped := middleware.NewWrapResponseWriter(writer, request.ProtoMajor)
		start := time.Now()
		defer func() {
			log.Debug().
				Str("request_id", middleware.GetReqID(request.Context())).
				Str("method", request.Method).
				Str("path", request.URL.Path).
				Int("status", wrapped.Status()).
				Dur("took", time.Since(start)).
				Msg("handled request")
		}()
		next.ServeHTTP(wrapped, request)
	})
}
