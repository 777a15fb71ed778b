package api

import (
	"context"
	"github.com/Banno/consumer-api-openid-connect-example/internal/session"
	"net/http"
	"net/url"
	"time"
)

const (
	cookieNameSession = "session_token"
	loginPage         = "/login.html"
)

type contextKey int

const (
	contextValueSession contextKey = iota
	contextValueRawToken
)

// MiddlewareLoadSession injects the session referenced by the session cookie into the request context if it exists
func (service *Service) MiddlewareLoadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		cookie, err := request.Cookie(cookieNameSession)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(writer, request)
			return
		}

		ses, err := service.Sessions.GetByRawToken(request.Context(), cookie.Value)
		if err != nil {
			service.writer.WriteInternalError(writer, err)
			return
		}
		if ses == nil {
			unsetCookie(writer, cookieNameSession)
			next.ServeHTTP(writer, request)
			return
		}

		ctx := context.WithValue(request.Context(), contextValueSession, ses)
		ctx = context.WithValue(ctx, contextValueRawToken, cookie.Value)
		next.ServeHTTP(writer, request.WithContext(ctx))
	})
}

// MiddlewareRequireIdentity redirects anonymous clients to the login page, remembering the requested path
func (service *Service) MiddlewareRequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if ses := sessionFrom(request); !ses.Authenticated() {
			http.Redirect(writer, request, loginPage+"?returnPath="+url.QueryEscape(request.URL.RequestURI()), http.StatusFound)
			return
		}
		next.ServeHTTP(writer, request)
	})
}

// ensureSession returns the raw token of the request's session, creating a new anonymous session if there is none
func (service *Service) ensureSession(writer http.ResponseWriter, request *http.Request) (string, error) {
	if rawToken, ok := request.Context().Value(contextValueRawToken).(string); ok {
		return rawToken, nil
	}

	expires := time.Now().Add(service.Config.SessionLifetime)
	rawToken, _, err := service.Sessions.Create(request.Context(), expires.Unix())
	if err != nil {
		return "", err
	}
	http.SetCookie(writer, &http.Cookie{
		Name:     cookieNameSession,
		Value:    rawToken,
		Path:     "/",
		Expires:  expires,
		Secure:   service.Config.SessionCookieSecure,
		HttpOnly: true,
		// Lax is required for the cookie to be sent on the redirect back from the identity provider
		SameSite: http.SameSiteLaxMode,
	})
	return rawToken, nil
}

func sessionFrom(request *http.Request) *session.Session {
	ses, _ := request.Context().Value(contextValueSession).(*session.Session)
	return ses
}

func rawTokenFrom(request *http.Request) string {
	rawToken, _ := request.Context().Value(contextValueRawToken).(string)
	return rawToken
}

func unsetCookie(writer http.ResponseWriter, name string) {
	http.SetCookie(writer, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
	})
}
