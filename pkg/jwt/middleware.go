package jwt

import (
	"net/http"
	"strings"
)

// TokenExtractorFunc pulls the raw token from a request.
type TokenExtractorFunc func(r *http.Request) (string, bool)

// UnauthorizedFunc writes the response for a rejected request.
type UnauthorizedFunc func(w http.ResponseWriter, r *http.Request, err error)

// Middleware authenticates requests with service and stores the token
// subject in the request context. Extractors are tried in order; with none
// given only the Authorization bearer header is read.
func Middleware(service *Service, onUnauthorized UnauthorizedFunc, extractors ...TokenExtractorFunc) func(http.Handler) http.Handler {
	if len(extractors) == 0 {
		extractors = []TokenExtractorFunc{BearerTokenExtractor}
	}
	if onUnauthorized == nil {
		onUnauthorized = func(w http.ResponseWriter, _ *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusUnauthorized)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var token string
			for _, extract := range extractors {
				if t, ok := extract(r); ok {
					token = t
					break
				}
			}
			if token == "" {
				onUnauthorized(w, r, ErrInvalidToken)
				return
			}

			userID, err := service.Subject(token)
			if err != nil {
				onUnauthorized(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), userID)))
		})
	}
}

// BearerTokenExtractor reads "Authorization: Bearer <token>".
func BearerTokenExtractor(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return token, true
}

// QueryTokenExtractor reads the token from a query parameter.
// Browsers cannot set headers on EventSource requests, so the stream
// endpoint accepts this as a fallback.
func QueryTokenExtractor(param string) TokenExtractorFunc {
	return func(r *http.Request) (string, bool) {
		token := r.URL.Query().Get(param)
		return token, token != ""
	}
}
