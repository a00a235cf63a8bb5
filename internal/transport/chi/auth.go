package chi

import (
	"context"
	"net/http"
	"strings"
)

// exemptPaths are routes that bypass authentication (health, metrics).
var exemptPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

type subjectKey struct{}

// ContextWithSubject stores the authenticated subject id.
func ContextWithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey{}, subject)
}

// SubjectFromContext returns the authenticated subject id, or "" if none.
func SubjectFromContext(ctx context.Context) string {
	s, _ := ctx.Value(subjectKey{}).(string)
	return s
}

// BearerAuthMiddleware resolves Bearer tokens to subject ids.
// If tokens is empty, authentication is disabled and every request runs as defaultSubject.
func BearerAuthMiddleware(tokens map[string]string, defaultSubject string) func(http.Handler) http.Handler {
	valid := make(map[string]string, len(tokens))
	for token, subject := range tokens {
		if token != "" && subject != "" {
			valid[token] = subject
		}
	}

	return func(next http.Handler) http.Handler {
		if len(valid) == 0 {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				next.ServeHTTP(w, r.WithContext(ContextWithSubject(r.Context(), defaultSubject)))
			})
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			auth := r.Header.Get("Authorization")
			if auth == "" {
				writeError(w, http.StatusUnauthorized, codeUnauthorized, "missing authorization header")
				return
			}

			const bearerPrefix = "Bearer "
			if !strings.HasPrefix(auth, bearerPrefix) {
				writeError(w, http.StatusUnauthorized, codeUnauthorized, "authorization header must use Bearer scheme")
				return
			}

			subject, ok := valid[auth[len(bearerPrefix):]]
			if !ok {
				writeError(w, http.StatusUnauthorized, codeUnauthorized, "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithSubject(r.Context(), subject)))
		})
	}
}
