package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	lambctx "github.com/lamb-project/lamb-core/pkg/lambcore/errors"
)

type contextKey string

const authContextKey contextKey = "lamb_auth_context"

// FromContext extracts the AuthContext a prior middleware attached to ctx.
// Returns nil if none is present (request not authenticated).
func FromContext(ctx context.Context) *AuthContext {
	if ac, ok := ctx.Value(authContextKey).(*AuthContext); ok {
		return ac
	}
	return nil
}

// withAuthContext returns a copy of ctx carrying ac.
func withAuthContext(ctx context.Context, ac *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey, ac)
}

// Middleware extracts the bearer token from the Authorization header,
// resolves it to an AuthContext via Builder, and attaches the result to
// the request context. Every handler downstream of this middleware reads
// the principal from FromContext; no handler decodes a token itself
// (testable property #1).
func Middleware(builder *Builder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if authHeader == "" || !ok {
				writeAuthError(w, lambctx.New(lambctx.Unauthenticated, "missing or malformed Authorization header"))
				return
			}

			authCtx, err := builder.Build(r.Context(), token)
			if err != nil {
				writeAuthError(w, err)
				return
			}

			ctx := withAuthContext(r.Context(), authCtx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeAuthError renders a classified auth error as the §7 JSON error
// envelope, setting the X-Account-Status hint header when the account is
// merely disabled (so clients can distinguish that from a bad token
// without the body needing to be parsed).
func writeAuthError(w http.ResponseWriter, err error) {
	kind := lambctx.KindOf(err)

	status := http.StatusUnauthorized
	switch kind {
	case lambctx.AccountDisabled:
		status = http.StatusForbidden
		w.Header().Set("X-Account-Status", "disabled")
	case lambctx.PermissionDenied:
		status = http.StatusForbidden
	case lambctx.Internal:
		status = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    string(kind),
			"message": safeMessage(err),
		},
	})
}

func safeMessage(err error) string {
	var e *lambctx.Error
	if ok := asLambError(err, &e); ok {
		return e.Message
	}
	return "unauthorized"
}

func asLambError(err error, target **lambctx.Error) bool {
	if e, ok := err.(*lambctx.Error); ok {
		*target = e
		return true
	}
	return false
}

// RequireRole returns middleware that rejects requests whose effective
// role is not in allowed. Must run after Middleware.
func RequireRole(allowed ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := FromContext(r.Context())
			if authCtx == nil {
				writeAuthError(w, lambctx.New(lambctx.Unauthenticated, "authentication required"))
				return
			}
			role := authCtx.effectiveRole()
			for _, a := range allowed {
				if role == a {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeAuthError(w, lambctx.New(lambctx.PermissionDenied, "insufficient role"))
		})
	}
}
