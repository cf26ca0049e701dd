package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/vhxnguyen/authgate"
)

type identityContextKey struct{}

// IdentityFromContext returns the identity a guard stored for the request.
func IdentityFromContext(ctx context.Context) (*authgate.Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(*authgate.Identity)
	return id, ok
}

// Require rejects requests that do not carry a valid bearer access token.
// Credential failures become 401; a session store or provider outage becomes
// 503 rather than masquerading as a rejected credential.
func Require(engine *authgate.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				unauthorized(w)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w)
				return
			}

			ctx := requestContext(r)
			id, err := engine.Validate(ctx, token)
			if err != nil {
				if authgate.IsAuthFailure(err) {
					unauthorized(w)
					return
				}
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, identityContextKey{}, id)))
		})
	}
}

// Optional resolves an identity when a valid bearer token is present and
// passes the request through either way. Infrastructure outages still fail
// the request; only credential failures degrade to anonymous.
func Optional(engine *authgate.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestContext(r)

			if engine != nil {
				if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
					id, err := engine.Validate(ctx, token)
					switch {
					case err == nil:
						ctx = context.WithValue(ctx, identityContextKey{}, id)
					case !authgate.IsAuthFailure(err):
						http.Error(w, "service unavailable", http.StatusServiceUnavailable)
						return
					}
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireVerified is Require plus an email-verification check. An
// authenticated but unverified caller gets 403, not 401; the distinction
// tells the client to verify, not to re-login.
func RequireVerified(engine *authgate.Engine) func(http.Handler) http.Handler {
	require := Require(engine)
	return func(next http.Handler) http.Handler {
		return require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, _ := IdentityFromContext(r.Context())
			if !authgate.IsVerified(id) {
				http.Error(w, authgate.ErrEmailUnverified.Error(), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}

// ClientIP extracts the caller's address, trusting proxy headers in the
// order X-Forwarded-For, X-Real-IP, then the socket peer.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if real := strings.TrimSpace(r.Header.Get("X-Real-IP")); real != "" {
		return real
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func requestContext(r *http.Request) context.Context {
	ctx := authgate.WithClientIP(r.Context(), ClientIP(r))
	return authgate.WithUserAgent(ctx, r.Header.Get("User-Agent"))
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
