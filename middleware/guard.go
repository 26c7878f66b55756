package middleware

import (
	"context"
	"net/http"
	"strings"

	pairAuth "github.com/MrEthical07/pairAuth"
)

type authResultContextKey struct{}

// AuthResultFromContext returns the decision made for this request by Authenticate or
// Optional. The Reason field is internal detail and must not be sent to the client.
func AuthResultFromContext(ctx context.Context) (pairAuth.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(pairAuth.AuthResult)
	return res, ok
}

// Authenticate admits requests that carry a valid access token, or a valid refresh token
// from which a new access token can be minted. On rotation the new access token is set as
// a cookie before the downstream handler runs. Every rejection is the same 401.
func Authenticate(engine *pairAuth.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				WriteUnauthorized(w)
				return
			}

			policy := engine.CookiePolicy()
			res := engine.Authenticate(r.Context(), Credentials(r, policy))
			if !res.Admitted() {
				WriteUnauthorized(w)
				return
			}

			if res.Outcome == pairAuth.OutcomeRotated {
				SetAccessCookie(w, policy, res.AccessToken)
			}

			next.ServeHTTP(w, r.WithContext(withResult(r.Context(), res)))
		})
	}
}

// Optional behaves like Authenticate but lets unauthenticated requests through without a
// principal in the context.
func Optional(engine *pairAuth.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				next.ServeHTTP(w, r)
				return
			}

			policy := engine.CookiePolicy()
			res := engine.Authenticate(r.Context(), Credentials(r, policy))
			if !res.Admitted() {
				next.ServeHTTP(w, r)
				return
			}

			if res.Outcome == pairAuth.OutcomeRotated {
				SetAccessCookie(w, policy, res.AccessToken)
			}

			next.ServeHTTP(w, r.WithContext(withResult(r.Context(), res)))
		})
	}
}

func withResult(ctx context.Context, res pairAuth.AuthResult) context.Context {
	ctx = context.WithValue(ctx, authResultContextKey{}, res)
	return pairAuth.WithPrincipal(ctx, res.Principal)
}

// Credentials extracts the candidate tokens of r. The refresh token is read from its cookie
// only.
func Credentials(r *http.Request, policy pairAuth.CookiePolicy) pairAuth.Credentials {
	var creds pairAuth.Credentials

	if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
		creds.Bearer = token
	}
	if c, err := r.Cookie(policy.AccessName); err == nil {
		creds.AccessCookie = c.Value
	}
	if c, err := r.Cookie(policy.RefreshName); err == nil {
		creds.RefreshCookie = c.Value
	}

	return creds
}

// bearerToken returns everything after "Bearer " untouched. Only an empty remainder counts
// as no header; whitespace is a token that will fail to decode.
func bearerToken(value string) (string, bool) {
	token, found := strings.CutPrefix(value, "Bearer ")
	if !found || token == "" {
		return "", false
	}
	return token, true
}

// UserID returns the authenticated user id, or "" outside an authenticated route.
func UserID(r *http.Request) string {
	p, _ := pairAuth.PrincipalFromContext(r.Context())
	return p.UserID
}

// Email returns the authenticated email, or "" outside an authenticated route.
func Email(r *http.Request) string {
	p, _ := pairAuth.PrincipalFromContext(r.Context())
	return p.Email
}

var unauthorizedBody = []byte(`{"error":"Unauthorized"}` + "\n")

// WriteUnauthorized writes the single 401 response used for every authentication failure.
func WriteUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write(unauthorizedBody)
}
