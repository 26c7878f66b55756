package middleware

import (
	"net/http"
	"time"

	pairAuth "github.com/MrEthical07/pairAuth"
)

// SetPairCookies sets both token cookies after login or registration.
func SetPairCookies(w http.ResponseWriter, policy pairAuth.CookiePolicy, pair pairAuth.TokenPair) {
	http.SetCookie(w, newCookie(policy, policy.AccessName, pair.AccessToken, policy.AccessTTL))
	http.SetCookie(w, newCookie(policy, policy.RefreshName, pair.RefreshToken, policy.RefreshTTL))
}

// SetAccessCookie sets only the access cookie. The refresh cookie is left untouched.
func SetAccessCookie(w http.ResponseWriter, policy pairAuth.CookiePolicy, token string) {
	http.SetCookie(w, newCookie(policy, policy.AccessName, token, policy.AccessTTL))
}

// ClearAuthCookies expires both cookies. Browsers only drop a cookie when Path and Domain
// match the ones it was set with.
func ClearAuthCookies(w http.ResponseWriter, policy pairAuth.CookiePolicy) {
	for _, name := range []string{policy.AccessName, policy.RefreshName} {
		c := newCookie(policy, name, "", 0)
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
		http.SetCookie(w, c)
	}
}

func newCookie(policy pairAuth.CookiePolicy, name, value string, ttl time.Duration) *http.Cookie {
	path := policy.Path
	if path == "" {
		path = "/"
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   policy.Domain,
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   policy.Secure,
		SameSite: policy.SameSite,
	}
}
