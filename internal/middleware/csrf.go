package middleware

import (
	"errors"
	"log"
	"net/http"
	"net/url"

	"github.com/gorilla/csrf"
	"github.com/gorilla/mux"
	"github.com/gorilla/securecookie"
)

const (
	// CSRFHeader is the request header mutating calls carry the token in.
	CSRFHeader = "X-CSRF-Token"
	// XSRFHeader is accepted in place of CSRFHeader; the storefront sends it.
	XSRFHeader = "X-XSRF-Token"
)

// CSRFKey decodes a configured 32-byte key. An empty value yields a random
// key, which invalidates issued tokens on every restart.
func CSRFKey(configured string) ([]byte, error) {
	if configured == "" {
		log.Printf("[CSRF] No CSRF_AUTH_KEY configured, generating an ephemeral key")
		key := securecookie.GenerateRandomKey(32)
		if key == nil {
			return nil, errors.New("failed to generate csrf key")
		}
		return key, nil
	}
	if len(configured) != 32 {
		return nil, errors.New("CSRF_AUTH_KEY must be exactly 32 bytes")
	}
	return []byte(configured), nil
}

// CSRF rejects unsafe requests that do not carry a valid anti-forgery token.
// allowedOrigin is trusted for cross-origin submissions from the storefront.
// Requests received without TLS are marked as plaintext so the origin check
// compares against http URLs. The token is read from CSRFHeader, or from
// XSRFHeader when the former is absent.
func CSRF(authKey []byte, allowedOrigin string, onError http.Handler) mux.MiddlewareFunc {
	opts := []csrf.Option{
		csrf.Secure(false),
		csrf.Path("/"),
		csrf.RequestHeader(CSRFHeader),
		csrf.ErrorHandler(onError),
	}
	if u, err := url.Parse(allowedOrigin); err == nil && u.Host != "" {
		opts = append(opts, csrf.TrustedOrigins([]string{u.Host}))
	}
	protect := csrf.Protect(authKey, opts...)

	return func(next http.Handler) http.Handler {
		protected := protect(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.TLS == nil {
				r = csrf.PlaintextHTTPRequest(r)
			}
			if r.Header.Get(CSRFHeader) == "" {
				if token := r.Header.Get(XSRFHeader); token != "" {
					r.Header.Set(CSRFHeader, token)
				}
			}
			protected.ServeHTTP(w, r)
		})
	}
}

// CSRFToken returns the token for the current request, or "" when the
// request did not pass through CSRF.
func CSRFToken(r *http.Request) string {
	return csrf.Token(r)
}

// CSRFFailureReason explains why CSRF rejected the request.
func CSRFFailureReason(r *http.Request) error {
	return csrf.FailureReason(r)
}
