package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/divinevideo/relay-admin/internal/metrics"
)

// Authenticator verifies the credential carried by a request.
type Authenticator interface {
	Authenticate(r *http.Request) Result
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(r *http.Request) Result

// Authenticate calls f(r).
func (f AuthenticatorFunc) Authenticate(r *http.Request) Result { return f(r) }

// Require returns chi-compatible middleware that rejects requests a fails to
// authenticate with 401 and stores the Result in the context otherwise.
func Require(a Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := a.Authenticate(r)
			if !res.OK {
				metrics.RecordAuthFailure(string(res.Scheme), res.Reason)
				logger.Info("authentication rejected",
					"scheme", res.Scheme,
					"reason", res.Reason,
					"path", r.URL.Path,
				)
				writeUnauthorized(w, res.Reason)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithResult(r.Context(), res)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "invalid_credentials",
		"message": reason,
	})
}
