package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"sms-transactions/pkg/logging"
	"sms-transactions/pkg/metrics"

	"go.uber.org/zap"
)

// DefaultRealm is the realm announced in Basic challenges.
const DefaultRealm = "SMS Transaction API"

type contextKey struct{}

// GuardConfig holds configuration for a Guard.
type GuardConfig struct {
	// Realm announced in the WWW-Authenticate header (default: DefaultRealm)
	Realm string

	Metrics metrics.MetricsCollector
	Logger  *logging.Logger
}

// Guard checks Basic credentials against a fixed credential set.
type Guard struct {
	credentials Credentials
	realm       string
	metrics     metrics.MetricsCollector
	logger      *logging.Logger
}

// NewGuard creates a guard for the given credential set.
func NewGuard(credentials Credentials, config GuardConfig) *Guard {
	if config.Realm == "" {
		config.Realm = DefaultRealm
	}
	return &Guard{
		credentials: credentials,
		realm:       config.Realm,
		metrics:     metrics.OrNoOp(config.Metrics),
		logger:      logging.OrNop(config.Logger).Named("auth"),
	}
}

// Authenticate returns the username of a request carrying valid credentials.
func (g *Guard) Authenticate(r *http.Request) (string, error) {
	user, secret, err := ParseBasic(r.Header.Get("Authorization"))
	if err != nil {
		return "", err
	}
	if !g.credentials.Verify(user, secret) {
		return "", ErrInvalidCredentials
	}
	return user, nil
}

// Middleware rejects unauthenticated requests with a Basic challenge.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := g.Authenticate(r)
		if err != nil {
			reason := Reason(err)
			g.metrics.RecordAuthFailure(reason)
			g.logger.Warn("authentication failed",
				zap.String("reason", reason),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
			)
			g.challenge(w)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

func (g *Guard) challenge(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", fmt.Sprintf("Basic realm=%q", g.realm))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":       "Unauthorized - Invalid or missing credentials",
		"message":     "Please provide valid Basic Authentication credentials",
		"status_code": http.StatusUnauthorized,
	})
}

// UserFromContext returns the authenticated username stored by Middleware.
func UserFromContext(ctx context.Context) (string, bool) {
	user, ok := ctx.Value(contextKey{}).(string)
	return user, ok
}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}
