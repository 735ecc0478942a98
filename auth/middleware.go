package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jonwraymond/notegate/observe"
)

// Identifier verifies a token for a purpose and returns its identity.
type Identifier interface {
	Identify(token string, purpose Purpose) (*Identity, error)
}

var _ Identifier = (*TokenCodec)(nil)

// Error categories written by RequireBearer.
const (
	CategoryTokenExpired = "token_expired"
	CategoryTokenInvalid = "token_invalid"
)

// Category classifies a token error for clients.
func Category(err error) string {
	if errors.Is(err, ErrTokenExpired) {
		return CategoryTokenExpired
	}
	return CategoryTokenInvalid
}

// ErrorResponse is the JSON body of a rejected request.
type ErrorResponse struct {
	Detail   string `json:"detail"`
	Category string `json:"category"`
}

// RequireConfig configures RequireBearer.
type RequireConfig struct {
	// Identifier verifies tokens. Required.
	Identifier Identifier

	// Purpose the token must carry. Default: PurposeAccess
	Purpose Purpose

	// Logger receives debug entries for rejected tokens.
	Logger observe.Logger
}

// RequireBearer is HTTP middleware that rejects requests without a valid
// bearer token with 401 and stores the token's Identity on the context.
//
// Usage:
//
//	router.Handle("/api/v1/notes", auth.RequireBearer(auth.RequireConfig{Identifier: codec})(notesHandler))
func RequireBearer(cfg RequireConfig) func(http.Handler) http.Handler {
	if cfg.Purpose == "" {
		cfg.Purpose = PurposeAccess
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NopLogger()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeUnauthorized(w, "Not authenticated", CategoryTokenInvalid)
				return
			}

			id, err := cfg.Identifier.Identify(token, cfg.Purpose)
			if err != nil {
				cfg.Logger.Debug(r.Context(), "bearer token rejected",
					observe.F("reason", reason(err)),
					observe.F("path", r.URL.Path),
				)
				detail := "Could not validate credentials"
				if errors.Is(err, ErrTokenExpired) {
					detail = "Token has expired"
				}
				writeUnauthorized(w, detail, Category(err))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, detail, category string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Detail: detail, Category: category})
}
