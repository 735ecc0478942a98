package admission

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jonwraymond/notegate/auth"
	"github.com/jonwraymond/notegate/ratelimit"
)

// Category classifies an error for clients.
type Category string

const (
	CategoryTokenExpired            Category = auth.CategoryTokenExpired
	CategoryTokenInvalid            Category = auth.CategoryTokenInvalid
	CategoryRateLimitExceeded       Category = "rate_limit_exceeded"
	CategoryCounterStoreUnavailable Category = "counter_store_unavailable"
	CategoryBadRequest              Category = "bad_request"
	CategoryInternal                Category = "internal"
)

// CategoryOf maps an error to its category.
func CategoryOf(err error) Category {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return CategoryTokenExpired
	case errors.Is(err, auth.ErrTokenMalformed), errors.Is(err, auth.ErrMissingCredentials):
		return CategoryTokenInvalid
	case errors.Is(err, ratelimit.ErrRateLimitExceeded):
		return CategoryRateLimitExceeded
	case errors.Is(err, ratelimit.ErrCounterStoreUnavailable):
		return CategoryCounterStoreUnavailable
	default:
		return CategoryInternal
	}
}

// Status returns the HTTP status code for a category.
func (c Category) Status() int {
	switch c {
	case CategoryTokenExpired, CategoryTokenInvalid:
		return http.StatusUnauthorized
	case CategoryRateLimitExceeded:
		return http.StatusTooManyRequests
	case CategoryCounterStoreUnavailable:
		return http.StatusServiceUnavailable
	case CategoryBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// ErrorBody is the JSON body of every error response.
type ErrorBody struct {
	Detail   string   `json:"detail"`
	Category Category `json:"category"`
}

// WriteError writes a JSON error response with the category's status code.
func WriteError(w http.ResponseWriter, category Category, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(category.Status())
	_ = json.NewEncoder(w).Encode(ErrorBody{Detail: detail, Category: category})
}
