package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Scope values.
const (
	PublicScope     = "public"
	userScopePrefix = "user:"
	keyPrefix       = "page:"
)

// Query defaults applied by Normalize.
const (
	DefaultPage      = 1
	DefaultPageSize  = 10
	DefaultSortBy    = "created_at"
	DefaultSortOrder = "desc"
)

// UserScope returns the scope holding pages owned by subject.
func UserScope(subject string) string {
	return userScopePrefix + subject
}

// ScopeKind reduces a scope to a low-cardinality label: "public", "user",
// or "other".
func ScopeKind(scope string) string {
	switch {
	case scope == PublicScope:
		return "public"
	case strings.HasPrefix(scope, userScopePrefix):
		return "user"
	default:
		return "other"
	}
}

// Query identifies one page of results.
type Query struct {
	Scope     string `json:"scope"`
	Page      int    `json:"page"`
	PageSize  int    `json:"page_size"`
	Search    string `json:"search"`
	SortBy    string `json:"sort_by"`
	SortOrder string `json:"sort_order"`
}

// Normalize returns q with defaults filled in so that logically identical
// queries compare equal. Search text is trimmed and the sort order is
// lowercased. Out-of-range values are kept for the caller to reject.
func (q Query) Normalize() Query {
	q.Search = strings.TrimSpace(q.Search)
	q.SortBy = strings.TrimSpace(q.SortBy)
	q.SortOrder = strings.ToLower(strings.TrimSpace(q.SortOrder))
	if q.Page == 0 {
		q.Page = DefaultPage
	}
	if q.PageSize == 0 {
		q.PageSize = DefaultPageSize
	}
	if q.SortBy == "" {
		q.SortBy = DefaultSortBy
	}
	if q.SortOrder == "" {
		q.SortOrder = DefaultSortOrder
	}
	return q
}

// Offset returns the row offset of the first item on the page.
func (q Query) Offset() int {
	if q.Page < 1 {
		return 0
	}
	return (q.Page - 1) * q.PageSize
}

// Keyer generates deterministic cache keys from queries.
//
// Contract:
// - Determinism: logically identical queries must produce the same key.
// - Any difference in a normalized parameter must change the key.
// - Concurrency: implementations must be safe for concurrent use.
type Keyer interface {
	Key(q Query) (string, error)
}

// DefaultKeyer generates SHA-256 based cache keys.
type DefaultKeyer struct{}

// NewDefaultKeyer creates a new default keyer.
func NewDefaultKeyer() *DefaultKeyer {
	return &DefaultKeyer{}
}

// Key generates a deterministic cache key.
// Format: page:<quoted scope>:<hex SHA-256 of canonical JSON(query)>
func (k *DefaultKeyer) Key(q Query) (string, error) {
	q = q.Normalize()
	canonical, err := json.Marshal(q)
	if err != nil {
		return "", fmt.Errorf("cache: failed to canonicalize query: %w", err)
	}
	sum := sha256.Sum256(canonical)
	key := ScopePrefix(q.Scope) + hex.EncodeToString(sum[:])
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return key, nil
}

// ScopePrefix returns the prefix shared by every key in scope. Quoting keeps
// a scope containing ':' from matching another scope's prefix.
func ScopePrefix(scope string) string {
	return keyPrefix + strconv.Quote(scope) + ":"
}
