package notes

import (
	"context"

	"github.com/jonwraymond/notegate/cache"
)

// QueryService computes a page of notes for a normalized query.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: invalid sort or paging input returns ErrInvalidSort or
//   ErrInvalidPage; anything else is a backend failure.
type QueryService interface {
	ComputePage(ctx context.Context, q cache.Query) (*Page, error)
}

// Writer creates notes.
type Writer interface {
	Create(ctx context.Context, owner string, n NewNote) (*Note, error)
}

// Store is a QueryService that can also create notes.
type Store interface {
	QueryService
	Writer
}

// sortColumns maps accepted sort keys to columns.
var sortColumns = map[string]string{
	"created_at": "n.created_at",
	"updated_at": "n.updated_at",
	"title":      "n.title",
	"id":         "n.id",
}

// ValidateQuery checks paging and sort parameters of a normalized query.
func ValidateQuery(q cache.Query) error {
	if q.Page < 1 {
		return ErrInvalidPage
	}
	if q.PageSize < 1 || q.PageSize > MaxPageSize {
		return ErrInvalidPage
	}
	if _, ok := sortColumns[q.SortBy]; !ok {
		return ErrInvalidSort
	}
	if q.SortOrder != "asc" && q.SortOrder != "desc" {
		return ErrInvalidSort
	}
	return nil
}
