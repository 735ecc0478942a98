package notes

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jonwraymond/notegate/cache"
)

// Field limits.
const (
	MaxTitleLength    = 100
	MaxImageURLLength = 255
	MaxPageSize       = 100
)

// Note is a stored note.
type Note struct {
	ID        int64      `json:"id"`
	UserID    string     `json:"user_id"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	IsPublic  bool       `json:"is_public"`
	Tags      []string   `json:"tags,omitempty"`
	ImageURL  string     `json:"image_url,omitempty"`
}

// NewNote carries the fields a client may set when creating a note.
type NewNote struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	IsPublic bool     `json:"is_public"`
	Tags     []string `json:"tags,omitempty"`
	ImageURL string   `json:"image_url,omitempty"`
}

// Validate checks required fields and length limits.
func (n NewNote) Validate() error {
	if strings.TrimSpace(n.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidNote)
	}
	if utf8.RuneCountInString(n.Title) > MaxTitleLength {
		return fmt.Errorf("%w: title exceeds %d characters", ErrInvalidNote, MaxTitleLength)
	}
	if strings.TrimSpace(n.Content) == "" {
		return fmt.Errorf("%w: content is required", ErrInvalidNote)
	}
	if len(n.ImageURL) > MaxImageURLLength {
		return fmt.Errorf("%w: image_url exceeds %d characters", ErrInvalidNote, MaxImageURLLength)
	}
	return nil
}

// Page is one page of a note listing.
type Page struct {
	Items       []Note `json:"items"`
	Total       int    `json:"total"`
	Page        int    `json:"page"`
	PageSize    int    `json:"page_size"`
	TotalPages  int    `json:"total_pages"`
	HasNext     bool   `json:"has_next"`
	HasPrev     bool   `json:"has_prev"`
	SearchQuery string `json:"search_query"`
	SortBy      string `json:"sort_by"`
	SortOrder   string `json:"sort_order"`
}

// NewPage assembles a Page for q from the matching items and total count.
func NewPage(items []Note, q cache.Query, total int) *Page {
	if items == nil {
		items = []Note{}
	}
	totalPages := 0
	if q.PageSize > 0 {
		totalPages = (total + q.PageSize - 1) / q.PageSize
	}
	return &Page{
		Items:       items,
		Total:       total,
		Page:        q.Page,
		PageSize:    q.PageSize,
		TotalPages:  totalPages,
		HasNext:     q.Page < totalPages,
		HasPrev:     q.Page > 1,
		SearchQuery: q.Search,
		SortBy:      q.SortBy,
		SortOrder:   q.SortOrder,
	}
}
