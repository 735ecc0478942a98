package notes

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jonwraymond/notegate/cache"
)

// DBTX is the subset of *sql.DB the notes service needs.
type DBTX interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresService reads and writes notes in Postgres.
type PostgresService struct {
	db  DBTX
	now func() time.Time
}

// NewPostgresService creates a PostgresService over db.
func NewPostgresService(db DBTX) *PostgresService {
	return &PostgresService{db: db, now: time.Now}
}

const (
	pgNoteColumns = `n.id, n.user_id, n.title, n.content, n.created_at, n.updated_at, n.is_public, n.tags, n.image_url`

	pgNoteFrom = ` FROM notes n LEFT JOIN users u ON u.id = n.user_id`

	pgInsertNote = `INSERT INTO notes (user_id, title, content, is_public, tags, image_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING id`
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ComputePage implements QueryService. The query scope selects public
// notes or the notes owned by one subject.
func (s *PostgresService) ComputePage(ctx context.Context, q cache.Query) (*Page, error) {
	q = q.Normalize()
	if err := ValidateQuery(q); err != nil {
		return nil, err
	}

	where, args, err := whereClause(q)
	if err != nil {
		return nil, err
	}

	var total int
	countQuery := `SELECT COUNT(*)` + pgNoteFrom + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count notes: %w", err)
	}

	dir := "DESC"
	if q.SortOrder == "asc" {
		dir = "ASC"
	}
	n := len(args)
	listQuery := `SELECT ` + pgNoteColumns + pgNoteFrom + where +
		` ORDER BY ` + sortColumns[q.SortBy] + ` ` + dir + `, n.id ` + dir +
		` LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	args = append(args, q.PageSize, q.Offset())

	rows, err := s.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]Note, 0, q.PageSize)
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}

	return NewPage(items, q, total), nil
}

func whereClause(q cache.Query) (string, []any, error) {
	var (
		conds []string
		args  []any
	)
	switch cache.ScopeKind(q.Scope) {
	case "public":
		conds = append(conds, `n.is_public = TRUE`)
	case "user":
		owner := strings.TrimPrefix(q.Scope, cache.UserScope(""))
		if owner == "" {
			return "", nil, ErrInvalidScope
		}
		args = append(args, owner)
		conds = append(conds, `n.user_id = $`+strconv.Itoa(len(args)))
	default:
		return "", nil, ErrInvalidScope
	}

	if q.Search != "" {
		args = append(args, "%"+likeEscaper.Replace(q.Search)+"%")
		p := `$` + strconv.Itoa(len(args))
		conds = append(conds, `(n.title ILIKE `+p+` OR n.content ILIKE `+p+` OR n.tags::text ILIKE `+p+
			` OR u.username ILIKE `+p+` OR u.email ILIKE `+p+`)`)
	}
	return ` WHERE ` + strings.Join(conds, ` AND `), args, nil
}

func scanNote(rows *sql.Rows) (Note, error) {
	var (
		n        Note
		updated  sql.NullTime
		tags     []byte
		imageURL sql.NullString
	)
	err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Content, &n.CreatedAt, &updated, &n.IsPublic, &tags, &imageURL)
	if err != nil {
		return Note{}, fmt.Errorf("scan note: %w", err)
	}
	if updated.Valid {
		t := updated.Time
		n.UpdatedAt = &t
	}
	if len(tags) > 0 && string(tags) != "null" {
		if err := json.Unmarshal(tags, &n.Tags); err != nil {
			return Note{}, fmt.Errorf("decode tags: %w", err)
		}
	}
	n.ImageURL = imageURL.String
	return n, nil
}

// Create implements Writer.
func (s *PostgresService) Create(ctx context.Context, owner string, in NewNote) (*Note, error) {
	if owner == "" {
		return nil, fmt.Errorf("%w: owner is required", ErrInvalidNote)
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var tags any
	if len(in.Tags) > 0 {
		b, err := json.Marshal(in.Tags)
		if err != nil {
			return nil, fmt.Errorf("encode tags: %w", err)
		}
		tags = string(b)
	}
	var imageURL any
	if in.ImageURL != "" {
		imageURL = in.ImageURL
	}

	now := s.now().UTC()
	note := &Note{
		UserID:    owner,
		Title:     in.Title,
		Content:   in.Content,
		CreatedAt: now,
		UpdatedAt: &now,
		IsPublic:  in.IsPublic,
		Tags:      in.Tags,
		ImageURL:  in.ImageURL,
	}
	err := s.db.QueryRowContext(ctx, pgInsertNote, owner, in.Title, in.Content, in.IsPublic, tags, imageURL, now).Scan(&note.ID)
	if err != nil {
		return nil, fmt.Errorf("insert note: %w", err)
	}
	return note, nil
}
