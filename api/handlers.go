package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/jonwraymond/notegate/admission"
	"github.com/jonwraymond/notegate/auth"
	"github.com/jonwraymond/notegate/cache"
	"github.com/jonwraymond/notegate/notes"
	"github.com/jonwraymond/notegate/observe"
)

// maxNoteBody bounds a create request body.
const maxNoteBody = 1 << 20

// TokenResponse is the body of a successful refresh.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// QuotaResponse is the body of the rate-limit status endpoint.
type QuotaResponse struct {
	Identity  string `json:"identity"`
	Limit     int    `json:"limit"`
	Used      int    `json:"used"`
	Remaining int    `json:"remaining"`
	Reset     int64  `json:"reset"`
}

func (s *server) refreshToken(w http.ResponseWriter, r *http.Request) {
	subject := auth.SubjectFromContext(r.Context())
	token, err := s.cfg.Tokens.IssueFor(subject, auth.PurposeAccess, s.cfg.RefreshTTL)
	if err != nil {
		s.internalError(w, r, "token refresh failed", err)
		return
	}
	writeJSON(w, http.StatusOK, TokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (s *server) rateLimitStatus(w http.ResponseWriter, r *http.Request) {
	identity := s.cfg.Resolver.Resolve(r)
	d, err := s.cfg.Quota.Status(r.Context(), identity, s.cfg.Now())
	if err != nil {
		category := admission.CategoryOf(err)
		s.logger.Error(r.Context(), "quota lookup failed",
			observe.F("identity", identity),
			observe.F("error", err),
		)
		admission.WriteError(w, category, "Rate limit service unavailable")
		return
	}
	writeJSON(w, http.StatusOK, QuotaResponse{
		Identity:  identity,
		Limit:     d.Limit,
		Used:      d.Count,
		Remaining: d.Remaining,
		Reset:     d.ResetAt.Unix(),
	})
}

func (s *server) exploreNotes(w http.ResponseWriter, r *http.Request) {
	q, ok := parseQuery(w, r)
	if !ok {
		return
	}
	page, err := s.cfg.Notes.Explore(r.Context(), q)
	if err != nil {
		s.notesError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *server) myNotes(w http.ResponseWriter, r *http.Request) {
	q, ok := parseQuery(w, r)
	if !ok {
		return
	}
	page, err := s.cfg.Notes.Mine(r.Context(), auth.SubjectFromContext(r.Context()), q)
	if err != nil {
		s.notesError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *server) createNote(w http.ResponseWriter, r *http.Request) {
	var in notes.NewNote
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxNoteBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		admission.WriteError(w, admission.CategoryBadRequest, "Invalid request body")
		return
	}
	note, err := s.cfg.Notes.Create(r.Context(), auth.SubjectFromContext(r.Context()), in)
	if err != nil {
		s.notesError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// parseQuery reads listing parameters. Missing values are left zero for
// Normalize to fill in.
func parseQuery(w http.ResponseWriter, r *http.Request) (cache.Query, bool) {
	v := r.URL.Query()
	q := cache.Query{
		Search:    v.Get("search"),
		SortBy:    v.Get("sort_by"),
		SortOrder: v.Get("sort_order"),
	}
	// Older clients send the search text as "query".
	if q.Search == "" {
		q.Search = v.Get("query")
	}
	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"page", &q.Page},
		{"page_size", &q.PageSize},
	} {
		raw := v.Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			admission.WriteError(w, admission.CategoryBadRequest, "Invalid "+p.name)
			return cache.Query{}, false
		}
		*p.dst = n
	}
	return q, true
}

func (s *server) notesError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, notes.ErrInvalidSort):
		admission.WriteError(w, admission.CategoryBadRequest, "Invalid sort parameters")
	case errors.Is(err, notes.ErrInvalidPage):
		admission.WriteError(w, admission.CategoryBadRequest, "Invalid page parameters")
	case errors.Is(err, notes.ErrInvalidNote):
		admission.WriteError(w, admission.CategoryBadRequest, err.Error())
	case errors.Is(err, notes.ErrInvalidScope):
		admission.WriteError(w, admission.CategoryBadRequest, "Invalid scope")
	default:
		s.internalError(w, r, "notes request failed", err)
	}
}

func (s *server) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	s.logger.Error(r.Context(), msg,
		observe.F("path", r.URL.Path),
		observe.F("request_id", admission.RequestIDFromContext(r.Context())),
		observe.F("error", err),
	)
	admission.WriteError(w, admission.CategoryInternal, "Internal server error")
}
