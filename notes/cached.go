package notes

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/jonwraymond/notegate/cache"
	"github.com/jonwraymond/notegate/observe"
)

const computeComponent = "notes.compute"

// CachedServiceConfig configures a CachedService.
type CachedServiceConfig struct {
	// Store computes pages and creates notes.
	Store Store

	// Loader caches computed pages. Defaults to a loader with DefaultPolicy.
	Loader *cache.Loader[*Page]

	// Instrumenter wraps each compute in a span and duration metric.
	// Nil disables instrumentation.
	Instrumenter *observe.Instrumenter
}

// CachedService answers note listings through a page cache.
//
// Pages are not invalidated by writes unless the loader's policy enables
// InvalidateOnWrite; until then a listing may be stale for up to the
// cache TTL.
type CachedService struct {
	store  Store
	loader *cache.Loader[*Page]
	instr  *observe.Instrumenter
}

// NewCachedService creates a new cached note service.
func NewCachedService(cfg CachedServiceConfig) *CachedService {
	if cfg.Loader == nil {
		cfg.Loader = cache.NewLoader(cache.LoaderConfig[*Page]{
			Policy:  cache.DefaultPolicy(),
			Metrics: cfg.Instrumenter.Metrics(),
		})
	}
	return &CachedService{
		store:  cfg.Store,
		loader: cfg.Loader,
		instr:  cfg.Instrumenter,
	}
}

// Explore returns a page of public notes.
func (s *CachedService) Explore(ctx context.Context, q cache.Query) (*Page, error) {
	q.Scope = cache.PublicScope
	return s.page(ctx, "explore", q)
}

// Mine returns a page of the notes owned by subject.
func (s *CachedService) Mine(ctx context.Context, subject string, q cache.Query) (*Page, error) {
	if subject == "" {
		return nil, ErrInvalidScope
	}
	q.Scope = cache.UserScope(subject)
	return s.page(ctx, "mine", q)
}

func (s *CachedService) page(ctx context.Context, name string, q cache.Query) (*Page, error) {
	q = q.Normalize()
	if err := ValidateQuery(q); err != nil {
		return nil, err
	}
	return s.loader.GetOrCompute(ctx, q, func(ctx context.Context) (*Page, error) {
		op := observe.Operation{
			Component: computeComponent,
			Name:      name,
			Attrs:     []attribute.KeyValue{attribute.String("cache.scope", cache.ScopeKind(q.Scope))},
		}
		return observe.Call(ctx, s.instr, op, func(ctx context.Context) (*Page, error) {
			return s.store.ComputePage(ctx, q)
		})
	})
}

// Create stores a new note for owner. When invalidation is enabled the
// owner's cached pages are evicted, along with public pages if the note is
// public.
func (s *CachedService) Create(ctx context.Context, owner string, in NewNote) (*Note, error) {
	note, err := observe.Call(ctx, s.instr, observe.Operation{Component: computeComponent, Name: "create"},
		func(ctx context.Context) (*Note, error) {
			return s.store.Create(ctx, owner, in)
		})
	if err != nil {
		return nil, err
	}
	s.loader.InvalidateScope(ctx, cache.UserScope(owner))
	if note.IsPublic {
		s.loader.InvalidateScope(ctx, cache.PublicScope)
	}
	return note, nil
}

// Stats returns the page cache counters.
func (s *CachedService) Stats() cache.Stats {
	return s.loader.Stats()
}
