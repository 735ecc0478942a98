// Command notegate serves the notes API behind per-identity rate limiting.
//
// "notegate token -subject <id>" prints a signed token for that user.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonwraymond/notegate/admission"
	"github.com/jonwraymond/notegate/api"
	"github.com/jonwraymond/notegate/auth"
	"github.com/jonwraymond/notegate/cache"
	"github.com/jonwraymond/notegate/config"
	"github.com/jonwraymond/notegate/health"
	"github.com/jonwraymond/notegate/notes"
	"github.com/jonwraymond/notegate/observe"
	"github.com/jonwraymond/notegate/ratelimit"
	"github.com/jonwraymond/notegate/storage"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "token" {
		cfg, err := config.Load()
		if err == nil {
			err = runToken(os.Args[2:], cfg, os.Stdout)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "notegate: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "notegate: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	registry := promclient.NewRegistry()
	obsCfg := cfg.Observe()
	obsCfg.Metrics.Registerer = registry
	obs, err := observe.NewObserver(ctx, obsCfg)
	if err != nil {
		return fmt.Errorf("observer: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		_ = obs.Shutdown(shutdownCtx)
	}()

	logger := obs.Logger()
	instr, err := observe.InstrumenterFromObserver(obs)
	if err != nil {
		return fmt.Errorf("instrumenter: %w", err)
	}

	agg := health.NewAggregator(health.AggregatorConfig{})

	var db *sql.DB
	if cfg.DatabaseDSN != "" {
		db, err = storage.OpenPostgres(ctx, cfg.Postgres())
		if err != nil {
			return err
		}
		defer db.Close()
		agg.Register(health.NewPingChecker("postgres", health.PingFunc(db.PingContext)))
	}

	store, closeStore, err := counterStore(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer closeStore()

	limCfg := cfg.Limiter()
	limCfg.Logger = logger
	limCfg.Guard.Instrumenter = instr
	limCfg.Guard.OnStateChange = func(from, to ratelimit.CircuitState) {
		logger.Warn(context.Background(), "counter store circuit changed",
			observe.F("from", from.String()),
			observe.F("to", to.String()),
		)
	}
	limiter := ratelimit.NewLimiter(store, limCfg)
	limiter.StartJanitor(ctx, cfg.PruneInterval)
	agg.Register(health.NewCounterStoreChecker(limiter.Guard()))

	codec, err := auth.NewTokenCodec(auth.TokenCodecConfig{Secret: []byte(cfg.SecretKey)})
	if err != nil {
		return err
	}
	resolver := auth.NewResolver(auth.ResolverConfig{
		Verifier:          codec,
		Logger:            logger,
		TrustForwardedFor: cfg.TrustForwardedFor,
	})

	var notesAPI api.Notes
	if db != nil {
		svc := notes.NewCachedService(notes.CachedServiceConfig{
			Store: notes.NewPostgresService(db),
			Loader: cache.NewLoader(cache.LoaderConfig[*notes.Page]{
				Policy:  cfg.CachePolicy(),
				Metrics: instr.Metrics(),
			}),
			Instrumenter: instr,
		})
		agg.Register(health.NewCacheChecker(svc.Stats))
		notesAPI = svc
	} else {
		logger.Warn(ctx, "DATABASE_DSN not set, note endpoints disabled")
	}

	var metricsHandler http.Handler
	if obsCfg.Metrics.Enabled && obsCfg.Metrics.Exporter == "prometheus" {
		metricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	}

	handler := api.NewRouter(api.Config{
		ServiceName: cfg.ServiceName,
		Tokens:      codec,
		RefreshTTL:  cfg.RefreshTokenTTL(),
		Notes:       notesAPI,
		Quota:       limiter,
		Resolver:    resolver,
		Admission: admission.New(admission.Config{
			Resolver:  resolver,
			Limiter:   limiter,
			SkipPaths: api.UnmeteredPaths,
			Logger:    logger,
			Metrics:   instr.Metrics(),
		}),
		Health:  agg,
		Metrics: metricsHandler,
		Logger:  logger,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "listening",
			observe.F("addr", cfg.HTTPAddr),
			observe.F("counter_store", cfg.CounterStore),
			observe.F("rate_limit", cfg.RateLimit),
			observe.F("window", cfg.RateLimitWindow.String()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// counterStore builds the configured rate-limit store. The returned func
// releases any connection it opened.
func counterStore(ctx context.Context, cfg *config.Config, db *sql.DB) (ratelimit.CounterStore, func(), error) {
	switch cfg.CounterStore {
	case config.StorePostgres:
		if db == nil {
			return nil, nil, config.ErrMissingDSN
		}
		return ratelimit.NewPostgresStore(db), func() {}, nil
	case config.StoreRedis:
		client, err := storage.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		store := ratelimit.NewRedisStore(client, ratelimit.RedisStoreConfig{TTL: 2 * cfg.RateLimitWindow})
		return store, func() { _ = client.Close() }, nil
	default:
		return ratelimit.NewMemoryStore(ratelimit.MemoryStoreConfig{}), func() {}, nil
	}
}

