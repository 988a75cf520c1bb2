package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/meridian/internal/cache"
	"github.com/sells-group/meridian/internal/extract"
	"github.com/sells-group/meridian/internal/ingest"
	"github.com/sells-group/meridian/internal/monitoring"
	"github.com/sells-group/meridian/internal/parser"
	"github.com/sells-group/meridian/internal/portfolio"
	"github.com/sells-group/meridian/internal/resilience"
	"github.com/sells-group/meridian/internal/store"
	"github.com/sells-group/meridian/internal/valuation"
)

// appEnv holds the store and services used by the serve, extract-pending,
// valuation and portfolio commands.
type appEnv struct {
	Store      store.Store
	Registry   *prometheus.Registry
	Collectors *monitoring.Collectors
	Documents  *ingest.Service
	Metrics    *monitoring.MetricService
	Valuations *valuation.Service
	Portfolio  *portfolio.Service
	cache      *cache.RedisCache // may be nil
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.cache != nil {
		_ = e.cache.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv validates the config for mode, opens and migrates the store, and
// wires the services. Callers should defer env.Close().
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	env := &appEnv{
		Store:     st,
		Registry:  prometheus.NewRegistry(),
		Metrics:   monitoring.NewMetricService(st),
		Portfolio: portfolio.NewService(st),
	}
	env.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	env.Collectors = monitoring.NewCollectors(env.Registry)

	x, rc, err := initExtractor(ctx, env.Collectors)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.cache = rc

	env.Documents = ingest.NewService(st, parser.New(cfg.Parser), x, ingest.Options{
		UploadDir:      cfg.Storage.UploadDir,
		MaxUploadBytes: cfg.Storage.MaxUploadBytes(),
		Observer:       env.Collectors,
	})
	env.Valuations = valuation.NewService(st, env.Collectors)

	return env, nil
}

// initExtractor builds the field extractor with the optional Redis result
// cache. A cache that cannot be reached is logged and skipped. collectors
// may be nil.
func initExtractor(ctx context.Context, c *monitoring.Collectors) (*extract.Extractor, *cache.RedisCache, error) {
	rc, err := cache.NewRedis(ctx, cfg.Cache)
	if err != nil {
		zap.L().Warn("cache: redis unavailable, extraction results will not be cached", zap.Error(err))
		rc = nil
	}

	var ec extract.Cache
	if rc != nil {
		ec = rc
	}

	var onState func(string, resilience.CircuitState, resilience.CircuitState)
	if c != nil {
		onState = c.CircuitStateChanged
	}

	x, err := extract.FromConfig(cfg, ec, onState)
	if err != nil {
		if rc != nil {
			_ = rc.Close()
		}
		return nil, nil, eris.Wrap(err, "init extractor")
	}
	return x, rc, nil
}
