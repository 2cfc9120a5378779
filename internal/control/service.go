// Package control wires the analyzer's components together and owns the
// application lifecycle.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mhmod01110/priv-band-ai/internal/ai/backend"
	"github.com/mhmod01110/priv-band-ai/internal/ai/quota"
	"github.com/mhmod01110/priv-band-ai/internal/ai/routing"
	"github.com/mhmod01110/priv-band-ai/internal/analysis/pipeline"
	"github.com/mhmod01110/priv-band-ai/internal/cache/fallback"
	"github.com/mhmod01110/priv-band-ai/internal/cache/idempotency"
	"github.com/mhmod01110/priv-band-ai/internal/core/config"
	"github.com/mhmod01110/priv-band-ai/internal/core/domain"
	"github.com/mhmod01110/priv-band-ai/internal/health"
	redisclient "github.com/mhmod01110/priv-band-ai/internal/infra/redis"
	"github.com/mhmod01110/priv-band-ai/internal/infra/storage/postgres"
	"github.com/mhmod01110/priv-band-ai/internal/infra/store"
	memorystore "github.com/mhmod01110/priv-band-ai/internal/infra/store/memory"
)

// Service is the assembled analyzer.
type Service struct {
	cfg      *config.AppConfig
	log      *slog.Logger
	redis    *redisclient.Client // nil in memory mode
	kv       store.Store
	db       *postgres.DB // nil when history is disabled
	history  *postgres.AnalysisRepo
	router   *routing.Router
	idem     *idempotency.Cache
	executor *pipeline.Executor
	server   *health.Server
}

// NewService initializes every dependency from config. progress may be
// nil when no caller consumes stage updates.
func NewService(cfg *config.AppConfig, progress pipeline.ProgressFunc, log *slog.Logger) (*Service, error) {
	s := &Service{cfg: cfg, log: log}

	// 1. Durable store. Redis shares locks and quota counters across
	// processes; the in-memory store is for single-process deployments
	// and tests.
	if cfg.Redis.URL != "" {
		client, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		s.redis = client
		s.kv = client
		log.Info("using Redis store")
	} else {
		s.kv = memorystore.New()
		log.Warn("using in-memory store; locks and quota are not shared across processes")
	}

	// 2. Optional history database.
	if cfg.Database.URL != "" {
		db, err := postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := db.Migrate(); err != nil {
			return nil, err
		}
		s.db = db
		s.history = postgres.NewAnalysisRepo(db)
		log.Info("analysis history enabled")
	}

	// 3. AI backends.
	backends := make(map[string]backend.Backend, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		var b backend.Backend
		switch pc.Kind {
		case "openai":
			b = backend.NewOpenAIBackend(pc.Name, pc.BaseURL, pc.APIKey, pc.Model, pc.Timeout)
		case "gemini":
			b = backend.NewGeminiBackend(pc.Name, pc.BaseURL, pc.APIKey, pc.Model, pc.Timeout)
		default:
			return nil, fmt.Errorf("unknown provider kind %q for %s", pc.Kind, pc.Name)
		}
		backends[pc.Name] = b
	}

	// 4. Routing with quota admission and per-provider breakers.
	tracker := quota.New(s.kv, cfg.Quota, log)
	router, err := routing.NewRouter(cfg.Router, backends, cfg.Breaker, tracker, log)
	if err != nil {
		return nil, err
	}
	s.router = router

	// 5. Caches and the pipeline.
	s.idem = idempotency.New(s.kv, cfg.Pipeline.ResultTTL, cfg.Pipeline.LockTTL, log)
	fb := fallback.New(s.kv, cfg.Pipeline.FallbackTTL, log)

	var history pipeline.HistoryRecorder
	if s.history != nil {
		history = s.history
	}
	stages := pipeline.DefaultStages(router, fb, log)
	s.executor = pipeline.NewExecutor(stages, s.idem, fb, history, progress, log)

	// 6. Operational HTTP surface.
	var ping func(ctx context.Context) error
	if s.redis != nil {
		ping = s.redis.Ping
	}
	s.server = health.NewServer(s, router, s.history, ping, cfg.Server.Port, log)

	return s, nil
}

// Analyze deduplicates, locks, and runs one request. The error return
// covers admission problems (duplicate in flight, store down); run
// outcomes, including failures, are carried in the result.
func (s *Service) Analyze(ctx context.Context, req domain.AnalysisRequest) (domain.PipelineResult, error) {
	req = req.Normalize()
	key := idempotency.Key(req)

	cached, err := s.idem.Get(ctx, key)
	if err != nil {
		return domain.PipelineResult{}, err
	}
	if cached != nil {
		s.log.Info("serving cached result", "key", key)
		return domain.PipelineResult{Success: true, FromCache: true, Result: cached}, nil
	}

	ok, err := s.idem.TryAcquire(ctx, key)
	if err != nil {
		return domain.PipelineResult{}, err
	}
	if !ok {
		return domain.PipelineResult{}, domain.ErrAlreadyInProgress
	}

	// Soft deadline: the pipeline aborts cooperatively. Hard deadline:
	// the run is abandoned outright.
	runCtx, cancel := context.WithTimeout(ctx, s.cfg.Pipeline.SoftDeadline)
	defer cancel()

	pctx := pipeline.NewContext(req, key)
	done := make(chan domain.PipelineResult, 1)
	go func() {
		done <- s.executor.Run(runCtx, pctx)
	}()

	select {
	case res := <-done:
		s.idem.Release(context.WithoutCancel(ctx), key)
		return res, nil
	case <-time.After(s.cfg.Pipeline.HardDeadline):
		cancel()
		// The abandoned goroutine may still be finishing a late write.
		// The lock is left to expire on its TTL so a new submission
		// cannot overlap the zombie run.
		s.log.Error("run exceeded hard deadline", "run_id", pctx.RunID, "key", key)
		return domain.PipelineResult{
			Success: false,
			Error: &domain.ErrorInfo{
				Kind:    domain.ErrKindTimeout,
				Message: fmt.Sprintf("analysis exceeded the hard deadline of %s", s.cfg.Pipeline.HardDeadline),
			},
		}, nil
	}
}

// Start brings up the HTTP server. Blocks until the listener fails.
func (s *Service) Start() error {
	s.log.Info("analyzer started",
		"port", s.cfg.Server.Port,
		"primary", s.cfg.Router.Primary,
		"secondary", s.cfg.Router.Secondary)
	return s.server.Start()
}

// Stop shuts the service down gracefully.
func (s *Service) Stop(ctx context.Context) error {
	if err := s.server.Stop(ctx); err != nil {
		s.log.Error("http shutdown failed", "error", err)
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.log.Error("db close failed", "error", err)
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.log.Error("redis close failed", "error", err)
		}
	}
	s.log.Info("analyzer stopped")
	return nil
}
