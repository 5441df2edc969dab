// Package supervisor owns the proxy's full object graph — config, resolver,
// upstream manager, aggregator, masker, compressor, router, handler — and
// performs hot reload by swapping that graph atomically without dropping
// the downstream session, per spec.md §4.L.
package supervisor

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/samteezy/mcproxy/internal/aggregator"
	"github.com/samteezy/mcproxy/internal/cache"
	"github.com/samteezy/mcproxy/internal/compressor"
	"github.com/samteezy/mcproxy/internal/config"
	"github.com/samteezy/mcproxy/internal/handler"
	"github.com/samteezy/mcproxy/internal/llmclient"
	"github.com/samteezy/mcproxy/internal/logsink"
	"github.com/samteezy/mcproxy/internal/masker"
	"github.com/samteezy/mcproxy/internal/pii"
	"github.com/samteezy/mcproxy/internal/resolver"
	"github.com/samteezy/mcproxy/internal/router"
	"github.com/samteezy/mcproxy/internal/upstream"
)

const (
	toolCacheCapacity     = 10000
	resourceCacheCapacity = 2000
	cacheCleanupInterval  = 60 * time.Second
)

// graph is one complete, immutable wiring of the object graph. A reload
// builds a new graph and atomically swaps the supervisor's pointer to it,
// then disconnects the old graph's upstream sessions.
type graph struct {
	cfg        *config.Config
	resolver   *resolver.Resolver
	manager    *upstream.Manager
	aggregator *aggregator.Aggregator
	masker     *masker.Masker
	compressor *compressor.Compressor
	router     *router.Router
	handler    *handler.Handler
	toolCache  *cache.Cache
	resCache   *cache.Cache
}

// Supervisor owns the live graph pointer, the admin server, and the
// background cache-cleanup timer.
type Supervisor struct {
	cfgPath string
	sink    *logsink.Sink

	current atomic.Pointer[graph]

	mu          sync.Mutex
	cleanupStop chan struct{}
}

// New builds a Supervisor. It does not load config or connect upstreams;
// call Start for that.
func New(cfgPath string, sink *logsink.Sink) *Supervisor {
	return &Supervisor{cfgPath: cfgPath, sink: sink}
}

// Start loads the configuration, builds the object graph, connects every
// enabled upstream, refreshes the aggregator's catalog, and starts the
// periodic cache-cleanup timer.
func (s *Supervisor) Start(ctx context.Context) error {
	g, err := buildGraph(ctx, s.cfgPath)
	if err != nil {
		return fmt.Errorf("supervisor: start failed: %w", err)
	}
	s.current.Store(g)
	s.startCleanup(g)
	log.Info().Int("upstreams", len(g.manager.IDs())).Msg("supervisor started")
	return nil
}

// Stop disconnects every upstream and halts the cache-cleanup timer.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if s.cleanupStop != nil {
		close(s.cleanupStop)
		s.cleanupStop = nil
	}
	s.mu.Unlock()

	if g := s.current.Load(); g != nil {
		g.manager.DisconnectAll()
	}
}

// Reload rebuilds the object graph from the configuration file on disk and
// swaps it in atomically. The downstream session is never dropped: every
// request issued after the swap sees the new graph. The old graph's
// upstream sessions are disconnected right after the swap, so a call still
// waiting on one of them either completes or returns an error.
func (s *Supervisor) Reload(ctx context.Context) error {
	old := s.current.Load()

	next, err := buildGraph(ctx, s.cfgPath)
	if err != nil {
		return fmt.Errorf("supervisor: reload failed: %w", err)
	}

	s.mu.Lock()
	if s.cleanupStop != nil {
		close(s.cleanupStop)
	}
	s.mu.Unlock()

	s.current.Store(next)
	s.startCleanup(next)

	if old != nil {
		old.manager.DisconnectAll()
	}
	log.Info().Msg("supervisor reloaded configuration")
	return nil
}

// Handler returns the current graph's request handler.
func (s *Supervisor) Handler() *handler.Handler {
	return s.current.Load().handler
}

// ConfigPath returns the path this supervisor loads and reloads its
// configuration from.
func (s *Supervisor) ConfigPath() string {
	return s.cfgPath
}

// AdminMux builds an admin HTTP mux bound to the current graph. Because the
// closures below re-read s.current on every request, the mux keeps working
// across a reload without needing to be rebuilt.
func (s *Supervisor) AdminMux() *http.ServeMux {
	mux := http.NewServeMux()
	delegate := func(w http.ResponseWriter, r *http.Request) {
		g := s.current.Load()
		adminFor(s, g).Mux().ServeHTTP(w, r)
	}
	mux.HandleFunc("/", delegate)
	mux.HandleFunc("/health", delegate)
	mux.HandleFunc("/api/config", delegate)
	mux.HandleFunc("/api/config/validate", delegate)
	mux.HandleFunc("/api/reload", delegate)
	mux.HandleFunc("/api/logs/stream", delegate)
	mux.HandleFunc("/api/status", delegate)
	mux.HandleFunc("/api/status/", delegate)
	return mux
}

func adminFor(s *Supervisor, g *graph) *handler.AdminServer {
	return handler.NewAdminServer(g.handler, g.aggregator, g.manager, s.sink, g.compressor, s.cfgPath, func() error {
		return s.Reload(context.Background())
	})
}

func (s *Supervisor) startCleanup(g *graph) {
	stop := make(chan struct{})
	s.mu.Lock()
	s.cleanupStop = stop
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(cacheCleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				n := g.toolCache.Cleanup() + g.resCache.Cleanup()
				if n > 0 {
					log.Debug().Int("evicted", n).Msg("cache cleanup")
				}
			case <-stop:
				return
			}
		}
	}()
}

// buildGraph loads config from disk and wires every collaborator, per
// spec.md §4.L's object-graph construction order: config -> resolver ->
// upstream manager (connect) -> aggregator (refresh) -> masker ->
// compressor -> router -> handler.
func buildGraph(ctx context.Context, cfgPath string) (*graph, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	defaults := cfg.Defaults
	if cfg.Cache.CacheErrors {
		cacheDefaults := resolver.CacheConfig{}
		if defaults.Cache != nil {
			cacheDefaults = *defaults.Cache
		}
		if cacheDefaults.CacheErrors == nil {
			on := true
			cacheDefaults.CacheErrors = &on
		}
		defaults.Cache = &cacheDefaults
	}
	res := resolver.New(defaults, cfg.Upstreams, cfg.Masking.Enabled, cfg.Compression.BypassEnabled, cfg.GoalPrefix())

	manager := upstream.NewManager(cfg.Upstreams)
	manager.ConnectAll(ctx)

	agg := aggregator.New(manager)
	agg.Refresh(ctx)

	library := pii.New()
	msk := masker.New(library)

	chatEndpoint := func(baseURL string) string {
		if baseURL == "" || strings.HasSuffix(baseURL, "/chat/completions") {
			return baseURL
		}
		return strings.TrimSuffix(baseURL, "/") + "/chat/completions"
	}
	client := llmclient.New(chatEndpoint(cfg.Compression.BaseURL), cfg.Compression.APIKey, nil)
	limiters := compressor.NewRateLimiterRegistry(2.0)
	comp := compressor.New(client, cfg.Compression.Model, limiters)

	maskingClient := client
	maskingModel := cfg.Compression.Model
	if cfg.Masking.LLMConfig != nil {
		maskingClient = llmclient.New(chatEndpoint(cfg.Masking.LLMConfig.BaseURL), cfg.Masking.LLMConfig.APIKey, nil)
		maskingModel = cfg.Masking.LLMConfig.Model
	}

	idempotent := router.NewIdempotentSet(nil)
	rt := router.New(agg, manager, res, msk, idempotent, maskingClient, maskingModel)

	cacheCapacity := cfg.Cache.MaxEntries
	if cacheCapacity <= 0 {
		cacheCapacity = toolCacheCapacity
	}
	toolCache := cache.New(cacheCapacity)
	resCache := cache.New(resourceCacheCapacity)

	h := handler.New(agg, manager, res, rt, comp, toolCache, resCache, cfg.GoalPrefix())

	return &graph{
		cfg:        cfg,
		resolver:   res,
		manager:    manager,
		aggregator: agg,
		masker:     msk,
		compressor: comp,
		router:     rt,
		handler:    h,
		toolCache:  toolCache,
		resCache:   resCache,
	}, nil
}
