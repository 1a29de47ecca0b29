package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"cashflow/internal/cache"
	"cashflow/internal/core"
	"cashflow/internal/ledger"
	"cashflow/internal/log"
	"cashflow/internal/metrics"
	"cashflow/internal/middleware/ratelimit"
	"cashflow/internal/middleware/security"
)

// ReadyCheck reports whether one dependency can serve traffic.
type ReadyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Options wires optional collaborators into the server. Nil fields get
// defaults; a nil Metrics leaves /metrics unmounted.
type Options struct {
	Logger       *log.Logger
	Metrics      *metrics.Metrics
	Limiter      *ratelimit.Limiter
	Detector     *security.Detector
	Headers      *security.HeadersConfig
	SummaryCache *cache.LRUCache[core.Summary]
	ReadyChecks  []ReadyCheck
	Now          func() time.Time
}

// Server serves the ledger store as a JSON API.
type Server struct {
	http.Server

	store    *ledger.Store
	logger   *log.Logger
	metrics  *metrics.Metrics
	limiter  *ratelimit.Limiter
	detector *security.Detector
	checks   []ReadyCheck
	now      func() time.Time
	started  time.Time

	// summaryGen counts invalidations; a summary is only cached when no
	// invalidation happened since its snapshot.
	summaryMu  sync.Mutex
	summaryGen uint64
	summaries  *cache.LRUCache[core.Summary]

	unsubscribe  func()
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
// The server subscribes to store events until Shutdown.
func NewServer(addr string, store *ledger.Store, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.NewLimiter(ratelimit.DefaultConfig())
	}
	if opts.Detector == nil {
		opts.Detector = security.NewDetector()
	}
	if opts.Headers == nil {
		h := security.DefaultHeadersConfig()
		opts.Headers = &h
	}
	if opts.SummaryCache == nil {
		opts.SummaryCache = cache.NewLRUCache[core.Summary](64, 5*time.Minute)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		store:     store,
		logger:    opts.Logger.WithComponent(log.ComponentHTTP),
		metrics:   opts.Metrics,
		limiter:   opts.Limiter,
		detector:  opts.Detector,
		checks:    opts.ReadyChecks,
		now:       opts.Now,
		started:   opts.Now(),
		summaries: opts.SummaryCache,
	}
	s.Handler = s.routes(*opts.Headers)
	s.unsubscribe = store.Subscribe(s.invalidateSummaries)
	return s
}

func (s *Server) routes(headers security.HeadersConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(log.Middleware(s.logger))
	r.Use(log.RequestIDMiddleware(func(r *http.Request) string {
		return middleware.GetReqID(r.Context())
	}))
	r.Use(middleware.Recoverer)
	r.Use(security.Headers(headers))
	r.Use(s.requestLogger)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("no route for " + r.URL.Path).Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method_not_allowed", r.Method+" is not allowed here").Write(w)
	})

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(mutationsOnly(s.limiter.Middleware(s.detector.ExtractClientIP, s.rateLimited)))

		r.Get("/reference", s.handleReference)

		r.Route("/statuses", func(r chi.Router) {
			r.Get("/", s.handleListStatuses)
			r.Post("/", s.handleCreateStatus)
			r.Patch("/{id}", s.handleUpdateStatus)
			r.Delete("/{id}", s.handleDeleteStatus)
		})
		r.Route("/types", func(r chi.Router) {
			r.Get("/", s.handleListTypes)
			r.Post("/", s.handleCreateType)
			r.Patch("/{id}", s.handleUpdateType)
			r.Delete("/{id}", s.handleDeleteType)
			r.Get("/{id}/categories", s.handleCategoriesByType)
		})
		r.Route("/categories", func(r chi.Router) {
			r.Get("/", s.handleListCategories)
			r.Post("/", s.handleCreateCategory)
			r.Patch("/{id}", s.handleUpdateCategory)
			r.Delete("/{id}", s.handleDeleteCategory)
			r.Get("/{id}/subcategories", s.handleSubcategoriesByCategory)
		})
		r.Route("/subcategories", func(r chi.Router) {
			r.Get("/", s.handleListSubcategories)
			r.Post("/", s.handleCreateSubcategory)
			r.Patch("/{id}", s.handleUpdateSubcategory)
			r.Delete("/{id}", s.handleDeleteSubcategory)
		})
		r.Route("/entries", func(r chi.Router) {
			r.Get("/", s.handleListEntries)
			r.Post("/", s.handleCreateEntry)
			r.Get("/{id}", s.handleGetEntry)
			r.Patch("/{id}", s.handleUpdateEntry)
			r.Delete("/{id}", s.handleDeleteEntry)
		})
		r.Get("/summary", s.handleSummary)
		r.Post("/selection", s.handleSelection)
	})

	return r
}

// requestLogger logs request completion and flags probing requests.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()
		logger := log.FromContext(ctx)
		clientIP := s.detector.ExtractClientIP(r)

		if s.detector.DetectSuspiciousRequest(r) {
			fields := log.NewFields().
				WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent")).
				WithClientIP(clientIP)
			logger.WithComponent(log.ComponentSecurity).WarnContext(ctx, "Suspicious request detected", fields.ToSlice()...)
		}

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		log.NewStructuredLogger(logger).LogHTTPEnd(ctx, r, status, time.Since(start).Milliseconds(), clientIP)
	})
}

// mutationsOnly applies limit to every method except the safe ones.
func mutationsOnly(limit func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		limited := limit(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
			default:
				limited.ServeHTTP(w, r)
			}
		})
	}
}

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	TooManyRequestsError().Write(w)
}

// invalidateSummaries is a ledger.Listener; any mutation can change any summary.
func (s *Server) invalidateSummaries(ev ledger.Event) {
	s.summaryMu.Lock()
	defer s.summaryMu.Unlock()
	s.summaryGen++
	if n := s.summaries.Purge(); n > 0 {
		s.logger.Debug("Summary cache invalidated",
			log.FieldCollection, string(ev.Collection),
			log.FieldEntityID, ev.ID,
			"entries_removed", n)
	}
}

// summary returns the tabulation for the normalized filter f over entries, a
// snapshot taken at generation gen.
func (s *Server) summary(ctx context.Context, f ledger.EntryFilter, gen uint64, entries []core.Entry, rd core.ReferenceData) core.Summary {
	key := filterKey(f)
	if sum, ok := s.summaries.Get(key); ok {
		s.observeSummary(true)
		log.FromContext(ctx).DebugContext(ctx, "Summary cache hit", "key", key)
		return sum
	}
	s.observeSummary(false)

	sum := ledger.Summarize(f.Apply(entries), rd)

	s.summaryMu.Lock()
	if s.summaryGen == gen {
		s.summaries.Set(key, sum)
	}
	s.summaryMu.Unlock()
	return sum
}

// snapshot reads the store together with the cache generation it belongs to.
// The generation is read first; a mutation racing the read only makes the
// result uncacheable. summaryMu is never held while the store is locked.
func (s *Server) snapshot() (uint64, []core.Entry, core.ReferenceData) {
	s.summaryMu.Lock()
	gen := s.summaryGen
	s.summaryMu.Unlock()
	entries, rd := s.store.Snapshot()
	return gen, entries, rd
}

func (s *Server) observeSummary(cached bool) {
	if s.metrics != nil {
		s.metrics.ObserveSummary(cached)
	}
}

// Shutdown stops accepting requests and detaches from the store.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.unsubscribe()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
