package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"expensepro/internal/config"
	"expensepro/internal/core"
	"expensepro/internal/log"
	"expensepro/internal/middleware/ratelimit"
	"expensepro/internal/middleware/security"
	"expensepro/internal/middleware/trace"
	appweb "expensepro/web"
)

const readyTimeout = 2 * time.Second

// ListReader serves cached list pages keyed by canonical state.
type ListReader interface {
	Expenses(ctx context.Context, key string, q core.ExpenseQuery) (core.ExpensePage, bool, error)
	Categories(ctx context.Context, key string, q core.CategoryQuery) (core.CategoryPage, bool, error)
}

// ExpenseWriter stores new expenses.
type ExpenseWriter interface {
	CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	Categories(ctx context.Context) ([]string, error)
}

// FilterMemory remembers the last filters of each view.
type FilterMemory interface {
	Remember(view, query string)
	Recall(ctx context.Context, view string) (string, bool)
	Flush()
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options carries the collaborators of a Server.
type Options struct {
	Config   *config.Config
	Lists    ListReader
	Expenses ExpenseWriter
	Filters  FilterMemory
	Storage  Pinger
	Logger   *log.Logger
}

type Server struct {
	http.Server
	templates *template.Template
	cfg       *config.Config
	lists     ListReader
	expenses  ExpenseWriter
	filters   FilterMemory
	storage   Pinger
	logger    *log.Logger
	events    *log.StructuredLogger

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	listings []listing
	now      func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run http.Server.
func NewServer(addr string, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Load()
	}

	s := &Server{
		templates: template.Must(template.New("").Funcs(templateFuncs()).ParseFS(appweb.TemplatesFS, "templates/*.html")),
		cfg:       cfg,
		lists:     opts.Lists,
		expenses:  opts.Expenses,
		filters:   opts.Filters,
		storage:   opts.Storage,
		logger:    logger.WithComponent(log.ComponentHTTP),
		events:    log.NewStructuredLogger(logger),
		now:       time.Now,
	}
	s.detector = security.NewDetector(logger)
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)
	s.limiter = ratelimit.NewLimiter(ratelimit.Config{
		RequestsPerSecond: cfg.RateLimitRPS,
		Burst:             cfg.RateLimitBurst,
	})
	s.listings = s.newListings()

	mux := http.NewServeMux()

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, s.listings[0].view.Path, http.StatusFound)
	})
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	for _, l := range s.listings {
		mux.HandleFunc("GET "+l.view.Path, s.handlePage(l))
		mux.HandleFunc("GET "+l.view.PartialPath, s.handlePartial(l))
		mux.HandleFunc("GET "+l.view.APIPath, s.handleAPI(l))
	}
	mux.HandleFunc("POST /expenses", s.handleCreateExpense)

	var handler http.Handler = mux
	handler = s.limiter.Middleware(s.detector.ExtractClientIP, s.handleRateLimited)(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.detector.Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Shutdown stops accepting requests, then persists pending filters and
// stops the rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		shutdownErr = s.Server.Shutdown(ctx)
		if s.filters != nil {
			s.filters.Flush()
		}
		s.limiter.Stop()
	})
	return shutdownErr
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	w.Header().Set("Retry-After", "1")
	ErrorResponse(http.StatusTooManyRequests, "Too many requests, try again shortly").
		TriggerErrorNotification("Too many requests").
		Write(w)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.storage != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := s.storage.Ping(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) today() core.Date {
	now := s.now()
	return core.NewDate(now.Year(), int(now.Month()), now.Day())
}
