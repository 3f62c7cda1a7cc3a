package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	applog "ledgerly/internal/log"
	"ledgerly/internal/metrics"
	"ledgerly/internal/middleware/ratelimit"
	"ledgerly/internal/middleware/security"
	"ledgerly/internal/middleware/trace"
	"ledgerly/internal/services"
	appweb "ledgerly/web"
)

// Options tune the server. The zero value is usable.
type Options struct {
	Logger   *applog.Logger
	Recorder metrics.Recorder
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer  prometheus.Gatherer
	RateLimit ratelimit.Config
	// ReadyTimeout bounds the snapshot load done by /readyz (default: 10s)
	ReadyTimeout time.Duration
	// BackendHealth, when set, adds a "backend" check to /readyz. An error
	// marks the server not ready.
	BackendHealth func(ctx context.Context) (map[string]any, error)
	// TrustedProxies are CIDRs, besides the private ranges, whose
	// forwarded client addresses are believed.
	TrustedProxies []string
}

// Server serves the month pages and the JSON API over a LedgerService.
type Server struct {
	http.Server
	templates   *template.Template
	ledger      *services.LedgerService
	logger      *applog.Logger
	structured  *applog.StructuredLogger
	rateLimiter *ratelimit.Limiter
	detector    *security.Detector
	tracer      *trace.Middleware
	started     time.Time
	readyTO     time.Duration
	health      func(ctx context.Context) (map[string]any, error)

	shutdownOnce sync.Once
}

// NewServer builds the router and middleware chain. Templates are parsed
// from the embedded filesystem; a parse failure is a programming error and
// panics.
func NewServer(addr string, ledger *services.LedgerService, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.DefaultConfig())
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = 10 * time.Second
	}
	logger := opts.Logger.WithComponent(applog.ComponentHTTP)

	tmpl := template.Must(template.New("pages").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html"))

	s := &Server{
		templates:   tmpl,
		ledger:      ledger,
		logger:      logger,
		structured:  applog.NewStructuredLogger(logger),
		rateLimiter: ratelimit.NewLimiter(opts.RateLimit),
		detector:    security.NewDetector(),
		started:     time.Now(),
		readyTO:     opts.ReadyTimeout,
		health:      opts.BackendHealth,
	}
	for _, cidr := range opts.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", "cidr", cidr, "error", err)
		}
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, logger, opts.Recorder)

	mux := http.NewServeMux()
	s.routes(mux, opts.Gatherer)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.chain(mux),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux, gatherer prometheus.Gatherer) {
	// Probes and metrics
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	// Static assets
	static, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		panic(fmt.Sprintf("static assets: %v", err))
	}
	mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(http.StripPrefix("/static/", http.FileServerFS(static))))

	// Pages
	mux.HandleFunc("GET /{$}", s.handleHome)
	mux.HandleFunc("GET /months/{key}", s.handleMonthPage)
	mux.HandleFunc("GET /accounts", s.handleAccountsPage)

	// JSON API
	mux.HandleFunc("GET /api/overview", s.handleOverview)
	mux.HandleFunc("GET /api/summaries", s.handleSummaries)
	mux.HandleFunc("GET /api/months/{key}", s.handleMonth)
	mux.HandleFunc("GET /api/accounts", s.handleAccounts)
	mux.HandleFunc("GET /api/accounts/{id}/months", s.handleAccountMonths)
	mux.HandleFunc("POST /api/accounts", s.handleCreateAccount)
	mux.HandleFunc("PUT /api/accounts/{id}", s.handleUpdateAccount)
	mux.HandleFunc("DELETE /api/accounts/{id}", s.handleDeleteAccount)
	mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	mux.HandleFunc("POST /api/{collection}", s.handleCreateTransaction)
	mux.HandleFunc("PUT /api/{collection}/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /api/{collection}/{id}", s.handleDeleteTransaction)
}

// chain wraps the mux, outermost first: logger context, tracing, security
// headers, suspicious request logging, rate limiting.
func (s *Server) chain(mux http.Handler) http.Handler {
	var h http.Handler = mux
	h = s.rateLimiter.Middleware(s.detector.ExtractClientIP, s.onRateLimit)(h)
	h = s.detector.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.tracer.Middleware(h)
	h = applog.Middleware(s.logger)(h)
	return h
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldComponent, applog.ComponentRateLimit,
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").Write(w)
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
