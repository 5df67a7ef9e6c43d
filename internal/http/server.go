package httpapi

import (
	"context"
	"fmt"
	"html/template"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/justinas/alice"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"

	"github.com/example/ev-rescue/internal/dispatch"
	"github.com/example/ev-rescue/internal/models"
	"github.com/example/ev-rescue/internal/sessions"
)

// Directory serves the mock listings shown outside a session.
type Directory interface {
	Requests(ctx context.Context) ([]models.RescueJob, error)
	Drivers(ctx context.Context) ([]models.DriverInfo, error)
	Guide() []models.GuideStep
}

type Options struct {
	Sessions    *sessions.Manager
	Directory   Directory
	WSReg       *dispatch.WSRegistry
	Logger      *zap.Logger
	RateLimit   string // ulule format, e.g. "20-M"
	CORSOrigins []string

	// TrustForwardHeader keys the limiter on X-Forwarded-For / X-Real-IP.
	// Only enable it behind a proxy that overwrites those headers.
	TrustForwardHeader bool
}

type Server struct {
	sessions *sessions.Manager
	dir      Directory
	wsreg    *dispatch.WSRegistry
	logger   *zap.Logger
	limiter  *limiter.Limiter
	pages    map[string]*template.Template
	mux      *mux.Router
	handler  http.Handler
}

func NewServer(opts Options) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.WSReg == nil {
		opts.WSReg = dispatch.NewWSRegistry(opts.Logger)
	}
	if opts.RateLimit == "" {
		opts.RateLimit = "20-M"
	}
	rate, err := limiter.NewRateFromFormatted(opts.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("rate limit %q: %w", opts.RateLimit, err)
	}
	pages, err := parsePages()
	if err != nil {
		return nil, err
	}
	s := &Server{
		sessions: opts.Sessions,
		dir:      opts.Directory,
		wsreg:    opts.WSReg,
		logger:   opts.Logger,
		limiter:  limiter.New(memory.NewStore(), rate, limiter.WithTrustForwardHeader(opts.TrustForwardHeader)),
		pages:    pages,
		mux:      mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
	})
	s.handler = alice.New(secureHeaders).Then(apiCORS("/api/", c, s.mux))
	return s, nil
}

func (s *Server) routes() {
	post := alice.New(s.rateLimitMiddleware)

	s.mux.HandleFunc("/", s.handleHome).Methods(http.MethodGet)
	s.mux.HandleFunc("/about", s.handleAbout).Methods(http.MethodGet)
	s.mux.HandleFunc("/contact", s.handleContact).Methods(http.MethodGet)
	s.mux.Handle("/contact", post.ThenFunc(s.handleContactSubmit)).Methods(http.MethodPost)
	s.mux.HandleFunc("/ar-vr-demo", s.handleARVR).Methods(http.MethodGet)
	s.mux.HandleFunc("/request-rescue", s.handleRescuePage).Methods(http.MethodGet)
	s.mux.Handle("/request-rescue/{action}", post.ThenFunc(s.handleRescueAction)).Methods(http.MethodPost)
	s.mux.HandleFunc("/driver-portal", s.handleDriverPage).Methods(http.MethodGet)
	s.mux.Handle("/driver-portal/{action}", post.ThenFunc(s.handleDriverAction)).Methods(http.MethodPost)

	api := s.mux.PathPrefix("/api/v1").Subrouter()
	api.Handle("/sessions", post.ThenFunc(s.handleCreateSession)).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}", s.handleGetSession).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}", s.handleDeleteSession).Methods(http.MethodDelete)
	api.Handle("/sessions/{id}/rating/preview", post.ThenFunc(s.handlePreviewRating)).Methods(http.MethodPost)
	api.Handle("/sessions/{id}/{action}", post.ThenFunc(s.handleSessionAction)).Methods(http.MethodPost)
	api.HandleFunc("/requests", s.handleListRequests).Methods(http.MethodGet)
	api.HandleFunc("/drivers", s.handleListDrivers).Methods(http.MethodGet)

	s.mux.HandleFunc("/ws/{session_id}", s.handleWS).Methods(http.MethodGet)
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods(http.MethodGet)
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.handler.ServeHTTP(w, r) }
