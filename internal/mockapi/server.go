package mockapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danmuck/labctl/internal/observability"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	DefaultAddr           = "127.0.0.1:5000"
	DefaultMaxUploadBytes = 3 * 1024 * 1024
	defaultMultipartBytes = 8 << 20
	defaultNode           = "mockapi"
)

// Config is the runtime shape of the stub API.
type Config struct {
	Node           string
	Addr           string
	MaxUploadBytes int64
	CorsOrigins    []string
}

func DefaultConfig() Config {
	return Config{
		Node:           defaultNode,
		Addr:           DefaultAddr,
		MaxUploadBytes: DefaultMaxUploadBytes,
		CorsOrigins:    []string{"http://localhost:3000"},
	}
}

// Server is a local stand-in for the API the harness exercises.
type Server struct {
	cfg     Config
	store   *Store
	router  *gin.Engine
	started time.Time
}

func New(cfg Config) (*Server, error) {
	if strings.TrimSpace(cfg.Node) == "" {
		cfg.Node = defaultNode
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	store, err := NewStore()
	if err != nil {
		return nil, err
	}

	observability.RegisterMetrics()
	r := gin.New()
	r.MaxMultipartMemory = defaultMultipartBytes
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(cfg.Node))
	r.Use(cors.New(cors.Config{
		AllowOrigins:  normalizeOrigins(cfg.CorsOrigins),
		AllowMethods:  []string{"GET", "POST"},
		AllowHeaders:  []string{"Origin", "Content-Type", observability.RequestIDHeader},
		ExposeHeaders: []string{observability.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		cfg:     cfg,
		store:   store,
		router:  r,
		started: time.Now(),
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Store() *Store {
	return s.store
}

func (s *Server) Addr() string {
	return s.cfg.Addr
}

// Serve listens until ctx is cancelled, then drains in-flight requests.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("node", s.cfg.Node).Str("addr", s.cfg.Addr).Msg("mockapi listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info().Str("node", s.cfg.Node).Msg("mockapi stopped")
	return nil
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, origin := range origins {
		if v := strings.TrimSpace(origin); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return []string{"http://localhost:3000"}
	}
	return out
}
