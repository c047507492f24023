package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/danmuck/drivectl/internal/auth"
	"github.com/danmuck/drivectl/internal/bridge"
	"github.com/danmuck/drivectl/internal/journal"
	logs "github.com/danmuck/drivectl/internal/logging"
	"github.com/danmuck/drivectl/internal/observability"
	"github.com/danmuck/drivectl/internal/relay"
	"github.com/danmuck/drivectl/internal/serialport"
)

const (
	DefaultAddr           = ":8080"
	DefaultStreamInterval = 250 * time.Millisecond
	Version               = "0.1.0"
)

// FaultHistory is the read side of the fault journal.
type FaultHistory interface {
	Recent(ctx context.Context, limit int) ([]journal.Entry, error)
}

// RelayLink is the command side of a serial relay.
type RelayLink interface {
	Name() string
	State() relay.State
	Send(cmd string) error
}

type Options struct {
	Addr        string
	CORSOrigins []string
	Controller  bridge.Controller
	// Faults may be nil when the journal is disabled.
	Faults FaultHistory
	Relays []RelayLink
	// ListPorts defaults to serialport.ListPorts.
	ListPorts      func() ([]serialport.PortInfo, error)
	StreamInterval time.Duration
	// Auth guards the POST control routes when set.
	Auth auth.Validator
}

func (o Options) withDefaults() Options {
	if o.Addr == "" {
		o.Addr = DefaultAddr
	}
	if o.ListPorts == nil {
		o.ListPorts = serialport.ListPorts
	}
	if o.StreamInterval <= 0 {
		o.StreamInterval = DefaultStreamInterval
	}
	return o
}

type Server struct {
	opts    Options
	router  *gin.Engine
	started time.Time
}

func New(opts Options) *Server {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(observability.ComponentLogger("http")))
	r.Use(observability.RequestMetricsMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(opts.CORSOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		opts:    opts.withDefaults(),
		router:  r,
		started: time.Now(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) Router() *gin.Engine { return s.router }

// Serve runs the HTTP server until ctx is cancelled, then shuts it down.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logs.Infof("server.Serve listening addr=%q", s.opts.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logs.Warnf("server.Serve shutdown err=%v", err)
		}
		return nil
	}
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
