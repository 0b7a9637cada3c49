// Package api — локальный HTTP- и WebSocket-интерфейс для оболочки приложения.
package api

import (
	"BanterStudio/internal/app/exporter"
	"BanterStudio/internal/app/pipeline"
	"BanterStudio/internal/app/playback"
	"BanterStudio/internal/app/store"
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Deps — компоненты, которыми управляет API.
type Deps struct {
	Store    *store.Store
	Pipeline *pipeline.Pipeline
	Player   *playback.Sequencer
	Exporter *exporter.Exporter
	// Gatherer отдаётся на /metrics; nil — реестр по умолчанию.
	Gatherer prometheus.Gatherer
}

type Server struct {
	addr    string
	deps    Deps
	srv     *http.Server
	hub     *hub
	logger  *zap.SugaredLogger
	running atomic.Bool

	// Контекст фоновых генераций, отменяется в Stop
	jobs       context.Context
	cancelJobs context.CancelFunc

	batchMu     sync.Mutex
	cancelBatch context.CancelFunc

	unsubscribe func()
	unfollow    func()
}

func New(addr string, deps Deps, logger *zap.SugaredLogger) *Server {
	if addr == "" {
		addr = "127.0.0.1:8700"
	}
	s := &Server{addr: addr, deps: deps, logger: logger, hub: newHub(logger)}
	s.jobs, s.cancelJobs = context.WithCancel(context.Background())

	s.unsubscribe = deps.Store.Subscribe(func(snap store.Snapshot) {
		s.hub.broadcast(eventProject, viewOf(snap))
	})
	s.unfollow = deps.Player.Follow(deps.Store)
	deps.Player.OnChange(func(st playback.State) {
		s.hub.broadcast(eventPlayback, s.playbackView(st))
	})

	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler возвращает роутер; отдельно от Start, чтобы его можно было поднять в тестах.
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}))
	router.Use(middleware.StripSlashes)
	router.Use(middleware.Recoverer)
	router.Use(s.logRequests)

	if s.deps.Gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))
	} else {
		router.Handle("/metrics", promhttp.Handler())
	}
	router.Get("/health", s.health)
	router.Get("/ws", s.serveWS)

	router.Route("/projects", func(r chi.Router) {
		r.Get("/", s.listProjects)
		r.Post("/", s.createProject)
		r.Post("/{key}/load", s.loadProject)
		r.Delete("/{key}", s.deleteProject)
	})

	router.Route("/project", func(r chi.Router) {
		r.Get("/", s.getProject)
		r.Post("/save", s.saveProject)
		r.Post("/rename", s.renameProject)
		r.Post("/clear", s.clearWorkspace)
		r.Post("/import", s.importScript)
		r.Put("/scroll", s.setScroll)
		r.Put("/speakers/{role}", s.setSpeakerName)
		r.Put("/voices/{role}", s.setVoice)

		r.Post("/utterances", s.addUtterance)
		r.Put("/utterances/{id}", s.updateUtterance)
		r.Delete("/utterances/{id}", s.deleteUtterance)
		r.Post("/utterances/{id}/generate", s.generateOne)

		r.Post("/generate", s.generateAll)
		r.Delete("/generate", s.cancelGenerateAll)
	})

	router.Route("/playback", func(r chi.Router) {
		r.Get("/", s.playbackState)
		r.Post("/toggle", s.togglePlayback)
		r.Post("/stop", s.stopPlayback)
	})

	router.Route("/export", func(r chi.Router) {
		r.Get("/", s.exportPlan)
		r.Post("/", s.export)
	})

	return router
}

// Start начинает слушать адрес. При ошибке привязки порта возвращает её сразу.
func (s *Server) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return nil
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return err
	}
	s.addr = ln.Addr().String()

	go func() {
		s.logger.Infow("API listening", "addr", s.addr)
		if err := s.srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) && err != nil {
			s.logger.Errorw("API stopped with error", "error", err)
		} else {
			s.logger.Infow("API stopped")
		}
	}()

	go func() {
		<-ctx.Done()
		_ = s.Stop(context.WithoutCancel(ctx))
	}()
	return nil
}

// Stop отменяет фоновые генерации, закрывает WebSocket-клиентов и останавливает сервер.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	s.cancelJobs()
	s.unsubscribe()
	s.unfollow()
	s.hub.closeAll()

	shutdownCtx, cancel := context.WithTimeoutCause(ctx, 5*time.Second, errors.New("api shutdown timeout"))
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warnw("graceful shutdown error", "error", err)
		return s.srv.Close()
	}
	return nil
}

func (s *Server) Addr() string { return s.addr }

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		metrics.Requests.WithLabelValues(r.Method, route, statusClass(ww.Status())).Inc()
		s.logger.Debugw("API request",
			"method", r.Method,
			"route", route,
			"status", ww.Status(),
			"took", time.Since(started).String(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func statusClass(code int) string {
	switch {
	case code == 0:
		return "hijacked"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	}
	return "5xx"
}
