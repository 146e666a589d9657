package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/framewright/backend/internal/config"
	apihttp "github.com/framewright/backend/internal/http"
	"github.com/framewright/backend/internal/logging"
	"github.com/framewright/backend/internal/monitoring"
	"github.com/framewright/backend/internal/registry"
	"github.com/framewright/backend/internal/ws"
)

// Server wraps the HTTP server and its dependencies.
type Server struct {
	cfg      *config.Config
	log      *logging.Logger
	router   *gin.Engine
	sessions *registry.Manager
	httpSrv  *http.Server
}

// New creates a server instance from configuration.
func New(cfg *config.Config, log *logging.Logger) *Server {
	if log == nil {
		log = logging.NewDefault()
	}
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	metrics := monitoring.New(prometheus.DefaultRegisterer)
	sessions := registry.NewManager(log, metrics)
	handlers := apihttp.NewHandlers(sessions, cfg.Guest, log, metrics)
	wsHandler := ws.NewHandler(sessions, cfg.RateLimit, log, metrics)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(monitoring.Middleware(metrics))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Guest attach points.
	router.GET("/ws/editor", wsHandler.HandleEditor)
	router.GET("/ws/preview", wsHandler.HandlePreview)

	// Session lifecycle.
	router.POST("/sessions", handlers.CreateSession)
	router.GET("/sessions", handlers.ListSessions)
	router.GET("/sessions/:id", handlers.GetSession)
	router.DELETE("/sessions/:id", handlers.DeleteSession)

	// Declarative inputs.
	router.GET("/sessions/:id/code", handlers.GetCode)
	router.POST("/sessions/:id/code", handlers.SetCode)
	router.POST("/sessions/:id/variables", handlers.SetVariables)
	router.POST("/sessions/:id/composition", handlers.SetComposition)

	// Editor control verbs.
	editor := router.Group("/sessions/:id/editor")
	editor.POST("/load", handlers.EditorLoad)
	editor.POST("/refresh", handlers.EditorRefresh)
	editor.POST("/format", handlers.EditorFormat)
	editor.POST("/undo", handlers.EditorUndo)
	editor.POST("/redo", handlers.EditorRedo)
	editor.POST("/font-size", handlers.EditorFontSize)
	editor.POST("/word-wrap", handlers.EditorWordWrap)
	editor.POST("/line-numbers", handlers.EditorLineNumbers)
	editor.POST("/reveal-line", handlers.EditorRevealLine)
	editor.POST("/theme", handlers.EditorTheme)
	editor.POST("/readonly", handlers.EditorReadOnly)

	// Preview control verbs.
	preview := router.Group("/sessions/:id/preview")
	preview.POST("/play", handlers.PreviewPlay)
	preview.POST("/pause", handlers.PreviewPause)
	preview.POST("/seek", handlers.PreviewSeek)
	preview.POST("/resolution", handlers.PreviewResolution)
	preview.POST("/speed", handlers.PreviewSpeed)
	preview.POST("/loop", handlers.PreviewLoop)
	preview.POST("/load", handlers.PreviewLoad)
	preview.POST("/variables", handlers.PreviewVariables)

	return &Server{
		cfg:      cfg,
		log:      log,
		router:   router,
		sessions: sessions,
	}
}

// Run starts the server and blocks until it stops.
func (s *Server) Run() error {
	addr := fmt.Sprintf("%s:%s", s.cfg.Server.Host, s.cfg.Server.Port)
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info("server starting", zap.String("addr", addr))
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Close shuts the server down gracefully and disposes every session.
func (s *Server) Close() error {
	if s.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.log.Warn("shutdown incomplete", zap.Error(err))
		}
	}
	s.sessions.Close()
	return nil
}
