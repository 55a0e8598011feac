package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jebisys/switchboard/internal/api/websocket"
	"github.com/jebisys/switchboard/internal/auth"
	"github.com/jebisys/switchboard/internal/config"
	"github.com/jebisys/switchboard/internal/configfiles"
	"github.com/jebisys/switchboard/internal/device"
	"github.com/jebisys/switchboard/internal/reconcile"
	"github.com/jebisys/switchboard/internal/storage"
	"github.com/jebisys/switchboard/internal/systemd"
	"go.uber.org/zap"
)

type Server struct {
	router      *gin.Engine
	server      *http.Server
	logger      *zap.Logger
	tokenTTL    time.Duration
	authService *auth.AuthService
	store       *storage.Store
	driver      device.Driver
	reconciler  *reconcile.Reconciler
	services    *systemd.Manager
	editor      *configfiles.Editor
	logBrowser  *configfiles.LogBrowser
	wsHub       *websocket.Hub
}

type Deps struct {
	AuthService *auth.AuthService
	Store       *storage.Store
	Driver      device.Driver
	Reconciler  *reconcile.Reconciler
	Services    *systemd.Manager
	Editor      *configfiles.Editor
	LogBrowser  *configfiles.LogBrowser
	WSHub       *websocket.Hub
}

func NewServer(cfg *config.Config, deps Deps, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router:      gin.New(),
		logger:      logger,
		tokenTTL:    cfg.Auth.AccessTokenTTL,
		authService: deps.AuthService,
		store:       deps.Store,
		driver:      deps.Driver,
		reconciler:  deps.Reconciler,
		services:    deps.Services,
		editor:      deps.Editor,
		logBrowser:  deps.LogBrowser,
		wsHub:       deps.WSHub,
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) Start() error {
	s.logger.Info("Starting REST API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Fatal("REST server failed", zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down REST API server")
	return s.server.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	// Middleware
	s.router.Use(gin.Recovery())
	s.router.Use(LoggerMiddleware(s.logger))
	s.router.Use(CORSMiddleware())

	// Public routes (no auth required)
	s.router.GET("/health", s.healthCheck)

	// API v1
	v1 := s.router.Group("/api/v1")
	{
		// ==================== AUTH ENDPOINTS (PUBLIC) ====================
		authPublic := v1.Group("/auth")
		{
			authPublic.POST("/login", s.login)
			authPublic.POST("/refresh", s.refreshToken)
		}

		// ==================== AUTH ENDPOINTS (AUTHENTICATED) ====================
		authProtected := v1.Group("/auth")
		authProtected.Use(s.authService.AuthMiddleware())
		{
			authProtected.POST("/logout", s.logout)
			authProtected.GET("/me", s.getCurrentUser)
		}

		// ==================== RELAYS (OPERATOR+) ====================
		relays := v1.Group("/relays")
		relays.Use(s.authService.AuthMiddleware())
		relays.Use(auth.RequirePermission(auth.PermOperator))
		{
			relays.GET("", s.listRelays)
			relays.GET("/time", s.getDeviceTime)
			relays.GET("/:id/status", s.getRelayStatus)
			relays.POST("/:id/toggle", s.toggleRelay)
			relays.POST("/:id/check", s.checkRelay)
			relays.POST("/check", s.checkAllRelays)
		}

		// ==================== SCHEDULES (OPERATOR+) ====================
		schedules := v1.Group("/schedules")
		schedules.Use(s.authService.AuthMiddleware())
		schedules.Use(auth.RequirePermission(auth.PermOperator))
		{
			schedules.GET("", s.listSchedules)
			schedules.GET("/:device", s.getSchedule)
			schedules.PUT("/:device", s.saveSchedule)
			schedules.PATCH("/:device/enabled", s.setScheduleEnabled)
			schedules.DELETE("/:device", s.deleteSchedule)
		}

		// ==================== ANALYTICS (OPERATOR+) ====================
		analytics := v1.Group("/analytics")
		analytics.Use(s.authService.AuthMiddleware())
		analytics.Use(auth.RequirePermission(auth.PermOperator))
		{
			analytics.GET("/activations", s.listActivations)
			analytics.GET("/summary", s.activationSummary)
		}

		// ==================== SERVICES ====================
		services := v1.Group("/services")
		services.Use(s.authService.AuthMiddleware())
		{
			services.GET("", auth.RequirePermission(auth.PermOperator), s.listServices)
			services.GET("/:name", auth.RequirePermission(auth.PermOperator), s.getServiceStatus)
			services.POST("/:name/control", auth.RequirePermission(auth.PermAdmin), s.controlService)
		}

		// ==================== CONFIG FILES (ADMIN ONLY) ====================
		configGroup := v1.Group("/config")
		configGroup.Use(s.authService.AuthMiddleware())
		configGroup.Use(auth.RequirePermission(auth.PermAdmin))
		{
			configGroup.GET("/device-map", s.getDeviceMap)
			configGroup.PUT("/device-map", s.putDeviceMap)
		}

		// ==================== LOG FILES (ADMIN ONLY) ====================
		logs := v1.Group("/logs")
		logs.Use(s.authService.AuthMiddleware())
		logs.Use(auth.RequirePermission(auth.PermAdmin))
		{
			logs.GET("", s.listLogFiles)
			logs.GET("/:name/download", s.downloadLogFile)
			logs.POST("/download", s.downloadLogZip)
		}

		// ==================== WEBSOCKET (PUBLIC - Auth via first message) ====================
		ws := v1.Group("/ws")
		{
			ws.GET("/live", s.wsLiveConnection)
			ws.GET("/status", s.authService.AuthMiddleware(), auth.RequirePermission(auth.PermOperator), s.wsStatus)
		}
	}
}

// WebSocket handlers
func (s *Server) wsLiveConnection(c *gin.Context) {
	websocket.ServeWs(s.wsHub, c.Writer, c.Request)
}

func (s *Server) wsStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"connected_clients": s.wsHub.GetClientCount(),
	})
}

// Health check (public)
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}
