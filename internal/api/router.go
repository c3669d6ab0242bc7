// internal/api/router.go
package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yusukekikuta0509/projectKAIKA/internal/auth"
	"github.com/yusukekikuta0509/projectKAIKA/internal/config"
	"github.com/yusukekikuta0509/projectKAIKA/internal/di"
	"github.com/yusukekikuta0509/projectKAIKA/internal/services"
	"github.com/yusukekikuta0509/projectKAIKA/internal/utils"
)

// RouterOptions are the cross-cutting settings of the HTTP surface.
type RouterOptions struct {
	DebugMode          bool
	RateLimitPerMinute int
	AdminToken         string
	Metrics            *utils.MetricsCollector
	Logger             *utils.Logger
	Limiter            *RateLimiter
}

// SetupRouter builds the router from the services registered in the container.
func SetupRouter(container *di.Container) (*gin.Engine, *Handler, error) {
	cfg, err := di.Resolve[*config.Config](container, di.ServiceConfig)
	if err != nil {
		cfg = config.GetCurrentConfig()
	}
	sessions, err := di.Resolve[*services.SessionService](container, di.ServiceSessions)
	if err != nil {
		return nil, nil, err
	}
	catalog, err := di.Resolve[*services.CatalogService](container, di.ServiceCatalog)
	if err != nil {
		return nil, nil, err
	}
	progress, err := di.Resolve[*services.ProgressService](container, di.ServiceProgress)
	if err != nil {
		return nil, nil, err
	}
	tuning, err := di.Resolve[*services.ConfigService](container, di.ServiceTuning)
	if err != nil {
		return nil, nil, err
	}
	tokens, err := di.Resolve[*auth.TokenService](container, di.ServiceTokens)
	if err != nil {
		return nil, nil, err
	}
	metrics, err := di.Resolve[*utils.MetricsCollector](container, di.ServiceMetrics)
	if err != nil {
		return nil, nil, err
	}
	manager, err := di.Resolve[*WebSocketManager](container, di.ServiceWebSockets)
	if err != nil {
		return nil, nil, fmt.Errorf("websocket manager: %w", err)
	}

	// optional; NewRouter falls back to a private limiter
	limiter, _ := di.Resolve[*RateLimiter](container, di.ServiceLimiter)

	handler := NewHandler(sessions, catalog, progress, tuning, tokens, manager)
	if exports, err := di.Resolve[*services.ExportService](container, di.ServiceExports); err == nil {
		handler.Exports = exports
	}
	router := NewRouter(handler, RouterOptions{
		DebugMode:          cfg.DebugMode,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		AdminToken:         cfg.AdminToken,
		Metrics:            metrics,
		Logger:             utils.GetLogger(),
		Limiter:            limiter,
	})
	return router, handler, nil
}

// NewRouter registers every route on a fresh engine.
func NewRouter(handler *Handler, opts RouterOptions) *gin.Engine {
	if !opts.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}
	if opts.Metrics == nil {
		opts.Metrics = utils.GetMetricsCollector()
	}
	if opts.Logger == nil {
		opts.Logger = utils.GetLogger()
	}
	if opts.Limiter == nil {
		opts.Limiter = NewRateLimiter(nil)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(opts.Logger))
	r.Use(MetricsMiddleware(opts.Metrics))
	r.Use(corsMiddleware())

	r.GET("/healthz", handler.Healthz)
	r.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))

	requireToken := RequireSessionToken(handler.Tokens)
	r.GET("/ws/sessions/:id", requireToken, handler.WebSocketHandler.SessionWebSocket)

	api := r.Group("/api")
	api.Use(RateLimitByIP(opts.Limiter, opts.RateLimitPerMinute, time.Minute))
	{
		api.GET("/catalog", handler.GetCatalog)
		api.GET("/terrains", handler.GetTerrains)
		api.GET("/scene/layout", handler.SceneLayout)
		api.GET("/progress/:taskID", handler.SubscribeProgress)

		api.GET("/tuning", handler.GetTuning)
		admin := api.Group("/tuning", RequireAdmin(opts.AdminToken, opts.DebugMode))
		{
			admin.PUT("", handler.UpdateTuning)
			admin.POST("/reload", handler.ReloadTuning)
		}

		api.POST("/sessions", handler.CreateSession)

		sessionGroup := api.Group("/sessions/:id", requireToken)
		{
			sessionGroup.GET("", handler.GetSession)
			sessionGroup.DELETE("", handler.CloseSession)
			sessionGroup.PUT("/wallet", handler.SetWallet)
			sessionGroup.GET("/transactions", handler.Transactions)
			sessionGroup.GET("/export", handler.ExportLedger)

			device := sessionGroup.Group("/device")
			{
				device.POST("/connect", handler.ConnectDevice)
				device.POST("/disconnect", handler.DisconnectDevice)
				device.POST("/modal", handler.SetModal)
			}

			feelings := sessionGroup.Group("/feelings")
			{
				feelings.GET("", handler.ListFeelings)
				feelings.POST("/:fid/purchase", handler.Purchase)
				feelings.POST("/:fid/select", handler.SelectFeeling)
			}

			playback := sessionGroup.Group("/playback")
			{
				playback.POST("/toggle", handler.TogglePlayback)
				playback.PUT("/intensity", handler.SetIntensity)
			}

			collection := sessionGroup.Group("/collection")
			{
				collection.PUT("/terrain", handler.SelectTerrain)
				collection.POST("/start", handler.StartCollection)
				collection.POST("/stop", handler.StopCollection)
				collection.POST("/submit", handler.SubmitCollection)
				collection.POST("/reset", handler.ResetCollection)
			}

			sessionGroup.GET("/scene/frame", handler.SceneFrame)
		}
	}

	return r
}
