// internal/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/yusukekikuta0509/projectKAIKA/internal/api"
	"github.com/yusukekikuta0509/projectKAIKA/internal/auth"
	"github.com/yusukekikuta0509/projectKAIKA/internal/config"
	"github.com/yusukekikuta0509/projectKAIKA/internal/di"
	"github.com/yusukekikuta0509/projectKAIKA/internal/messaging"
	"github.com/yusukekikuta0509/projectKAIKA/internal/services"
	"github.com/yusukekikuta0509/projectKAIKA/internal/storage"
	"github.com/yusukekikuta0509/projectKAIKA/internal/utils"
)

const (
	shutdownTimeout      = 30 * time.Second
	reapInterval         = time.Minute
	progressSweep        = 5 * time.Minute
	progressRetention    = 10 * time.Minute
	websocketSweep       = 30 * time.Second
	limiterSweep         = time.Minute
	storageCacheSweep    = 5 * time.Minute
	generatedSecretBytes = 32
)

type server interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// App owns the HTTP server and the background sweepers.
type App struct {
	config    *config.Config
	container *di.Container
	router    http.Handler
	server    server
	stopChan  chan os.Signal
	cancel    context.CancelFunc
}

var (
	instance   *App
	instanceMu sync.Mutex
)

// GetApp returns the process wide application.
func GetApp() *App {
	instanceMu.Lock()
	defer instanceMu.Unlock()

	if instance == nil {
		instance = &App{
			container: di.GetContainer(),
			stopChan:  make(chan os.Signal, 1),
		}
	}
	return instance
}

func GetDIContainer() *di.Container {
	return di.GetContainer()
}

func (a *App) GetConfig() *config.Config {
	return a.config
}

func IsDebugMode() bool {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	return instance != nil && instance.config != nil && instance.config.DebugMode
}

// Initialize loads the environment, starts logging and builds every service and the router.
func Initialize() error {
	cfg, err := config.InitConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	return GetApp().Setup(cfg)
}

// Setup wires the application for cfg.
func (a *App) Setup(cfg *config.Config) error {
	a.config = cfg
	if a.container == nil {
		a.container = di.GetContainer()
	}

	if err := initLogger(cfg); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := InitServices(a.container, cfg); err != nil {
		return fmt.Errorf("init services: %w", err)
	}

	router, _, err := api.SetupRouter(a.container)
	if err != nil {
		return fmt.Errorf("setup router: %w", err)
	}
	a.router = router
	a.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

func initLogger(cfg *config.Config) error {
	logFile := filepath.Join(cfg.LogDir, fmt.Sprintf("kaika_%s.log", time.Now().Format("2006-01-02")))
	return utils.InitLogger(logFile, utils.ParseLogLevel(cfg.LogLevel))
}

// InitServices registers every service in dependency order.
func InitServices(container *di.Container, cfg *config.Config) error {
	logger := utils.GetLogger()
	metrics := utils.GetMetricsCollector()
	container.Register(di.ServiceConfig, cfg)
	container.Register(di.ServiceMetrics, metrics)

	store, err := storage.NewFileStorage(cfg.DataDir, nil)
	if err != nil {
		return err
	}
	container.Register(di.ServiceStorage, store)
	container.Register(di.ServiceExports, services.NewExportService(store, nil))

	tuning, err := config.LoadTuning(cfg.TuningFile)
	if err != nil {
		return err
	}
	tuningService := services.NewConfigService(tuning, cfg.TuningFile, nil)
	tuningService.EnableAudit(true)
	container.Register(di.ServiceTuning, tuningService)

	catalog, err := services.NewCatalogService(store, cfg.CatalogFile)
	if err != nil {
		return err
	}
	container.Register(di.ServiceCatalog, catalog)

	progress := services.NewProgressService(nil)
	container.Register(di.ServiceProgress, progress)

	manager := api.NewWebSocketManager(metrics, nil)
	container.Register(di.ServiceWebSockets, manager)

	bus := services.NewEventBus(metrics)
	bus.AddSink(services.LogSink{Logger: logger})
	bus.AddSink(manager)
	if len(cfg.KafkaBrokers) > 0 {
		sink := messaging.NewKafkaSink(messaging.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic, logger), cfg.KafkaTopic, logger)
		bus.AddSink(sink)
		container.Register(di.ServiceKafka, sink)
		logger.Info("publishing session events to kafka", map[string]interface{}{
			"brokers": cfg.KafkaBrokers,
			"topic":   cfg.KafkaTopic,
		})
	}
	container.Register(di.ServiceEvents, bus)

	sessions := services.NewSessionService(services.SessionServiceOptions{
		Config:   tuningService,
		Catalog:  catalog,
		Events:   bus,
		Progress: progress,
		Metrics:  metrics,
		TTL:      cfg.SessionTTL,
	})
	container.Register(di.ServiceSessions, sessions)

	secret := []byte(cfg.AuthSecret)
	if len(secret) == 0 {
		if secret, err = auth.GenerateSecureKey(generatedSecretBytes); err != nil {
			return err
		}
		logger.Warn("AUTH_SECRET_KEY not set, using a random key; tokens will not survive a restart", nil)
	}
	tokens, err := auth.NewTokenService(auth.TokenConfig{Secret: secret}, nil)
	if err != nil {
		return err
	}
	container.Register(di.ServiceTokens, tokens)
	container.Register(di.ServiceLimiter, api.NewRateLimiter(nil))

	logger.Info("services initialized", map[string]interface{}{"services": container.GetNames()})
	return nil
}

// Run serves on the singleton until a signal arrives or the server fails.
func Run() error {
	return GetApp().Run()
}

func (a *App) Run() error {
	if a.server == nil {
		return errors.New("app not initialized")
	}
	logger := utils.GetLogger()

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.startBackground(ctx)

	signal.Notify(a.stopChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(a.stopChan)

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	if a.config != nil {
		logger.Info("server listening", map[string]interface{}{"port": a.config.Port})
	}

	var runErr error
	select {
	case sig := <-a.stopChan:
		logger.Info("shutting down", map[string]interface{}{"signal": sig.String()})
	case runErr = <-errCh:
		logger.Error("server failed", map[string]interface{}{"error": runErr.Error()})
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()
	if err := a.server.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("server shutdown: %w", err)
	}

	a.cleanup()
	return runErr
}

// startBackground launches the sweepers for whichever services are registered.
func (a *App) startBackground(ctx context.Context) {
	c := a.container
	if c == nil {
		return
	}
	if sessions, err := di.Resolve[*services.SessionService](c, di.ServiceSessions); err == nil {
		sessions.StartReaper(ctx, reapInterval)
	}
	if manager, err := di.Resolve[*api.WebSocketManager](c, di.ServiceWebSockets); err == nil {
		manager.StartCleanup(ctx, websocketSweep)
	}
	if limiter, err := di.Resolve[*api.RateLimiter](c, di.ServiceLimiter); err == nil {
		limiter.StartCleanup(ctx, limiterSweep)
	}
	if store, err := di.Resolve[*storage.FileStorage](c, di.ServiceStorage); err == nil {
		store.StartCacheCleanup(ctx, storageCacheSweep)
	}
	if progress, err := di.Resolve[*services.ProgressService](c, di.ServiceProgress); err == nil {
		go func() {
			ticker := time.NewTicker(progressSweep)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					progress.CleanupCompletedTasks(progressRetention)
				}
			}
		}()
	}
}

// cleanup stops the sweepers and releases every service that holds resources.
func (a *App) cleanup() {
	logger := utils.GetLogger()
	if a.cancel != nil {
		a.cancel()
	}

	c := a.container
	if c != nil {
		if sessions, err := di.Resolve[*services.SessionService](c, di.ServiceSessions); err == nil {
			sessions.Shutdown()
		}
		if manager, err := di.Resolve[*api.WebSocketManager](c, di.ServiceWebSockets); err == nil {
			manager.Shutdown()
		}
		if sink, err := di.Resolve[*messaging.KafkaSink](c, di.ServiceKafka); err == nil {
			if err := sink.Close(); err != nil {
				logger.Warn("kafka writer close failed", map[string]interface{}{"error": err.Error()})
			}
		}
	}

	logger.Info("cleanup complete", nil)
	_ = logger.Sync()
}
