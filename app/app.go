package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"homehub/api"
	"homehub/automation"
	"homehub/cache"
	"homehub/config"
	"homehub/database"
	"homehub/database/actions"
	"homehub/database/webhooks"
	"homehub/devices"
	"homehub/events"
	"homehub/gateway"
	"homehub/handlers"
	"homehub/logger"
	"homehub/notifications"
	"homehub/realtime"
)

const shutdownTimeout = 10 * time.Second

// App represents the main application
type App struct {
	config         *config.Config
	log            *logger.Logger
	db             *database.Database
	redis          *cache.RedisClient
	cache          *cache.AutomationCache
	broker         *realtime.Broker
	webhookManager *notifications.WebhookManager
	gateway        *gateway.Gateway
	handlerManager *handlers.HandlerManager
	pruner         *ActionPruner
	svc            *automation.Service
}

// New creates a new application instance. Nothing is opened until Init.
func New(cfg *config.Config, log *logger.Logger) *App {
	return &App{
		config: cfg,
		log:    logger.OrNop(log),
	}
}

// Service returns the wired automation pipeline. Valid after Init.
func (a *App) Service() *automation.Service {
	return a.svc
}

// Redis returns the Redis client, nil when caching is disabled
func (a *App) Redis() *cache.RedisClient {
	return a.redis
}

// Init opens storage and wires every component
func (a *App) Init(ctx context.Context) error {
	// 1. Database Connection
	a.log.Info("🗄️  Connecting to database...", "driver", a.config.DatabaseDriver)
	db, err := database.Connect(a.config)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	a.db = db
	if err := a.db.InitSchema(); err != nil {
		return fmt.Errorf("schema initialization failed: %w", err)
	}

	// 2. Redis Connection
	if a.config.RedisEnabled {
		a.log.Info("🧠 Connecting to Redis...")
		a.redis = cache.NewRedisClient(ctx, a.config.RedisHost, a.config.RedisPort, a.config.RedisPassword, a.log)
	}
	a.cache = cache.NewAutomationCache(a.redis)

	// 3. Event sinks
	a.broker = realtime.NewBroker(a.log)
	a.webhookManager = notifications.NewWebhookManager(webhooks.NewRepository(a.db.DB()), a.cache, a.log)

	// 4. Device backend
	controller, err := a.setupController()
	if err != nil {
		return err
	}

	// 5. Automation pipeline
	a.svc = automation.NewService(automation.Deps{
		DB:         a.db.DB(),
		Config:     a.config,
		Controller: controller,
		Cache:      a.cache,
		Events:     events.Multi{a.broker, a.webhookManager, a.cache},
		Log:        a.log,
	})

	// 6. Gateway inbound handlers need the pipeline
	if a.gateway != nil {
		a.setupHandlers()
	}

	a.pruner = NewActionPruner(actions.NewRepository(a.db.DB()), a.config.Learning.RetentionDays, a.log)
	return nil
}

func (a *App) setupController() (devices.Controller, error) {
	switch a.config.Devices.Backend {
	case "gateway":
		a.gateway = gateway.New(gateway.Options{
			URL:            a.config.Devices.GatewayURL,
			Token:          a.config.Devices.GatewayToken,
			CommandTimeout: a.config.Devices.CommandTimeout,
		}, a.log)
		a.log.Info("📡 Using device gateway", "url", a.config.Devices.GatewayURL)
		return a.gateway, nil
	case "mock", "":
		devs := devices.DefaultDevices()
		if a.config.Devices.SeedFile != "" {
			seeded, err := devices.LoadSeed(a.config.Devices.SeedFile)
			if err != nil {
				return nil, fmt.Errorf("device seed failed: %w", err)
			}
			devs = seeded
		}
		a.log.Info("💡 Using in-memory devices", "count", len(devs))
		return devices.NewMock(devs), nil
	default:
		return nil, fmt.Errorf("unknown device backend %q", a.config.Devices.Backend)
	}
}

// setupHandlers registers the gateway message handlers
func (a *App) setupHandlers() {
	a.handlerManager = handlers.NewHandlerManager(a.log)
	a.handlerManager.RegisterHandler("state_change", handlers.NewStateChangeHandler(a.svc.Recorder, a.svc.Events, a.log))
	a.handlerManager.RegisterHandler("device_event", handlers.NewDeviceEventHandler(a.svc.Events))
	a.gateway.SetInbound(a.handlerManager)
}

// Start runs the hub until SIGINT or SIGTERM
func (a *App) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Init(ctx); err != nil {
		a.Close()
		return err
	}
	err := a.Run(ctx)
	a.Close()
	return err
}

// Run serves the API and runs the background loops until ctx ends or one
// of them fails.
func (a *App) Run(ctx context.Context) error {
	if a.svc == nil {
		return errors.New("app not initialized")
	}
	g, ctx := errgroup.WithContext(ctx)

	apiServer := api.NewServer(a.svc, a.webhookManager, a.broker, a.log)
	g.Go(func() error {
		return apiServer.Start(a.config.APIPort)
	})
	g.Go(func() error {
		return a.broker.Run(ctx)
	})
	g.Go(func() error {
		return a.pruner.Run(ctx)
	})
	if a.gateway != nil {
		g.Go(func() error {
			return a.gateway.Run(ctx)
		})
	}
	if a.config.Scheduler.Enabled {
		a.svc.Scheduler.Start(ctx)
	} else {
		a.log.Info("ℹ️  Automation scheduler DISABLED")
	}

	// Wait for shutdown signal or a failed component
	g.Go(func() error {
		<-ctx.Done()
		a.log.Info("🛑 Shutdown signal received, initiating graceful shutdown...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		a.svc.Scheduler.Stop()
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			a.log.Warn("⚠️  API shutdown incomplete", "error", err)
		}
		a.webhookManager.Wait()
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	a.log.Info("✅ Graceful shutdown completed")
	return nil
}

// ConnectDevices runs the gateway session in the background until ctx ends
// and waits up to timeout for it to connect. The mock backend is always ready.
func (a *App) ConnectDevices(ctx context.Context, timeout time.Duration) error {
	if a.gateway == nil {
		return nil
	}
	go func() { _ = a.gateway.Run(ctx) }()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return gateway.ErrNotConnected
		case <-ticker.C:
			if a.gateway.Connected() {
				return nil
			}
		}
	}
}

// Close waits for pending webhook deliveries, then releases the database
// and Redis connections
func (a *App) Close() {
	if a.webhookManager != nil {
		a.webhookManager.Wait()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("Error closing database", "error", err)
		} else {
			a.log.Info("✅ Database connection closed")
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("Error closing redis", "error", err)
		} else {
			a.log.Info("✅ Redis connection closed")
		}
	}
}
