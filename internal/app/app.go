package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sbw-site/geotrack/internal/config"
	"github.com/sbw-site/geotrack/internal/database"
	"github.com/sbw-site/geotrack/internal/middleware"
	"github.com/sbw-site/geotrack/internal/modules/gateway"
	"github.com/sbw-site/geotrack/internal/modules/location"
	"github.com/sbw-site/geotrack/internal/modules/movement"
	"github.com/sbw-site/geotrack/internal/modules/notify"
	"github.com/sbw-site/geotrack/internal/modules/periphery"
	"github.com/sbw-site/geotrack/internal/pkg/archive"
	pkgcron "github.com/sbw-site/geotrack/internal/pkg/cron"
	"github.com/sbw-site/geotrack/internal/pkg/jwt"
	pkgredis "github.com/sbw-site/geotrack/internal/pkg/redis"
)

// httpRateLimit is the per-IP request budget per second for the HTTP API.
const httpRateLimit = 30

// App holds all application dependencies.
type App struct {
	cfg    *config.AppConfig
	router *gin.Engine
	db     *gorm.DB
	rc     *pkgredis.Client
	hub    *gateway.Hub
	logger *zap.Logger
	cancel context.CancelFunc
	sched  *pkgcron.Scheduler
	loc    *time.Location
	signer *jwt.Signer

	store    *location.Store
	movement *movement.Service
}

// Services is the subset of the app the CLI needs without serving HTTP.
type Services struct {
	DB       *gorm.DB
	Location *time.Location
	Movement *movement.Service
}

// NewServices connects to the database and builds the analysis services.
func NewServices(logger *zap.Logger, cfg *config.AppConfig) (*Services, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	db, err := database.Connect(cfg, false)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	store := location.NewStore(db)
	provider := newProvider(db, cfg, logger)
	svc := movement.NewService(store, provider, newDispatcher(provider, cfg, logger), logger.Named("movement"))
	return &Services{DB: db, Location: loc, Movement: svc}, nil
}

// New initializes the application: config → DB → Redis → services → routes.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	db, err := database.Connect(cfg, false)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	rc, err := pkgredis.Connect(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}

	signer := jwt.NewSigner(cfg.JWTSecret)
	if cfg.JWTSecret == "" {
		logger.Warn("jwt_secret is empty, admin routes will reject every token")
	}

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(cors.New(corsConfig(cfg)))

	store := location.NewStore(db)
	provider := newProvider(db, cfg, logger)
	svc := movement.NewService(store, provider, newDispatcher(provider, cfg, logger), logger.Named("movement"))

	archiver, err := newArchiver(cfg)
	if err != nil {
		return nil, fmt.Errorf("archive: %w", err)
	}
	host, _ := os.Hostname()
	job := movement.NewJob(svc, movement.JobOptions{
		Workers:      cfg.Movement.JobWorkers,
		Lookback:     cfg.Movement.Lookback,
		Locker:       rc,
		Owner:        host,
		Archiver:     archiver,
		PathTemplate: cfg.Archive.PathTemplate,
	}, logger)

	pipeline := location.NewPipeline(store, loc, logger.Named("ingest"))
	hub := gateway.NewHub(pipeline, rc, logger, gateway.Options{
		FrequencyMinutes: cfg.Socket.FrequencyMinutes,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	sched := pkgcron.New(logger.Named("cron"))
	if cfg.Movement.JobEnabled {
		sched.Register(job.Definition())
		go sched.Start(ctx)
	}

	app := &App{
		cfg:      cfg,
		router:   router,
		db:       db,
		rc:       rc,
		hub:      hub,
		logger:   logger,
		cancel:   cancel,
		sched:    sched,
		loc:      loc,
		signer:   signer,
		store:    store,
		movement: svc,
	}
	app.registerRoutes()

	return app, nil
}

func newProvider(db *gorm.DB, cfg *config.AppConfig, logger *zap.Logger) *periphery.Provider {
	return periphery.NewProvider(db, periphery.Options{
		Timeout: cfg.Periphery.ParamsTimeout,
		Headers: cfg.Periphery.ParamsHeaders,
	}, logger.Named("periphery"))
}

func newDispatcher(endpoints notify.EndpointResolver, cfg *config.AppConfig, logger *zap.Logger) *notify.Dispatcher {
	port := notify.NewHTTPNotifier(notify.HTTPOptions{
		Timeout:       cfg.Notify.Timeout,
		RatePerSecond: cfg.Notify.RatePerSecond,
		Burst:         cfg.Notify.Burst,
	})
	return notify.NewDispatcher(endpoints, port, logger.Named("notify"))
}

// newArchiver returns nil when archiving is disabled.
func newArchiver(cfg *config.AppConfig) (archive.Archiver, error) {
	if !cfg.Archive.Enable {
		return nil, nil
	}
	s3, err := archive.NewS3(cfg.Archive)
	if err != nil {
		return nil, err
	}
	return s3, nil
}

func corsConfig(cfg *config.AppConfig) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
	}
	if len(cfg.AllowedOrigins) > 0 && !cfg.IsDev() {
		patterns := cfg.AllowedOrigins
		c.AllowOriginFunc = func(origin string) bool {
			host := extractOriginHost(origin)
			for _, pattern := range patterns {
				if matchOriginPattern(pattern, host) {
					return true
				}
			}
			return false
		}
	} else {
		c.AllowOriginFunc = func(string) bool { return true }
	}
	return c
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown stops background goroutines and closes connections.
func (a *App) Shutdown() {
	a.cancel()
	if err := a.rc.Close(); err != nil {
		a.logger.Warn("redis close failed", zap.Error(err))
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
