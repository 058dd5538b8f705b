// Package app wires configuration, storage, services and HTTP routes into a
// runnable server. Both the CLI and the HTTP tests build through it.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"

	_ "assetlend/api/swagger" // swagger docs
	"assetlend/internal/authz"
	"assetlend/internal/config"
	"assetlend/internal/handler"
	"assetlend/internal/lock"
	"assetlend/internal/middleware"
	"assetlend/internal/repository"
	"assetlend/internal/security"
	"assetlend/internal/service"
	"assetlend/internal/websocket"
	"assetlend/pkg/metrics"
	"assetlend/pkg/response"
)

type Services struct {
	Auth       service.AuthService
	Users      service.UserService
	Roles      service.RoleService
	Categories service.CategoryService
	Assets     service.AssetService
	Loans      service.LoanService
	Audit      service.AuditService
	Statistics service.StatisticsService
}

type App struct {
	Config   config.Config
	Log      *zap.Logger
	DB       *gorm.DB
	Redis    *redis.Client
	Metrics  *metrics.Metrics
	Hub      *websocket.Hub
	Hasher   security.PasswordHasher
	Services Services
	Sweeper  *service.OverdueSweeper
	auth     *middleware.Auth
}

// Option customizes construction, mainly for tests.
type Option func(*options)

type options struct {
	clock  service.Clock
	hasher security.PasswordHasher
}

func WithClock(c service.Clock) Option {
	return func(o *options) { o.clock = c }
}

func WithHasher(h security.PasswordHasher) Option {
	return func(o *options) { o.hasher = h }
}

// New builds the dependency graph (Repository -> Service -> Handler).
func New(cfg config.Config, log *zap.Logger, db *gorm.DB, opts ...Option) (*App, error) {
	o := options{clock: service.SystemClock{}, hasher: security.NewBcryptHasher(0)}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Config: cfg, Log: log, DB: db, Hasher: o.hasher}
	if cfg.Metrics.Enabled {
		a.Metrics = metrics.New(cfg.Metrics)
	}
	a.Hub = websocket.NewHub(log.Named("ws"), cfg.Server.CORSOrigins)

	locker, err := a.newLocker()
	if err != nil {
		return nil, err
	}

	tm := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	assetRepo := repository.NewAssetRepository(db)
	loanRepo := repository.NewLoanRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	gate := authz.NewGate()
	tokens := security.NewHMACIssuer([]byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer)
	audit := service.NewAuditService(auditRepo, log.Named("audit"))

	a.Services = Services{
		Auth:       service.NewAuthService(userRepo, o.hasher, tokens, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL),
		Users:      service.NewUserService(userRepo, roleRepo, o.hasher, gate, audit),
		Roles:      service.NewRoleService(roleRepo, audit),
		Categories: service.NewCategoryService(categoryRepo, audit),
		Assets:     service.NewAssetService(tm, assetRepo, categoryRepo, userRepo, loanRepo, audit),
		Audit:      audit,
		Statistics: service.NewStatisticsService(repository.NewStatisticsRepository(db), o.clock),
		Loans: service.NewLoanService(service.LoanServiceDeps{
			TxManager: tm,
			Loans:     loanRepo,
			Assets:    assetRepo,
			Gate:      gate,
			Locker:    locker,
			Audit:     audit,
			Events:    a.Hub,
			Metrics:   a.Metrics,
			Clock:     o.clock,
			Logger:    log.Named("loans"),
		}),
	}
	a.Sweeper = service.NewOverdueSweeper(a.Services.Loans, cfg.Loans.SweepInterval, a.Metrics, log.Named("sweeper"))
	a.auth = middleware.NewAuth(a.Services.Auth, gate, cfg.Server.Mode == gin.ReleaseMode)
	return a, nil
}

// newLocker returns a Redis lease lock when Redis is enabled, otherwise an
// in-process keyed mutex.
func (a *App) newLocker() (lock.Locker, error) {
	ttl := a.Config.Loans.LockTTL
	if !a.Config.Redis.Enabled {
		return lock.NewLocalLocker(ttl), nil
	}
	a.Redis = redis.NewClient(&redis.Options{
		Addr:     a.Config.Redis.Addr,
		Password: a.Config.Redis.Password,
		DB:       a.Config.Redis.DB,
	})
	if err := a.Redis.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", a.Config.Redis.Addr, err)
	}
	a.Log.Info("using redis asset locks", zap.String("addr", a.Config.Redis.Addr))
	return lock.NewRedisLocker(a.Redis, a.Config.Redis.Prefix, ttl), nil
}

// Router builds the gin engine with every route mounted.
func (a *App) Router() *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestID(), middleware.Logger(a.Log), middleware.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(a.Config.Server.CORSOrigins) > 0 {
		corsConfig.AllowOrigins = a.Config.Server.CORSOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowCredentials = len(a.Config.Server.CORSOrigins) > 0
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", middleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	if a.Metrics != nil {
		router.Use(a.Metrics.Middleware())
		router.GET("/metrics", gin.WrapH(a.Metrics.Handler()))
	}

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", func(c *gin.Context) {
		sqlDB, err := a.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			response.JSON(c, response.Error(http.StatusServiceUnavailable, "Database unavailable", nil))
			return
		}
		response.OK(c, "OK", gin.H{"status": "OK"})
	})

	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(a.Hub, a.Services.Auth, c)
	})

	root := router.Group("")
	handler.NewAuthHandler(a.Services.Auth, a.auth, a.Config.Auth.AccessTTL, a.Config.Auth.RefreshTTL).RegisterRoutes(root)
	handler.NewUserHandler(a.Services.Users, a.auth).RegisterRoutes(root)
	handler.NewRoleHandler(a.Services.Roles, a.auth).RegisterRoutes(root)
	handler.NewCategoryHandler(a.Services.Categories, a.auth).RegisterRoutes(root)
	handler.NewAssetHandler(a.Services.Assets, a.auth).RegisterRoutes(root)
	handler.NewLoanHandler(a.Services.Loans, a.Sweeper, a.auth).RegisterRoutes(root)
	handler.NewAuditHandler(a.Services.Audit, a.auth).RegisterRoutes(root)
	handler.NewStatisticsHandler(a.Services.Statistics, a.auth).RegisterRoutes(root)

	return router
}

// Close releases the Redis client and the database pool.
func (a *App) Close() error {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
