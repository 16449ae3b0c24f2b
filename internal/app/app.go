package app

import (
	"context"
	"course_homework_backend/internal/config"
	"course_homework_backend/internal/controller"
	"course_homework_backend/internal/middleware"
	"course_homework_backend/internal/repository"
	"course_homework_backend/internal/service"
	"course_homework_backend/internal/util"
	"course_homework_backend/pkg/configwatcher"
	"course_homework_backend/pkg/database"
	"course_homework_backend/pkg/logger"
	"course_homework_backend/pkg/monitoring"
	"course_homework_backend/pkg/security"
	"course_homework_backend/pkg/tracing"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config    *config.Config
	ConfigDir string
	Router    *gin.Engine
	DB        *gorm.DB
	Redis     *redis.Client

	services        *services
	limiter         *security.IPLimiter
	tracer          *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)
}

type repositories struct {
	store  repository.HomeworkStore
	locker repository.KeyLocker
	cache  *repository.AnswerKeyCache
}

type services struct {
	records  *service.RecordService
	homework *service.HomeworkService
}

type controllers struct {
	homework *controller.HomeworkController
	health   *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB, rdb *redis.Client) *repositories {
	repos := &repositories{
		locker: repository.NoopKeyLocker{},
		cache:  repository.NewAnswerKeyCache(rdb),
	}
	if db != nil {
		repos.store = repository.NewHomeworkRepository(db)
	} else {
		repos.store = repository.NewMemoryHomeworkStore()
	}
	if rdb != nil {
		repos.locker = repository.NewRedisKeyLocker(rdb)
	}
	return repos
}

func (a *App) initServices(repos *repositories, cfg *config.Config) *services {
	s := &services{}
	s.records = service.NewRecordService(repos.store, cfg.Homework)
	s.homework = service.NewHomeworkService(s.records, repos.locker, repos.cache)

	a.RegisterConfigCallback(func(c *config.Config) {
		s.records.ApplyConfig(c.Homework)
	})
	return s
}

func (a *App) initControllers(s *services) *controllers {
	return &controllers{
		homework: controller.NewHomeworkController(s.homework),
		health:   controller.NewHealthController(a.DB, a.Redis),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(middleware.RequestID())
	router.Use(middleware.AccessLog())
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	a.limiter = security.NewIPLimiter(cfg.RateLimit.MaxRequests, window)
	router.Use(a.limiter.Middleware())

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func openStorage(cfg *config.Config) (*gorm.DB, error) {
	if cfg.Database.Driver == util.DriverMemory {
		return nil, nil
	}
	return database.InitDB(&cfg.Database, cfg.Server.Mode == gin.DebugMode)
}

// NewApp 初始化存储、服务与路由；MigrateOnly 时迁移后即返回
func NewApp(cfg *config.Config, configDir string) (*App, error) {
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully")

	// 分数以 JSON 数字输出
	decimal.MarshalJSONWithoutQuotes = true

	db, err := openStorage(cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:    cfg,
		ConfigDir: configDir,
		DB:        db,
	}
	if cfg.MigrateOnly {
		return app, nil
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		return nil, err
	}
	app.Redis = rdb

	repos := app.initRepositories(db, rdb)
	app.services = app.initServices(repos, cfg)
	ctrls := app.initControllers(app.services)

	monitoring.Init()

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(cfg.Tracing.ServiceName, cfg.Tracing.CollectorEndpoint)
		if err != nil {
			return nil, err
		}
		app.tracer = tp
	}

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery())
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, ctrls)

	return app, nil
}

func (a *App) startBackgroundTasks(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				window := time.Duration(a.Config.RateLimit.WindowMinutes) * time.Minute
				a.limiter.Sweep(now, 3*window)
			}
		}
	}()

	go func() {
		err := configwatcher.WatchConfig(ctx, a.ConfigDir, func(c *config.Config) {
			for _, cb := range a.configCallbacks {
				cb(c)
			}
		})
		if err != nil {
			logger.Log.Error("config watcher stopped", zap.Error(err))
		}
	}()
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	a.startBackgroundTasks(ctx)

	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("listen failed", zap.Error(err))
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}

	logger.Log.Info("Server exiting")
}
