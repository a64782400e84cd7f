package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"scripture_quiz_backend/internal/config"
	"scripture_quiz_backend/internal/controller"
	"scripture_quiz_backend/internal/repository"
	"scripture_quiz_backend/internal/service"
	"scripture_quiz_backend/pkg/cache"
	"scripture_quiz_backend/pkg/configwatcher"
	"scripture_quiz_backend/pkg/database"
	"scripture_quiz_backend/pkg/logger"
	"scripture_quiz_backend/pkg/monitoring"
	"scripture_quiz_backend/pkg/security"
	"scripture_quiz_backend/pkg/tracing"
)

type App struct {
	Config     *config.Config
	ConfigPath string
	Router     *gin.Engine
	DB         *gorm.DB
	Redis      *redis.Client
	Cache      cache.Client

	services        *services
	notifier        *service.EmailNotifier
	tracer          *sdktrace.TracerProvider
	ctx             context.Context
	cancel          context.CancelFunc
	configCallbacks []func(*config.Config)
}

type services struct {
	quiz          *service.QuizService
	enrollment    *service.EnrollmentService
	attempt       *service.AttemptService
	maintenance   *service.MaintenanceService
	generationJob *service.GenerationJobService
	sweeper       *service.Sweeper
}

type controllers struct {
	quiz          *controller.QuizController
	student       *controller.StudentController
	maintenance   *controller.MaintenanceController
	generationJob *controller.GenerationJobController
	health        *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initServices(repo *repository.Repository, cfg *config.Config) *services {
	log := logger.Log

	a.notifier = service.NewEmailNotifier(service.NewMailSender(&cfg.Mail, log), log)

	s := &services{
		quiz:          service.NewQuizService(repo, a.notifier, log),
		enrollment:    service.NewEnrollmentService(repo, a.notifier, log),
		attempt:       service.NewAttemptService(repo, log),
		maintenance:   service.NewMaintenanceService(repo, log),
		generationJob: service.NewGenerationJobService(repo, log),
	}
	s.sweeper = service.NewSweeper(s.maintenance, log)
	return s
}

func (a *App) initControllers(s *services) *controllers {
	return &controllers{
		quiz:          controller.NewQuizController(s.quiz, s.enrollment),
		student:       controller.NewStudentController(s.enrollment, s.attempt),
		maintenance:   controller.NewMaintenanceController(s.maintenance),
		generationJob: controller.NewGenerationJobController(s.generationJob),
		health:        controller.NewHealthController(a.DB, a.Cache),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(gin.Recovery())
	router.Use(logger.GinLogger(logger.Log))
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(a.ctx, cfg.RateLimit))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// NewApp 初始化依赖。migrate-only / sweep-once 模式下不构建路由，由 main 直接退出
func NewApp(cfg *config.Config, configPath string) *App {
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully")

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode == "debug")
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	if err := database.Migrate(db, cfg.Database.Driver); err != nil {
		logger.Log.Fatal("Failed to migrate database", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		Config:     cfg,
		ConfigPath: configPath,
		DB:         db,
		ctx:        ctx,
		cancel:     cancel,
	}
	if cfg.MigrateOnly {
		return app
	}

	// 仅在使用 redis 缓存时建立连接
	if cfg.Cache.Driver == "redis" {
		rdb, err := database.InitRedis(&cfg.Redis)
		if err != nil {
			logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
		}
		app.Redis = rdb
	}

	app.Cache, err = cache.New(&cfg.Cache, app.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize cache", zap.Error(err))
	}

	// 监控初始化
	monitoring.Init()

	repo := repository.NewRepository(db, app.Cache, cfg.Cache.TTL)
	app.services = app.initServices(repo, cfg)
	if cfg.SweepOnce {
		return app
	}

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("scripture-quiz", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	controllers := app.initControllers(app.services)

	router := gin.New()
	app.Router = router
	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, cfg)

	// 热更新可以开启、关闭清理或调整间隔
	app.RegisterConfigCallback(func(newCfg *config.Config) {
		if newCfg.Maintenance.SweepEnabled {
			app.services.sweeper.Start(app.ctx, newCfg.Maintenance.SweepInterval)
			return
		}
		app.services.sweeper.Stop()
	})

	return app
}

// SweepOnce 执行一次过期作答清理，供 cron 调用
func (a *App) SweepOnce() error {
	defer a.Close()

	report, err := a.services.maintenance.SweepStaleAttempts(a.ctx, time.Now().UTC())
	if err != nil {
		return err
	}
	logger.Log.Info("Sweep finished",
		zap.Int("examined", report.Examined),
		zap.Int("timed_out", report.TimedOut),
		zap.Int("abandoned", report.Abandoned),
		zap.Int("skipped", report.Skipped),
		zap.Int("failures", len(report.Failures)),
	)
	return nil
}

func (a *App) startBackgroundTasks() {
	cfg := a.Config
	if cfg.Maintenance.SweepEnabled {
		a.services.sweeper.Start(a.ctx, cfg.Maintenance.SweepInterval)
	}

	if a.ConfigPath == "" {
		return
	}
	configFile := filepath.Join(a.ConfigPath, "config.yaml")
	if _, err := os.Stat(configFile); err != nil {
		return
	}
	err := configwatcher.WatchConfig(a.ctx, configFile, func(newCfg *config.Config) {
		for _, cb := range a.configCallbacks {
			cb(newCfg)
		}
	})
	if err != nil {
		logger.Log.Warn("Config watcher disabled", zap.Error(err))
	}
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:              ":" + a.Config.Server.Port,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.startBackgroundTasks()

	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("listen", zap.Error(err))
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	a.Close()
	logger.Log.Info("Server exiting")
}

// Close 停止后台任务，等待未发完的通知邮件，释放连接
func (a *App) Close() {
	a.cancel()
	if a.services != nil {
		a.services.sweeper.Stop()
	}

	if a.notifier != nil {
		a.notifier.Wait()
	}

	if a.tracer != nil {
		if err := a.tracer.Shutdown(context.Background()); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}

	if a.Redis != nil {
		_ = a.Redis.Close()
	}

	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}

	_ = logger.Log.Sync()
}
