package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	"topiclearn_backend/internal/config"
	"topiclearn_backend/internal/controller"
	"topiclearn_backend/internal/repository"
	"topiclearn_backend/internal/service"
	"topiclearn_backend/pkg/configwatcher"
	"topiclearn_backend/pkg/database"
	"topiclearn_backend/pkg/logger"
	"topiclearn_backend/pkg/monitoring"
	"topiclearn_backend/pkg/security"
	"topiclearn_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	tracerProvider  *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user    *repository.UserRepository
	session *repository.SessionRepository
	digest  *repository.DigestRepository
	catalog *repository.CatalogRepository
}

type services struct {
	auth      *service.AuthService
	storage   *service.StorageService
	generator *service.GeneratorService
	learning  *service.LearningService
	digest    *service.DigestService
}

type controllers struct {
	auth     *controller.AuthController
	learning *controller.LearningController
	digest   *controller.DigestController
	user     *controller.UserController
	health   *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:    repository.NewUserRepository(db),
		session: repository.NewSessionRepository(db),
		digest:  repository.NewDigestRepository(db),
		catalog: repository.NewCatalogRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) (*services, error) {
	s := &services{}

	storage, err := service.NewStorageService(cfg)
	if err != nil {
		return nil, err
	}
	s.storage = storage

	s.auth = service.NewAuthService(repos.user, rdb, cfg)

	// API Key 未配置时传入空生成器，所有生成走样例降级路径
	var textGen service.TextGenerator
	ai := service.NewAIService(cfg.AI)
	if ai.Enabled() {
		textGen = ai
	} else {
		logger.Log.Warn("AI API key not configured, content generation will use sample data")
	}

	s.generator = service.NewGeneratorService(textGen)
	s.learning = service.NewLearningService(repos.session, repos.catalog, repos.user, s.generator)
	s.digest = service.NewDigestService(repos.session, repos.digest, repos.user, repos.catalog, textGen, rdb)

	return s, nil
}

func (a *App) initControllers(s *services, repos *repositories, db *gorm.DB) *controllers {
	return &controllers{
		auth:     controller.NewAuthController(s.auth),
		learning: controller.NewLearningController(s.learning),
		digest:   controller.NewDigestController(s.digest),
		user:     controller.NewUserController(repos.user, s.storage),
		health:   controller.NewHealthController(db),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	maxRequests := cfg.RateLimit.MaxRequests
	if maxRequests <= 0 {
		maxRequests = 1000
	}
	windowMinutes := cfg.RateLimit.WindowMinutes
	if windowMinutes <= 0 {
		windowMinutes = 1
	}
	router.Use(security.RateLimiter(maxRequests, time.Duration(windowMinutes)*time.Minute))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// startBackgroundTasks 周报定时器：周日晚间窗口内触发批量生成，
// 重复触发由重叠检查和Redis锁挡掉
func (a *App) startBackgroundTasks(s *services) {
	if !a.Config.Digest.SchedulerEnabled {
		return
	}

	checkHours := a.Config.Digest.CheckHours
	if checkHours <= 0 {
		checkHours = 6
	}

	go func() {
		ticker := time.NewTicker(time.Duration(checkHours) * time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			now := time.Now()
			if now.Weekday() != time.Sunday || now.Hour() < 18 {
				continue
			}
			result, err := s.digest.GenerateWeeklyDigests(context.Background())
			if err != nil {
				logger.Log.Error("scheduled digest generation error", zap.Error(err))
				continue
			}
			logger.Log.Info("scheduled digest generation finished",
				zap.Int("created", result.Created),
				zap.Int("skipped", result.Skipped),
				zap.Int("failed", result.Failed))
		}
	}()
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	if cfg.Server.Mode == "debug" || cfg.ForceMigrate || cfg.MigrateOnly {
		if err := database.Migrate(db); err != nil {
			logger.Log.Fatal("Failed to migrate database", zap.Error(err))
		}
		if err := database.SeedCatalog(db); err != nil {
			logger.Log.Fatal("Failed to seed catalog", zap.Error(err))
		}
		if cfg.MigrateOnly {
			logger.Log.Info("Migration finished, exiting")
			os.Exit(0)
		}
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
		log.Fatalf("Failed to initialize redis: %v", err)
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db)
	services, err := app.initServices(repos, cfg, rdb)
	if err != nil {
		logger.Log.Fatal("Failed to initialize services", zap.Error(err))
	}
	app.services = services
	controllers := app.initControllers(services, repos, db)

	// 监控初始化
	monitoring.Init()

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("topiclearn", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		// 进程退出时在 Run 的优雅关闭阶段刷掉剩余span
		app.tracerProvider = tp
	}

	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	app.startBackgroundTasks(services)

	// 配置热更新：各服务共享 app.Config 指针，整体替换即可生效
	app.RegisterConfigCallback(func(newCfg *config.Config) {
		newCfg.ForceMigrate = app.Config.ForceMigrate
		newCfg.MigrateOnly = app.Config.MigrateOnly
		*app.Config = *newCfg
	})
	go configwatcher.WatchConfig("configs/config.yaml", func(newCfg *config.Config) {
		logger.Log.Info("Config file changed, reloading")
		for _, callback := range app.configCallbacks {
			callback(newCfg)
		}
	})

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	if a.tracerProvider != nil {
		if err := a.tracerProvider.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}

	log.Println("Server exiting")
}
