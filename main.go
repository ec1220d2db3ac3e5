package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crewboard/backend/internal/cache"
	"crewboard/backend/internal/config"
	"crewboard/backend/internal/database"
	"crewboard/backend/internal/handlers"
	"crewboard/backend/internal/middleware"
	"crewboard/backend/internal/monitoring"
	"crewboard/backend/internal/repositories"
	"crewboard/backend/internal/services"
	"crewboard/backend/internal/worker"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// Application holds all application dependencies and state
type Application struct {
	Config *config.Config
	DB     *gorm.DB
	Pool   *database.DatabasePool
	Cache  cache.Cache
	Redis  *redis.Client
	Worker *worker.Worker
	Router *gin.Engine
	Server *http.Server

	// Services
	TaskService     services.TaskService
	AuthService     services.AuthService
	UserService     services.UserService
	RegisterService services.RegisterService
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to initialize application: %v", err)
	}

	app.setupRoutes()
	app.startServer()
}

func initializeApplication(cfg *config.Config) (*Application, error) {
	app := &Application{
		Config: cfg,
	}

	log.Println("🚀 Initializing Crewboard Backend...")
	log.Printf("📋 Environment: %s", cfg.Server.Environment)

	pool, err := database.NewDatabasePool(&database.PoolConfig{
		DSN:             cfg.GetDatabaseDSN(),
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	app.Pool = pool
	app.DB = pool.DB

	log.Println("✅ Database connected and configured")

	migrationConfig := &repositories.MigrationConfig{
		MigrationsPath: "file://migrations",
		DBName:         cfg.Database.Name,
		MaxRetries:     3,
		RetryDelay:     2 * time.Second,
	}

	if err := repositories.RunMigrations(app.DB, migrationConfig); err != nil {
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("⚠️  Redis unavailable: %v (continuing with memory cache only)", err)
		redisClient = nil
	} else {
		app.Redis = redisClient
		log.Println("✅ Redis connected")
	}

	if redisClient != nil {
		redisCache := cache.NewRedisCacheWithClient(redisClient)
		app.Cache = cache.NewMultiLevelCache(redisCache)
		log.Println("✅ Multi-level cache initialized (Memory L1 + Redis L2)")
	} else {
		app.Cache = cache.NewMultiLevelCache(nil)
		log.Println("✅ Memory cache initialized (Redis fallback mode)")
	}

	// Background notification worker; only useful with Redis present.
	var notifier services.Notifier
	if redisClient != nil {
		app.Worker = worker.NewWorker(worker.WorkerConfig{
			RedisClient:  redisClient,
			Concurrency:  2,
			PollInterval: time.Second,
			Queues:       []string{worker.DefaultQueue},
		})
		app.Worker.RegisterHandler(worker.JobTypeTaskAssigned, logNotification("assigned"))
		app.Worker.RegisterHandler(worker.JobTypeTaskCompleted, logNotification("completed"))
		app.Worker.Start(2)
		notifier = worker.NewRedisNotifier(redisClient)
		log.Println("✅ Notification worker started")
	}

	app.AuthService = services.NewAuthService()
	app.UserService = services.NewUserService()
	app.RegisterService = services.NewRegisterService()

	var taskService services.TaskService
	if notifier != nil {
		taskService = services.NewTaskServiceWithNotifier(notifier)
	} else {
		taskService = services.NewTaskService()
	}
	app.TaskService = services.NewCachedTaskService(taskService, app.Cache)
	log.Println("✅ Cached task service initialized")

	log.Println("✅ All services initialized")

	return app, nil
}

func logNotification(event string) worker.JobHandler {
	return func(ctx context.Context, job *worker.Job) error {
		log.Printf("🔔 Task %s notification: %s", event, string(job.Payload))
		return nil
	}
}

func (app *Application) setupRoutes() {
	r := gin.New()

	// Global middleware stack (order matters!)
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(monitoring.MetricsMiddleware())
	r.Use(middleware.RecoveryWithLog())
	r.Use(middleware.SecureHeader())

	rateLimit := rate.Limit(float64(app.Config.RateLimit.RequestsPerMin) / 60.0)
	r.Use(middleware.RateLimiter(rateLimit, app.Config.RateLimit.BurstSize))

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "http://host.docker.internal"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health and monitoring endpoints (no auth required)
	r.GET("/health", app.healthHandler())
	r.GET("/ready", app.readinessHandler())
	r.GET("/metrics", monitoring.MetricsHandler())

	v1 := r.Group("/api/v1")

	authRoutes := v1.Group("/auth")
	{
		authHandler := handlers.NewAuthHandler(app.DB, app.AuthService)
		registrationHandler := handlers.NewRegisterHandler(app.DB, app.RegisterService)

		authRoutes.POST("/register", registrationHandler.Registration)
		authRoutes.POST("/login", authHandler.Token)
		authRoutes.POST("/refresh", authHandler.Refresh)
	}

	protected := v1.Group("")
	protected.Use(middleware.AuthzMiddleware(middleware.AuthzConfig{}))
	{
		taskHandler := handlers.NewTaskHandler(app.DB, app.TaskService)
		taskRoutes := protected.Group("/tasks")
		{
			taskRoutes.GET("", taskHandler.GetTasks)
			taskRoutes.POST("", taskHandler.CreateTask)
			taskRoutes.GET("/:id", taskHandler.GetTaskByID)
			taskRoutes.PUT("/:id", taskHandler.UpdateTask)
			taskRoutes.PATCH("/:id/status", taskHandler.UpdateStatus)
			taskRoutes.PATCH("/:id/subtasks/:subtaskId", taskHandler.UpdateSubtask)
			taskRoutes.DELETE("/:id", taskHandler.DeleteTask)
		}

		userHandler := handlers.NewUserHandler(app.DB, app.UserService)
		userRoutes := protected.Group("/users")
		{
			userRoutes.GET("", userHandler.GetUsers)
			userRoutes.GET("/profile", userHandler.GetUserProfile)
		}
	}

	app.Router = r
}

func (app *Application) startServer() {
	addr := app.Config.GetServerAddr()

	app.Server = &http.Server{
		Addr:         addr,
		Handler:      app.Router,
		ReadTimeout:  app.Config.Server.ReadTimeout,
		WriteTimeout: app.Config.Server.WriteTimeout,
		IdleTimeout:  app.Config.Server.IdleTimeout,
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		log.Println("🛑 Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := app.Server.Shutdown(ctx); err != nil {
			log.Printf("❌ Server forced to shutdown: %v", err)
		}

		app.cleanup()
		log.Println("✅ Server stopped gracefully")
	}()

	log.Printf("🚀 Server starting on %s", addr)
	log.Printf("📊 Metrics available at http://%s/metrics", addr)
	log.Printf("💚 Health check at http://%s/health", addr)

	if err := app.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("❌ Server failed to start: %v", err)
	}
}

func (app *Application) cleanup() {
	log.Println("🧹 Cleaning up resources...")

	if app.Worker != nil {
		app.Worker.Stop()
	}

	// The cache owns the shared redis client and closes it.
	if app.Cache != nil {
		if err := app.Cache.Close(); err != nil {
			log.Printf("⚠️  Error closing cache: %v", err)
		}
	}

	if app.Pool != nil {
		if err := app.Pool.Close(); err != nil {
			log.Printf("⚠️  Error closing database: %v", err)
		}
	}

	log.Println("✅ Cleanup complete")
}

func (app *Application) healthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		health := map[string]interface{}{
			"status":    "healthy",
			"timestamp": time.Now().Format(time.RFC3339),
			"service":   "crewboard-backend",
		}

		if err := app.Pool.Health(); err != nil {
			health["status"] = "unhealthy"
			health["database"] = "down"
			c.JSON(http.StatusServiceUnavailable, health)
			return
		}
		health["database"] = "up"

		if app.Redis != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := app.Redis.Ping(ctx).Err(); err != nil {
				health["redis"] = "down"
			} else {
				health["redis"] = "up"
			}
		}

		c.JSON(http.StatusOK, health)
	}
}

func (app *Application) readinessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := app.Pool.Health(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"reason": "database not ready",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"ready": true,
		})
	}
}
