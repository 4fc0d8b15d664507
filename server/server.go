package server

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"Praetorius/cache"
	"Praetorius/config"
	"Praetorius/core/auth"
	"Praetorius/core/console"
	"Praetorius/core/feed"
	"Praetorius/core/scatter"
	"Praetorius/db"
	"Praetorius/logger"
	"Praetorius/repository"
	"Praetorius/storage"

	"github.com/gorilla/mux"
)

// Start initializes and starts the HTTP server.
func Start() {
	cfg := config.Load()

	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogPath,
	})
	auth.SetJWTSecret(cfg.JWTSecret)

	// 设置服务器超时
	server := &http.Server{
		Addr:         cfg.ServerAddr,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 作品feed是控制台的权威数据源，加载失败直接退出
	doc, err := feed.Load(cfg.WorksFeedPath)
	if err != nil {
		log.Fatalf("Failed to load works feed: %v", err)
	}
	catalog := console.NewCatalog(doc.Works, doc.PageFollows)
	engine := scatter.NewEngine(cfg.SafeMargin, cfg.CollisionPadding, cfg.CollisionPasses)
	hub := NewConsoleHub(cfg.ResizeDebounce)

	// 外部依赖（MinIO/MySQL/Redis）不可用时控制台仍然可以只读运行
	if err := storage.InitMinio(cfg); err != nil {
		logger.Warn("MinIO unavailable, asset serving disabled", logger.ErrorField(err))
	}

	var userRepo repository.UserRepository
	var workRepo repository.WorkRepository
	if err := db.ConnectDB(cfg); err != nil {
		logger.Warn("database unavailable, admin surface disabled", logger.ErrorField(err))
	} else {
		defer db.DB.Close()
		if err := db.InitDB(cfg); err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		userRepo = repository.NewMySQLUserRepository(db.DB)

		if err := db.ConnectGormDB(cfg); err != nil {
			log.Fatalf("Failed to connect database with GORM: %v", err)
		}
		defer db.CloseGormDB()
		workRepo = repository.NewGormWorkRepository(db.GormDB)
	}

	if err := cache.ConnectRedis(cfg); err != nil {
		logger.Warn("Redis unavailable, visitor state will not persist", logger.ErrorField(err))
	} else {
		defer cache.CloseRedis()
		log.Println("Successfully connected to Redis")
	}

	apiHandler := NewAPIHandler(cfg, catalog, engine, hub, userRepo, workRepo)

	// feed热更新：文件变化时替换目录并通知所有会话
	watchCtx, cancelWatch := context.WithCancel(context.Background())
	defer cancelWatch()
	if cfg.FeedWatch {
		go func() {
			err := feed.Watch(watchCtx, cfg.WorksFeedPath, func(updated *feed.Document) {
				catalog.Replace(updated.Works, updated.PageFollows)
				hub.BroadcastWorksUpdate()
				logger.Info("works feed reloaded", logger.Int("works", len(updated.Works)))
			})
			if err != nil && watchCtx.Err() == nil {
				logger.Error("feed watcher stopped", logger.ErrorField(err))
			}
		}()
	}

	// 使用 gorilla/mux 创建路由器
	router := mux.NewRouter()

	// 添加 CORS 中间件
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, HEAD")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Range")
			w.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Range")
			w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	// 控制台WebSocket会话
	router.HandleFunc("/ws/console", apiHandler.WebSocketConsoleHandler)

	// 只读API端点
	router.HandleFunc("/api/works", apiHandler.GetWorksHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/works/{id}", apiHandler.GetWorkHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/layout", apiHandler.LayoutHandler).Methods(http.MethodPost)

	// 管理端API端点
	router.HandleFunc("/api/auth/login", apiHandler.LoginHandler).Methods(http.MethodPost)
	if workRepo != nil {
		router.HandleFunc("/api/works", apiHandler.AuthMiddleware(apiHandler.CreateWorkHandler)).Methods(http.MethodPost)
		router.HandleFunc("/api/works/{id}", apiHandler.AuthMiddleware(apiHandler.UpdateWorkHandler)).Methods(http.MethodPut)
		router.HandleFunc("/api/works/{id}", apiHandler.AuthMiddleware(apiHandler.DeleteWorkHandler)).Methods(http.MethodDelete)
	}

	// MinIO资源服务（音频与乐谱PDF）
	router.PathPrefix("/assets/").HandlerFunc(apiHandler.AssetHandler)

	server.Handler = router

	// 创建一个通道来接收操作系统信号
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// 在goroutine中启动服务器
	go func() {
		log.Printf("Server starting on %s...", cfg.ServerAddr)
		log.Println("Console sessions connect via /ws/console")
		log.Println("List works via GET from /api/works")
		log.Println("Compute layouts via POST to /api/layout")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// 等待中断信号
	<-stop
	log.Println("Shutting down server...")
	cancelWatch()

	// 创建一个5秒超时的上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 优雅关闭服务器
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
