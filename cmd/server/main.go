package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"titulacion/backend/config"
	"titulacion/backend/internal/api/handler"
	"titulacion/backend/internal/api/middleware"
	"titulacion/backend/internal/api/router"
	"titulacion/backend/internal/repository"
	"titulacion/backend/internal/service"
	"titulacion/backend/pkg/cache"
	"titulacion/backend/pkg/database"
	applogger "titulacion/backend/pkg/logger"
	"titulacion/backend/pkg/redis"
)

func main() {
	// 0. 加载 .env（可选，仅本地开发）
	_ = godotenv.Load()

	// 1. 加载配置
	cfg, err := config.Load(os.Getenv("TITULACION_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
	)

	// 3. 连接数据库
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	logger.Info("数据库连接成功")

	// 3.1 执行数据库迁移
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 4. 连接 Redis（可选：失败时草稿缓存降级为进程内存储，发布接口不限流）
	var (
		kv      cache.Store
		limiter middleware.RateLimiter
	)
	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，草稿缓存仅保存在内存中", zap.Error(err))
		rdb = nil
		kv = cache.NewMemory()
	} else {
		kv = rdb
		limiter = rdb
	}

	// 5. 依赖注入: Repository → Service → Handler
	appCtx, stopApp := context.WithCancel(context.Background())
	defer stopApp()

	repo := repository.NewRepository(db)
	svc := service.NewService(appCtx, cfg, repo, kv, logger)
	defer svc.Close()
	h := handler.NewHandler(svc)

	// 5.1 同步活动周期，并按配置间隔轮询
	if name, err := svc.Register.RefreshFromRemote(appCtx); err != nil {
		logger.Warn("启动时查询活动周期失败，按无活动周期运行", zap.Error(err))
	} else {
		logger.Info("当前活动周期", zap.String("periodo", name))
	}
	go svc.Register.RunRefresher(appCtx, cfg.Cronograma.ActiveRefreshInterval)

	// 6. 初始化路由
	engine := router.Setup(cfg, h, limiter, sqlDB.PingContext, logger)

	// 7. 启动 HTTP 服务器（优雅关闭）
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 8. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))
	stopApp()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	sqlDB.Close()
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("服务器已关闭")
}
