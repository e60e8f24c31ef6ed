// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"satyam-ai-go/internal/app"
	"satyam-ai-go/internal/config"
	"satyam-ai-go/internal/handler"
	"satyam-ai-go/internal/middleware"
	"satyam-ai-go/internal/pipeline"
	"satyam-ai-go/internal/repository"
	"satyam-ai-go/internal/service"
	"satyam-ai-go/pkg/database"
	"satyam-ai-go/pkg/kafka"
	"satyam-ai-go/pkg/log"
	"satyam-ai-go/pkg/metrics"
	"satyam-ai-go/pkg/token"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	// 3. 初始化数据库和 Redis
	db, err := database.NewMySQL(cfg.Database.MySQL.DSN)
	if err != nil {
		log.Fatal("MySQL 初始化失败", err)
	}
	if err := repository.AutoMigrate(db); err != nil {
		log.Fatal("数据表迁移失败", err)
	}
	rdb, err := database.NewRedis(rootCtx, cfg.Database.Redis)
	if err != nil {
		log.Fatal("Redis 初始化失败", err)
	}
	defer rdb.Close()

	// 4. 初始化问答核心：向量索引、Embedding、LLM、回答缓存
	backends, err := app.CacheBackends(rootCtx, cfg, rdb)
	if err != nil {
		log.Fatal("回答缓存后端初始化失败", err)
	}
	core, err := app.NewCore(cfg, backends)
	if err != nil {
		log.Fatal("问答核心初始化失败", err)
	}
	if err := core.Index.EnsureIndex(rootCtx); err != nil {
		log.Fatal("向量索引初始化失败", err)
	}

	// 5. 对话落库：启用 Kafka 时异步写入，否则同步写库
	conversationRepo := repository.NewConversationRepository(db)
	persister := pipeline.NewPersister(conversationRepo)
	var recorder service.Recorder = persister
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka)
		defer producer.Close()
		recorder = producer
		go kafka.NewConsumer(persister, rdb).Run(rootCtx, cfg.Kafka)
	}
	conversationService := service.NewConversationService(core.Chat, conversationRepo, recorder, cfg.RAG.HistoryWindow)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret)

	// 6. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 7. 注册路由
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/chat", handler.NewChatHandler(conversationService, jwtManager).Handle)
	apiV1 := r.Group("/api/v1")
	{
		apiV1.GET("/health", handler.Health)
		apiV1.POST("/rag", middleware.OptionalAuth(jwtManager), handler.NewRAGHandler(conversationService).Ask)
		apiV1.GET("/search", handler.NewSearchHandler(core.Retriever).Search)

		sessionHandler := handler.NewSessionHandler(conversationService)
		chat := apiV1.Group("/chat")
		chat.Use(middleware.RequireAuth(jwtManager))
		{
			chat.GET("/history", sessionHandler.ListSessions)
			chat.POST("/session", sessionHandler.CreateSession)
			chat.GET("/session/:id", sessionHandler.Messages)
			chat.DELETE("/session/:id", sessionHandler.DeleteSession)
		}
	}

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}
	// 停止 Kafka 消费者
	cancelRoot()
	log.Info("服务已优雅关闭")
}
