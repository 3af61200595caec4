package main

import (
	"log"

	"go-file-share/internal/api"
	"go-file-share/internal/event"
	"go-file-share/internal/middleware"
	"go-file-share/internal/repository"
	"go-file-share/internal/service"
	"go-file-share/internal/storage"
	"go-file-share/pkg/config"
	"go-file-share/pkg/db"
	"go-file-share/pkg/logger"

	"github.com/gin-gonic/gin"
)

func main() {
	// 初始化配置
	if err := config.Init(); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	if err := logger.InitLogger(config.GlobalConfig.Log.Level, config.GlobalConfig.Log.Production); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// 初始化数据库连接
	if err := db.InitDB(); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// 初始化Blob存储
	blobs, err := storage.NewDiskBlobStore(
		config.GlobalConfig.File.StoragePath,
		config.GlobalConfig.File.BaseURL,
	)
	if err != nil {
		log.Fatalf("Failed to initialize blob store: %v", err)
	}

	// 初始化事件发布
	events, err := event.CreatePublisher()
	if err != nil {
		log.Fatalf("Failed to initialize event publisher: %v", err)
	}
	defer events.Close()

	// 组装服务
	fileRepo := repository.NewFileRepository()
	userRepo := repository.NewUserRepository()
	fileService := service.NewFileService(fileRepo, userRepo, blobs, events)
	shareService := service.NewShareService(fileRepo)
	authService := service.NewAuthService(userRepo)

	authHandler := api.NewAuthHandler(authService)
	fileHandler := api.NewFileHandler(fileService)
	shareHandler := api.NewShareHandler(shareService)

	// 创建Gin引擎
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())

	// 磁盘Blob的静态下载路由
	r.Static("/blobs", blobs.BasePath())

	// 公开路由：注册/登陆、短链接解析、下载与密码校验
	r.POST("/api/auth/register", authHandler.Register)
	r.POST("/api/auth/login", authHandler.Login)
	r.GET("/f/:code", shareHandler.ResolveShareLink)
	r.POST("/api/files/:fileId/download", fileHandler.DownloadFile)
	r.POST("/api/files/verify-password", shareHandler.VerifyFilePassword)

	// 受保护的路由：文件管理
	protected := r.Group("/api/files", middleware.AuthMiddleware())
	{
		protected.POST("/upload", fileHandler.UploadFiles)
		protected.DELETE("/:fileId", fileHandler.DeleteFile)
		protected.PUT("/:fileId/status", fileHandler.UpdateFileStatus)
		protected.PUT("/:fileId/expiry", fileHandler.UpdateFileExpiry)
		protected.PUT("/:fileId/password", fileHandler.UpdateFilePassword)
		protected.GET("/:fileId", fileHandler.GetFileDetails)
		protected.GET("/:fileId/downloads", fileHandler.GetDownloadCount)
		protected.GET("/search", fileHandler.SearchFiles)
		protected.GET("/user/:userId", fileHandler.GetUserFiles)
		protected.POST("/:fileId/share-link", shareHandler.RegenerateShareLink)
		protected.POST("/:fileId/send-email", shareHandler.SendLinkEmail)
		protected.GET("/:fileId/qr", shareHandler.GenerateQR)
	}

	// 启动服务器
	addr := config.GlobalConfig.Server.Addr
	if addr == "" {
		addr = ":8080"
	}
	if err := r.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
