package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Jamemaniquiz/BOOKNEST-sub000/config"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/api/admin"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/api/book"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/api/notification"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/api/order"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/api/payment"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/api/user"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/changefeed"
	apperrors "github.com/Jamemaniquiz/BOOKNEST-sub000/internal/errors"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/middleware"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/repository/mysql"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/service"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/storage"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/util"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

func main() {
	// 初始化配置
	config.Init()

	// 初始化日志
	util.InitLogger(config.AppConfig.LogLevel)
	defer util.Logger.Sync()

	util.Logger.Info("应用程序启动")

	// 连接数据库
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		config.AppConfig.DBUser,
		config.AppConfig.DBPassword,
		config.AppConfig.DBHost,
		config.AppConfig.DBPort,
		config.AppConfig.DBName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		util.Logger.Fatal("连接数据库失败", zap.Error(err))
	}
	defer db.Close()

	if err = db.Ping(); err != nil {
		util.Logger.Fatal("数据库连接测试失败", zap.Error(err))
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	util.Logger.Info("数据库连接成功")

	// 注册自定义验证器
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("phone", util.ValidatePhone)
	}

	// 初始化文件存储
	fileStorage, err := storage.New(&config.AppConfig)
	if err != nil {
		util.Logger.Fatal("初始化文件存储失败", zap.Error(err))
	}

	// 变化事件发布器：没配 Redis 就退化为空实现
	var feed changefeed.Publisher = changefeed.NopPublisher{}
	if config.AppConfig.RedisAddr != "" {
		feed = changefeed.NewRedisPublisher(config.AppConfig.RedisAddr)
		util.Logger.Info("Redis 变化事件发布已启用", zap.String("addr", config.AppConfig.RedisAddr))
	}

	// 初始化存储库
	userRepo := mysql.NewUserRepository(db)
	bookRepo := mysql.NewBookRepository(db)
	orderRepo := mysql.NewOrderRepository(db)
	notificationRepo := mysql.NewNotificationRepository(db)

	// 初始化服务
	emailService := service.NewEmailService(userRepo)
	userService := service.NewUserService(userRepo, emailService)
	bookService := service.NewBookService(bookRepo)
	notificationService := service.NewNotificationService(notificationRepo, userRepo, emailService)
	orderService := service.NewOrderService(orderRepo, bookRepo, feed)
	paymentService := service.NewPaymentService(orderRepo, notificationService, feed)
	fulfillmentService := service.NewFulfillmentService(orderRepo, notificationService, feed)
	adminService := service.NewAdminService(orderRepo, bookRepo, userRepo)

	// 初始化错误统计
	analytics := apperrors.NewErrorAnalytics()

	// 初始化处理器
	authHandler := user.NewAuthHandler(userService)
	profileHandler := user.NewProfileHandler(userService)
	bookHandler := book.NewBookHandler(bookService, fileStorage)
	orderHandler := order.NewOrderHandler(orderService, fulfillmentService)
	paymentHandler := payment.NewPaymentHandler(paymentService, fileStorage)
	notificationHandler := notification.NewNotificationHandler(notificationService)
	adminHandler := admin.NewAdminHandler(adminService, userService, fulfillmentService, analytics)

	// 启动逾期罚金清扫任务
	stopSweeper := make(chan struct{})
	paymentService.StartPenaltySweeper(10*time.Minute, stopSweeper)

	// 设置 Gin 路由
	r := gin.Default()
	r.Use(middleware.RecoveryMiddleware())
	r.Use(middleware.ErrorMonitorMiddleware(analytics))

	// 配置 CORS
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{config.AppConfig.FrontendURL}
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	r.Use(cors.New(corsConfig))

	// 本地存储时直接提供上传文件的静态访问
	if config.AppConfig.StorageBackend == "local" {
		r.Static("/uploads", config.AppConfig.LocalStoragePath)
	}

	api := r.Group("/api")
	{
		// 认证相关
		api.POST("/register", authHandler.Register)
		api.POST("/login", authHandler.Login)
		api.POST("/request-password-reset", authHandler.RequestPasswordReset)
		api.POST("/reset-password", authHandler.ResetPassword)
		api.GET("/verify-email", authHandler.VerifyEmail)

		// 图书目录公开可读
		api.GET("/books", bookHandler.ListBooks)
		api.GET("/books/:id", bookHandler.GetBook)

		// 需要认证的路由
		authorized := api.Group("/")
		authorized.Use(middleware.AuthMiddleware(userService))
		{
			authorized.POST("/logout", authHandler.Logout)
			authorized.POST("/refresh-token", authHandler.RefreshToken)
			authorized.GET("/profile", profileHandler.GetProfile)
			authorized.PUT("/profile", profileHandler.UpdateProfile)

			// 收货地址
			authorized.POST("/addresses", profileHandler.CreateAddress)
			authorized.GET("/addresses", profileHandler.ListAddresses)
			authorized.PUT("/addresses/:id", profileHandler.UpdateAddress)
			authorized.DELETE("/addresses/:id", profileHandler.DeleteAddress)
			authorized.PUT("/addresses/:id/default", profileHandler.SetDefaultAddress)

			// 订单
			authorized.POST("/orders", orderHandler.CreateOrder)
			authorized.GET("/orders", orderHandler.ListMyOrders)
			authorized.GET("/orders/changes", orderHandler.GetChanges)
			authorized.GET("/orders/:id", orderHandler.GetOrder)
			authorized.PUT("/orders/:id/customer-info", orderHandler.UpdateCustomerInfo)
			authorized.POST("/orders/:id/complete", orderHandler.CompleteOrder)
			authorized.POST("/orders/:id/convert", orderHandler.ConvertPileToShipping)

			// 付款凭证
			authorized.POST("/orders/:id/payment-proof", paymentHandler.SubmitProof)

			// 站内通知
			authorized.GET("/notifications", notificationHandler.List)
			authorized.PUT("/notifications/:id/read", notificationHandler.MarkRead)
			authorized.PUT("/notifications/read-all", notificationHandler.MarkAllRead)
		}

		// 管理员路由组
		adminRoutes := api.Group("/admin")
		adminRoutes.Use(middleware.AuthMiddleware(userService), middleware.AdminMiddleware(userService))
		{
			adminRoutes.GET("/orders", adminHandler.GetOrders)
			adminRoutes.GET("/orders/pending-payments", adminHandler.GetPendingPayments)
			adminRoutes.POST("/orders/:id/payment/approve", paymentHandler.ApprovePayment)
			adminRoutes.POST("/orders/:id/payment/reject", paymentHandler.RejectPayment)
			adminRoutes.POST("/orders/:id/ship", adminHandler.ShipOrder)
			adminRoutes.POST("/orders/:id/cancel", adminHandler.CancelOrder)
			adminRoutes.PUT("/orders/:id/shipping-fee", adminHandler.SetShippingFee)

			adminRoutes.POST("/books", bookHandler.CreateBook)
			adminRoutes.PUT("/books/:id", bookHandler.UpdateBook)
			adminRoutes.POST("/books/:id/restock", bookHandler.RestockBook)

			adminRoutes.GET("/users", adminHandler.GetUsers)
			adminRoutes.PUT("/users/:id/role", adminHandler.UpdateUserRole)

			adminRoutes.GET("/stats", adminHandler.GetStats)
			adminRoutes.GET("/stats/errors", adminHandler.GetErrorStats)
		}
	}

	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}

	go func() {
		util.Logger.Info("服务器正在启动，监听端口 :8080")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			util.Logger.Fatal("启动服务器失败", zap.Error(err))
		}
	}()

	// 等待中断信号以优雅地关闭服务器
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	util.Logger.Info("正在关闭服务器...")

	close(stopSweeper)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		util.Logger.Fatal("服务器强制关闭", zap.Error(err))
	}

	util.Logger.Info("服务器已优雅关闭")
}
