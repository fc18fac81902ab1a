package router

import (
	"time"

	"github.com/kelvinguchu/galacticelectricals/config"
	"github.com/kelvinguchu/galacticelectricals/internal/domain"
	"github.com/kelvinguchu/galacticelectricals/internal/handler"
	"github.com/kelvinguchu/galacticelectricals/internal/middleware"
	"github.com/kelvinguchu/galacticelectricals/internal/repository"
	"github.com/kelvinguchu/galacticelectricals/internal/service"
	"github.com/kelvinguchu/galacticelectricals/pkg/daraja"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func Setup(cfg *config.Config, db *gorm.DB, gateway service.Gateway) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(middleware.RateLimit(middleware.NewInMemoryRateLimiter(100, time.Minute)))

	// Repositories
	userRepo := repository.NewUserRepository(db)
	productRepo := repository.NewProductRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	webhookRepo := repository.NewWebhookEventRepository(db)

	// Services
	mailer := service.NewMailer(&cfg.SMTP)
	otpSvc := service.NewOTPService(mailer, cfg.Checkout.OTPTTL)
	authSvc := service.NewAuthService(userRepo, &cfg.JWT)
	inventorySvc := service.NewInventoryService(orderRepo, productRepo)
	checkoutSvc := service.NewCheckoutService(productRepo, paymentRepo, gateway, &cfg.Mpesa)
	reconcileSvc := service.NewReconcileService(paymentRepo, orderRepo, userRepo, webhookRepo, gateway, inventorySvc, mailer, &cfg.Checkout)
	orderSvc := service.NewOrderService(orderRepo)

	// Handlers
	authHandler := handler.NewAuthHandler(authSvc, otpSvc)
	productHandler := handler.NewProductHandler(productRepo)
	checkoutHandler := handler.NewCheckoutHandler(checkoutSvc, reconcileSvc)
	orderHandler := handler.NewOrderHandler(orderSvc)
	webhookHandler := handler.NewMpesaWebhookHandler(reconcileSvc, &cfg.Mpesa)
	mpesaAdminHandler := handler.NewMpesaAdminHandler(reconcileSvc, gateway, &cfg.Mpesa)

	authMw := middleware.AuthRequired(&cfg.JWT)
	authOpt := middleware.AuthOptional(&cfg.JWT)
	adminMw := middleware.RequireRole(domain.RoleAdmin)

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.POST("/otp/send", authHandler.SendOTP)
			authGroup.POST("/otp/verify", authHandler.VerifyOTP)
			authGroup.GET("/me", authMw, authHandler.Me)
			authGroup.PATCH("/me", authMw, authHandler.UpdateProfile)
		}

		products := api.Group("/products")
		{
			products.GET("", authOpt, productHandler.List)
			products.GET("/:id", authOpt, productHandler.Get)
			products.POST("", authMw, adminMw, productHandler.Create)
			products.PUT("/:id", authMw, adminMw, productHandler.Update)
		}

		checkout := api.Group("/checkout")
		{
			checkout.POST("", authOpt, checkoutHandler.Initiate)
			checkout.GET("/status/:checkoutRequestId", checkoutHandler.Status)
		}

		orders := api.Group("/orders")
		{
			orders.GET("", authMw, orderHandler.ListMine)
			orders.GET("/:orderNumber", authOpt, orderHandler.Get)
		}
	}

	// Daraja callbacks live outside the versioned API; their paths are
	// registered with the gateway and must stay stable.
	mpesa := r.Group("/api/mpesa")
	{
		mpesa.POST("/callback/stk", webhookHandler.STKCallback)
		mpesa.POST("/c2b/validate", webhookHandler.C2BValidate)
		mpesa.POST("/c2b/confirm", webhookHandler.C2BConfirm)
		mpesa.POST("/transaction-status/result", webhookHandler.TransactionStatusResult)
		mpesa.POST("/transaction-status/timeout", webhookHandler.TransactionStatusTimeout)

		mpesa.POST("/c2b/register", mpesaAdminHandler.RegisterC2B)
		mpesa.POST("/transaction-status/query", mpesaAdminHandler.QueryTransactionStatus)
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}

// NewGateway builds the production Daraja client from config.
func NewGateway(cfg *config.MpesaConfig) *daraja.Client {
	return daraja.NewClient(daraja.Config{
		BaseURL:            cfg.BaseURL,
		ConsumerKey:        cfg.ConsumerKey,
		ConsumerSecret:     cfg.ConsumerSecret,
		Shortcode:          cfg.Shortcode,
		Passkey:            cfg.Passkey,
		InitiatorName:      cfg.InitiatorName,
		SecurityCredential: cfg.SecurityCredential,
	})
}
