package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/qatech/internal/audit"
	auditdomain "github.com/smallbiznis/qatech/internal/audit/domain"
	"github.com/smallbiznis/qatech/internal/auth"
	authdomain "github.com/smallbiznis/qatech/internal/auth/domain"
	"github.com/smallbiznis/qatech/internal/auth/session"
	"github.com/smallbiznis/qatech/internal/authorization"
	"github.com/smallbiznis/qatech/internal/cart"
	cartdomain "github.com/smallbiznis/qatech/internal/cart/domain"
	"github.com/smallbiznis/qatech/internal/config"
	"github.com/smallbiznis/qatech/internal/dashboard"
	dashboarddomain "github.com/smallbiznis/qatech/internal/dashboard/domain"
	"github.com/smallbiznis/qatech/internal/observability"
	obsmiddleware "github.com/smallbiznis/qatech/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/qatech/internal/observability/metrics"
	obstracing "github.com/smallbiznis/qatech/internal/observability/tracing"
	"github.com/smallbiznis/qatech/internal/order"
	orderdomain "github.com/smallbiznis/qatech/internal/order/domain"
	"github.com/smallbiznis/qatech/internal/payment"
	paymentdomain "github.com/smallbiznis/qatech/internal/payment/domain"
	"github.com/smallbiznis/qatech/internal/product"
	productdomain "github.com/smallbiznis/qatech/internal/product/domain"
	"github.com/smallbiznis/qatech/internal/providers"
	"github.com/smallbiznis/qatech/internal/providers/storage"
	"github.com/smallbiznis/qatech/internal/ratelimit"
	"github.com/smallbiznis/qatech/internal/review"
	reviewdomain "github.com/smallbiznis/qatech/internal/review/domain"
	"github.com/smallbiznis/qatech/internal/user"
	userdomain "github.com/smallbiznis/qatech/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	providers.Module,
	ratelimit.Module,
	authorization.Module,
	audit.Module,
	user.Module,
	auth.Module,
	product.Module,
	cart.Module,
	order.Module,
	payment.Module,
	review.Module,
	dashboard.Module,
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics, cfg config.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(cors.New(corsConfig(cfg)))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func corsConfig(cfg config.Config) cors.Config {
	origins := []string{}
	for _, origin := range strings.Split(cfg.FrontendURL, ",") {
		if origin = strings.TrimRight(strings.TrimSpace(origin), "/"); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	return cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Disposition", "Retry-After", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics, cfg config.Config) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics, cfg)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	addr := cfg.HTTPAddr
	if strings.TrimSpace(addr) == "" {
		addr = ":5000"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	authsvc      authdomain.Service
	sessions     *session.Manager
	authzSvc     authorization.Service
	auditSvc     auditdomain.Service
	userSvc      userdomain.Service
	productSvc   productdomain.Service
	cartSvc      cartdomain.Service
	orderSvc     orderdomain.Service
	paymentSvc   paymentdomain.Service
	reviewSvc    reviewdomain.Service
	dashboardSvc dashboarddomain.Service
	uploads      *storage.LocalStore
	authLimiter  *ratelimit.AuthLimiter
	obsMetrics   *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	AuthService  authdomain.Service
	Sessions     *session.Manager
	AuthzSvc     authorization.Service
	AuditSvc     auditdomain.Service
	UserSvc      userdomain.Service
	ProductSvc   productdomain.Service
	CartSvc      cartdomain.Service
	OrderSvc     orderdomain.Service
	PaymentSvc   paymentdomain.Service
	ReviewSvc    reviewdomain.Service
	DashboardSvc dashboarddomain.Service
	Uploads      *storage.LocalStore
	AuthLimiter  *ratelimit.AuthLimiter `optional:"true"`
	ObsMetrics   *obsmetrics.Metrics    `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		authsvc:      p.AuthService,
		sessions:     p.Sessions,
		authzSvc:     p.AuthzSvc,
		auditSvc:     p.AuditSvc,
		userSvc:      p.UserSvc,
		productSvc:   p.ProductSvc,
		cartSvc:      p.CartSvc,
		orderSvc:     p.OrderSvc,
		paymentSvc:   p.PaymentSvc,
		reviewSvc:    p.ReviewSvc,
		dashboardSvc: p.DashboardSvc,
		uploads:      p.Uploads,
		authLimiter:  p.AuthLimiter,
		obsMetrics:   p.ObsMetrics,
	}

	svc.registerUploadRoutes()
	svc.registerAuthRoutes()
	svc.registerProductRoutes()
	svc.registerCartRoutes()
	svc.registerOrderRoutes()
	svc.registerPaymentRoutes()
	svc.registerReviewRoutes()
	svc.registerAdminRoutes()
	svc.registerUserRoutes()

	return svc
}

func (s *Server) registerUploadRoutes() {
	if s.uploads == nil {
		return
	}
	s.engine.Static(strings.TrimSuffix(storage.PublicPrefix, "/"), s.uploads.Dir())
}

func (s *Server) registerAuthRoutes() {
	group := s.engine.Group("/api/auth")
	group.POST("/register", s.Register)
	group.POST("/login", s.AuthRateLimit(rateLimitLogin), s.Login)
	group.POST("/request-otp", s.AuthRateLimit(rateLimitOTP), s.RequestOTP)
	group.POST("/verify-otp", s.VerifyOTP)
	group.POST("/reset-password", s.ResetPassword)
	group.GET("/me", s.AuthRequired(), s.Me)
	group.PUT("/profile", s.AuthRequired(), s.UpdateProfile)
}

func (s *Server) registerProductRoutes() {
	group := s.engine.Group("/api/products")
	group.GET("", s.OptionalAuth(), s.ListProducts)
	group.GET("/:id", s.OptionalAuth(), s.GetProduct)

	manage := group.Group("", s.AuthRequired(), s.RequirePermission(authorization.ObjectProduct, authorization.ActionProductManage))
	manage.POST("", s.CreateProduct)
	manage.PUT("/:id", s.UpdateProduct)
	manage.DELETE("/:id", s.DeleteProduct)
}

func (s *Server) registerCartRoutes() {
	group := s.engine.Group("/api/cart", s.CartSession())
	group.GET("", s.GetCart)
	group.POST("/add", s.AddToCart)
	group.POST("/add-multiple", s.AddMultipleToCart)
	group.PUT("/:productId", s.UpdateCartItem)
	group.DELETE("/:productId", s.RemoveCartItem)
	group.DELETE("", s.ClearCart)
}

func (s *Server) registerOrderRoutes() {
	group := s.engine.Group("/api/orders", s.AuthRequired())
	group.POST("", s.RequirePermission(authorization.ObjectOrder, authorization.ActionOrderCreate), s.CreateOrder)
	group.GET("/my-orders", s.RequirePermission(authorization.ObjectOrder, authorization.ActionOrderReadOwn), s.ListMyOrders)
	group.GET("/statistics/summary", s.RequirePermission(authorization.ObjectOrder, authorization.ActionOrderStatistics), s.OrderStatistics)
	group.GET("", s.RequirePermission(authorization.ObjectOrder, authorization.ActionOrderReadAll), s.ListOrders)
	group.GET("/:orderId", s.GetOrder)
	group.GET("/:orderId/invoice", s.DownloadInvoice)
	group.PUT("/:orderId/cancel", s.RequirePermission(authorization.ObjectOrder, authorization.ActionOrderCancel), s.CancelOrder)
	group.PUT("/:orderId/status", s.RequirePermission(authorization.ObjectOrder, authorization.ActionOrderUpdateStatus), s.UpdateOrderStatus)
}

func (s *Server) registerPaymentRoutes() {
	group := s.engine.Group("/api/payments")
	group.GET("/vnpay-ipn", s.VNPayIPN)
	group.GET("/vnpay-return", s.VNPayReturn)
	group.POST("/vnpay-return", s.ConfirmVNPayReturn)
	group.POST("/create", s.AuthRequired(), s.RequirePermission(authorization.ObjectPayment, authorization.ActionPaymentCreate), s.CreatePayment)
	group.GET("/:orderId/status", s.AuthRequired(), s.PaymentStatus)
}

func (s *Server) registerReviewRoutes() {
	group := s.engine.Group("/api/reviews")
	group.GET("/product/:productId", s.ListProductReviews)
	group.GET("/check-purchase/:productId", s.AuthRequired(), s.CheckPurchase)
	group.POST("", s.AuthRequired(), s.RequirePermission(authorization.ObjectReview, authorization.ActionReviewCreate), s.CreateReview)
	group.POST("/:reviewId/reply", s.AuthRequired(), s.RequirePermission(authorization.ObjectReview, authorization.ActionReviewReply), s.ReplyReview)
	group.DELETE("/:reviewId", s.AuthRequired(), s.DeleteReview)
}

func (s *Server) registerAdminRoutes() {
	group := s.engine.Group("/api/admin", s.AuthRequired())
	group.GET("/dashboard", s.RequirePermission(authorization.ObjectDashboard, authorization.ActionDashboardView), s.DashboardStats)
	group.GET("/audit-logs", s.RequirePermission(authorization.ObjectAuditLog, authorization.ActionAuditLogView), s.ListAuditLogs)
}

func (s *Server) registerUserRoutes() {
	group := s.engine.Group("/api/users", s.AuthRequired(), s.RequirePermission(authorization.ObjectUser, authorization.ActionUserManage))
	group.GET("", s.ListUsers)
	group.POST("", s.CreateUser)
	group.GET("/:userId", s.GetUser)
	group.PUT("/:userId", s.UpdateUser)
	group.DELETE("/:userId", s.DeleteUser)
	group.PATCH("/:userId/role", s.UpdateUserRole)
	group.PATCH("/:userId/status", s.UpdateUserStatus)
}
