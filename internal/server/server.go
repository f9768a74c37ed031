package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"myme/internal/auth"
	"myme/internal/bill"
	"myme/internal/config"
	"myme/internal/dispute"
	"myme/internal/enterprise"
	"myme/internal/notification"
	"myme/internal/subscription"
	"myme/internal/transfer"
	"myme/internal/user"
	"myme/internal/wallet"
)

// Handlers groups the HTTP handlers of every domain package.
type Handlers struct {
	User         *user.Handler
	Wallet       *wallet.Handler
	Transfer     *transfer.Handler
	Dispute      *dispute.Handler
	Enterprise   *enterprise.Handler
	Subscription *subscription.Handler
	Bill         *bill.Handler
	Notification *notification.Handler
}

type Server struct {
	router *gin.Engine
	http   *http.Server
}

func New(cfg *config.Config, database *sqlx.DB, rdb *redis.Client, h Handlers, keys *enterprise.Authenticator, notifier Notifier) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLoggingMiddleware())
	router.Use(MetricsMiddleware())
	router.Use(corsMiddleware())
	router.Use(RateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst))

	router.GET("/health", Health(database, rdb))
	router.GET("/metrics", Metrics())
	SetupSwagger(router)

	public := router.Group("/auth")
	{
		public.POST("/register", h.User.Register)
		public.POST("/login", h.User.Login)
	}

	authMiddleware := auth.AuthMiddleware(cfg.JWTSecret)
	protected := router.Group("/")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", h.User.GetMe)
		protected.POST("/businesses", h.User.CreateBusiness)
		protected.GET("/businesses", h.User.ListMyBusinesses)

		protected.GET("/wallets/me", h.Wallet.GetMyWallets)
		protected.GET("/wallets/lookup", h.Wallet.Lookup)
		protected.GET("/wallets/:walletID/transactions", h.Wallet.ListTransactions)
		protected.GET("/transactions/:transactionID", h.Wallet.GetTransaction)
		protected.POST("/transfers", h.Transfer.CreateTransfer)

		protected.POST("/disputes", h.Dispute.FileMine)

		protected.GET("/grants", h.Enterprise.ListMyGrants)
		protected.POST("/grants/:grantID/approve", h.Enterprise.ApproveGrant)
		protected.POST("/grants/:grantID/reject", h.Enterprise.RejectGrant)
		protected.POST("/grants/:grantID/suspend", h.Enterprise.SuspendGrant)

		protected.GET("/subscriptions/plans", h.Subscription.ListPlans)
		protected.POST("/subscriptions/plans", h.Subscription.CreatePlan)
		protected.GET("/subscriptions/me", h.Subscription.ListMy)
		protected.POST("/subscriptions", h.Subscription.Create)
		protected.DELETE("/subscriptions/:planID", h.Subscription.Cancel)

		protected.GET("/bills/:number", h.Bill.ListDue)
		protected.POST("/bills/pay", h.Bill.Pay)
		protected.PUT("/bills/:number/autopay", h.Bill.SetAutopay)

		protected.GET("/notifications", h.Notification.ListMine)
		protected.POST("/notifications/test", TestNotification(notifier))
	}

	staff := router.Group("/admin")
	staff.Use(authMiddleware, auth.RequireRole(auth.RoleStaff, auth.RoleAdmin))
	{
		staff.POST("/disputes", h.Dispute.Create)
		staff.GET("/disputes", h.Dispute.List)
		staff.GET("/disputes/:disputeID", h.Dispute.Get)
		staff.POST("/disputes/:disputeID/move-to-review", h.Dispute.MoveToReview)
		staff.POST("/disputes/:disputeID/mark-as-reviewed", h.Dispute.MarkReviewed)
		staff.POST("/disputes/:disputeID/process-refund", h.Dispute.ProcessRefund)

		staff.POST("/wallets/:walletID/restrict", h.Wallet.Restrict)
		staff.POST("/wallets/:walletID/unrestrict", h.Wallet.Unrestrict)
		staff.POST("/wallets/:walletID/freeze", h.Wallet.Freeze)
		staff.POST("/wallets/:walletID/unfreeze", h.Wallet.Unfreeze)
	}

	admin := router.Group("/admin")
	admin.Use(authMiddleware, auth.RequireRole(auth.RoleAdmin))
	{
		admin.POST("/enterprises", h.Enterprise.CreateEnterprise)
		admin.POST("/access-keys", h.Enterprise.IssueKey)

		admin.POST("/utilities", h.Bill.CreateUtility)
		admin.POST("/utilities/:utilityID/accounts", h.Bill.CreateAccount)
		admin.POST("/bills", h.Bill.IssueBill)
	}

	external := router.Group("/external")
	external.Use(enterprise.KeyAuthMiddleware(keys))
	{
		external.POST("/push", h.Enterprise.Push)
		external.POST("/pull", h.Enterprise.Pull)
		external.POST("/grants", h.Enterprise.RequestGrant)
		external.GET("/grants", h.Enterprise.ListEnterpriseGrants)
	}

	return &Server{
		router: router,
		http: &http.Server{
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) Start(port string) error {
	s.http.Addr = ":" + port
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
