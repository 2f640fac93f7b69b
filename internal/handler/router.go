package handler

import (
	"fundledger/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// SetupRouter 配置路由
func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *gin.Engine {
	// 设置 gin 为发布模式（减少日志输出）
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// 注册中间件
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	// 创建处理器
	h := NewHandler(db, rdb, cfg)

	// 订单与退款
	order := r.Group("/order")
	{
		order.POST("/create", h.CreateOrder)
		order.POST("/pay", h.PayOrder)
		order.POST("/ship", h.ShipOrder)
		order.POST("/confirm-receive", h.ConfirmReceive)
		order.GET("/detail", h.GetOrder)
	}

	refund := r.Group("/refund")
	{
		refund.POST("/apply", h.RefundApply)
		refund.POST("/approve", h.RefundApprove)
		refund.POST("/reject", h.RefundReject)
	}

	// 积分
	r.POST("/points", h.AdjustPoints)
	r.GET("/points/log", h.PointsLog)

	// 管理接口
	api := r.Group("/api")
	{
		api.POST("/subsidy/distribute", h.DistributeSubsidy)
		api.POST("/subsidy/fund", h.FundPool)
		api.POST("/unilevel/dividend", h.DistributeDividend)
		api.POST("/fund-pools/clear", h.ClearPool)
		api.GET("/fund-pools", h.ListFundPools)
		api.GET("/flows", h.ListFlows)

		api.POST("/rewards/audit", h.AuditReward)
		api.GET("/rewards/pending", h.ListPendingRewards)

		api.POST("/withdrawals/apply", h.ApplyWithdrawal)
		api.PATCH("/withdrawals/audit", h.AuditWithdrawal)

		api.POST("/coupons/distribute", h.DistributeCoupon)
		api.POST("/coupons/use", h.UseCoupon)

		api.POST("/referrals", h.SetReferral)
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
