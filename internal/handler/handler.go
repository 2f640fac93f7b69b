package handler

import (
	"errors"
	"strconv"

	"fundledger/internal/config"
	"fundledger/internal/ledger"
	"fundledger/internal/model"
	"fundledger/internal/repository"
	"fundledger/internal/service"
	"fundledger/pkg/idgen"
	"fundledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	ledgerService     *service.LedgerService
	pointsService     *service.PointsService
	settlementService *service.SettlementService
	rewardService     *service.RewardService
	withdrawalService *service.WithdrawalService
	subsidyService    *service.SubsidyService
	couponService     *service.CouponService
	referralRepo      *repository.ReferralRepository
}

// NewHandler 创建处理器实例
func NewHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *Handler {
	return &Handler{
		ledgerService:     service.NewLedgerService(db),
		pointsService:     service.NewPointsService(db),
		settlementService: service.NewSettlementService(db, rdb, cfg),
		rewardService:     service.NewRewardService(db, rdb, cfg),
		withdrawalService: service.NewWithdrawalService(db, rdb, cfg),
		subsidyService:    service.NewSubsidyService(db, cfg),
		couponService:     service.NewCouponService(db),
		referralRepo:      repository.NewReferralRepository(db),
	}
}

// bizError 把账本层的哨兵错误映射为业务码
func bizError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds):
		response.BusinessError(c, response.CodeInsufficientFunds, err.Error())
	case errors.Is(err, ledger.ErrInsufficientPoints):
		response.BusinessError(c, response.CodeInsufficientPoints, err.Error())
	case errors.Is(err, ledger.ErrInvalidState):
		response.BusinessError(c, response.CodeInvalidState, err.Error())
	case errors.Is(err, ledger.ErrAlreadyResolved):
		response.BusinessError(c, response.CodeAlreadyResolved, err.Error())
	case errors.Is(err, ledger.ErrNotFound):
		response.BusinessError(c, response.CodeRecordNotFound, err.Error())
	case errors.Is(err, ledger.ErrConcurrentModification):
		response.BusinessError(c, response.CodeConcurrentConflict, err.Error())
	default:
		response.ServerError(c, err.Error())
	}
}

// ============================================================
// 订单相关接口
// ============================================================

// CreateOrder 下单结算
// POST /order/create
func (h *Handler) CreateOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.settlementService.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		bizError(c, err)
		return
	}
	response.Success(c, result)
}

type orderNoRequest struct {
	OrderNo string `json:"order_no" binding:"required"`
}

// PayOrder 支付确认
// POST /order/pay
func (h *Handler) PayOrder(c *gin.Context) {
	var req orderNoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	if err := h.settlementService.Pay(c.Request.Context(), req.OrderNo); err != nil {
		bizError(c, err)
		return
	}
	response.Success(c, gin.H{"order_no": req.OrderNo, "status": model.OrderStatusPendingShip})
}

// ShipOrder 发货
// POST /order/ship
func (h *Handler) ShipOrder(c *gin.Context) {
	var req struct {
		OrderNo        string `json:"order_no" binding:"required"`
		TrackingNumber string `json:"tracking_number"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	if err := h.settlementService.Ship(c.Request.Context(), req.OrderNo, req.TrackingNumber); err != nil {
		bizError(c, err)
		return
	}
	response.Success(c, gin.H{"order_no": req.OrderNo, "status": model.OrderStatusPendingRecv})
}

// ConfirmReceive 确认收货
// POST /order/confirm-receive
func (h *Handler) ConfirmReceive(c *gin.Context) {
	var req orderNoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	if err := h.settlementService.ConfirmReceive(c.Request.Context(), req.OrderNo); err != nil {
		bizError(c, err)
		return
	}
	response.Success(c, gin.H{"order_no": req.OrderNo, "status": model.OrderStatusCompleted})
}

// GetOrder 订单详情
// GET /order/detail?order_no=xxx
func (h *Handler) GetOrder(c *gin.Context) {
	orderNo := c.Query("order_no")
	if orderNo == "" {
		response.ParamError(c, "order_no 参数不能为空")
		return
	}
	order, items, err := h.settlementService.GetOrder(c.Request.Context(), orderNo)
	if err != nil {
		bizError(c, err)
		return
	}
	response.Success(c, gin.H{"order": order, "items": items})
}

// ============================================================
// 退款相关接口
// ============================================================

// RefundApply 发起退款
// POST /refund/apply
func (h *Handler) RefundApply(c *gin.Context) {
	var req service.RefundApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	refundNo, err := h.settlementService.RefundApply(c.Request.Context(), &req)
	if err != nil {
		bizError(c, err)
		return
	}
	response.Success(c, gin.H{"refund_no": refundNo, "status": model.RefundPending})
}

// RefundApprove 退款审批通过
// POST /refund/approve
func (h *Handler) RefundApprove(c *gin.Context) {
	var req struct {
		RefundNo  string `json:"refund_no" binding:"required"`
		RequestID string `json:"request_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	if err := h.settlementService.RefundApprove(c.Request.Context(), req.RefundNo, req.RequestID); err != nil {
		bizError(c, err)
		return
	}
	response.Success(c, gin.H{"refund_no": req.RefundNo, "status": model.RefundSuccess})
}

// RefundReject 退款驳回
// POST /refund/reject
func (h *Handler) RefundReject(c *gin.Context) {
	var req struct {
		RefundNo string `json:"refund_no" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	if err := h.settlementService.RefundReject(c.Request.Context(), req.RefundNo); err != nil {
		bizError(c, err)
		return
	}
	response.Success(c, gin.H{"refund_no": req.RefundNo, "status": model.RefundRejected})
}

// ============================================================
// 积分相关接口
// ============================================================

// AdjustPoints 积分调整
// POST /points
func (h *Handler) AdjustPoints(c *gin.Context) {
	var req struct {
		UserID  int64  `json:"user_id" binding:"required"`
		Kind    string `json:"kind" binding:"required"`
		Delta   int64  `json:"delta" binding:"required"`
		CauseID string `json:"cause_id" binding:"required"`
		Reason  string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	if err := h.pointsService.Adjust(c.Request.Context(), req.UserID, req.Kind, req.Delta,
		model.CauseManualFund, req.CauseID, req.Reason); err != nil {
		bizError(c, err)
		return
	}
	balance, err := h.pointsService.Balance(c.Request.Context(), req.UserID, req.Kind)
	if err != nil {
		bizError(c, err)
		return
	}
	response.Success(c, gin.H{"user_id": req.UserID, "kind": req.Kind, "balance": balance})
}

// PointsLog 积分流水
// GET /points/log?user_id=xxx&limit=100
func (h *Handler) PointsLog(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "user_id 参数错误")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	entries, err := h.pointsService.ListLog(c.Request.Context(), userID, limit)
	if err != nil {
		bizError(c, err)
		return
	}
	response.Success(c, gin.H{"list": entries})
}

// ============================================================
// 奖励审核接口
// ============================================================

// AuditReward 奖励审核
// POST /api/rewards/audit
func (h *Handler) AuditReward(c *gin.Context) {
	var req service.RewardAuditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	if err := h.rewardService.Audit(c.Request.Context(), &req); err != nil {
		bizError(c, err)
		return
	}
	response.Success(c, gin.H{"reward_id": req.RewardID})
}

// ListPendingRewards 待审核奖励列表
// GET /api/rewards/pending?limit=100
func (h *Handler) ListPendingRewards(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	rewards, err := h.rewardService.ListPending(c.Request.Context(), limit)
	if err != nil {
		bizError(c, err)
		return
	}
	response.Success(c, gin.H{"list": rewards})
}

// ============================================================
// 提现接口
// ============================================================

// ApplyWithdrawal 提现申请
// POST /api/withdrawals/apply
func (h *Handler) ApplyWithdrawal(c *gin.Context) {
	var req service.WithdrawalApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	withdrawal, err := h.withdrawalService.Apply(c.Request.Context(), &req)
	if err != nil {
		bizError(c, err)
		return
	}
	response.Success(c, gin.H{
		"withdrawal_no": withdrawal.WithdrawalNo,
		"status":        withdrawal.Status,
	})
}

// AuditWithdrawal 提现审核
// PATCH /api/withdrawals/audit
func (h *Handler) AuditWithdrawal(c *gin.Context) {
	var req service.WithdrawalAuditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	if err := h.withdrawalService.Audit(c.Request.Context(), &req); err != nil {
		bizError(c, err)
		return
	}
	response.Success(c, gin.H{"withdrawal_id": req.WithdrawalID})
}

// ============================================================
// 补贴与分红接口
// ============================================================

// DistributeSubsidy 周补贴发放
// POST /api/subsidy/distribute
func (h *Handler) DistributeSubsidy(c *gin.Context) {
	var req struct {
		BatchID string `json:"batch_id"`
	}
	_ = c.ShouldBindJSON(&req)
	if req.BatchID == "" {
		req.BatchID = idgen.GenerateBatchID("SUB")
	}

	report, err := h.subsidyService.DistributeWeeklySubsidy(c.Request.Context(), req.BatchID)
	if err != nil {
		bizError(c, err)
		return
	}
	response.Success(c, report)
}

// DistributeDividend 层级分红
// POST /api/unilevel/dividend
func (h *Handler) DistributeDividend(c *gin.Context) {
	var req struct {
		BatchID string `json:"batch_id"`
	}
	_ = c.ShouldBindJSON(&req)
	if req.BatchID == "" {
		req.BatchID = idgen.GenerateBatchID("DIV")
	}

	report, err := h.subsidyService.DistributeDividend(c.Request.Context(), req.BatchID)
	if err != nil {
		bizError(c, err)
		return
	}
	response.Success(c, report)
}

// FundPool 资金池注资
// POST /api/subsidy/fund
func (h *Handler) FundPool(c *gin.Context) {
	var req struct {
		Pool   string `json:"pool" binding:"required"`
		Amount int64  `json:"amount" binding:"required,gt=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	causeID := idgen.GenerateBatchID("FUND")
	if err := h.subsidyService.FundPool(c.Request.Context(), req.Pool, req.Amount, causeID); err != nil {
		bizError(c, err)
		return
	}
	response.Success(c, gin.H{"pool": req.Pool, "amount": req.Amount})
}

// ClearPool 清空资金池
// POST /api/fund-pools/clear
func (h *Handler) ClearPool(c *gin.Context) {
	var req struct {
		Pool string `json:"pool" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	causeID := idgen.GenerateBatchID("CLR")
	cleared, err := h.subsidyService.ClearPool(c.Request.Context(), req.Pool, causeID)
	if err != nil {
		bizError(c, err)
		return
	}
	response.Success(c, gin.H{"pool": req.Pool, "cleared": cleared})
}

// ListFundPools 资金池余额列表
// GET /api/fund-pools
func (h *Handler) ListFundPools(c *gin.Context) {
	pools, err := h.ledgerService.ListPools(c.Request.Context())
	if err != nil {
		bizError(c, err)
		return
	}
	response.Success(c, gin.H{"list": pools})
}

// ListFlows 资金流水
// GET /api/flows?account_type=xxx&limit=100
func (h *Handler) ListFlows(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	flows, err := h.ledgerService.ListFlows(c.Request.Context(), c.Query("account_type"), limit)
	if err != nil {
		bizError(c, err)
		return
	}
	response.Success(c, gin.H{"list": flows})
}

// ============================================================
// 优惠券接口
// ============================================================

// DistributeCoupon 发券
// POST /api/coupons/distribute
func (h *Handler) DistributeCoupon(c *gin.Context) {
	var req struct {
		UserID int64  `json:"user_id" binding:"required"`
		Amount int64  `json:"amount" binding:"required,gt=0"`
		Type   string `json:"type" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	coupon, err := h.couponService.Distribute(c.Request.Context(), req.UserID, req.Amount, req.Type)
	if err != nil {
		bizError(c, err)
		return
	}
	response.Success(c, coupon)
}

// UseCoupon 核销优惠券
// POST /api/coupons/use
func (h *Handler) UseCoupon(c *gin.Context) {
	var req struct {
		CouponID int64 `json:"coupon_id" binding:"required"`
		UserID   int64 `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	if err := h.couponService.Use(c.Request.Context(), req.CouponID, req.UserID); err != nil {
		bizError(c, err)
		return
	}
	response.Success(c, gin.H{"coupon_id": req.CouponID, "status": model.CouponStatusUsed})
}

// ============================================================
// 推荐关系接口
// ============================================================

// SetReferral 建立推荐关系
// POST /api/referrals
func (h *Handler) SetReferral(c *gin.Context) {
	var req struct {
		UserID     int64 `json:"user_id" binding:"required"`
		ReferrerID int64 `json:"referrer_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	if err := h.referralRepo.Set(c.Request.Context(), req.UserID, req.ReferrerID); err != nil {
		if errors.Is(err, repository.ErrReferrerExists) {
			response.BusinessError(c, response.CodeInvalidState, err.Error())
			return
		}
		bizError(c, err)
		return
	}
	response.Success(c, gin.H{"user_id": req.UserID, "referrer_id": req.ReferrerID})
}
