package job

import (
	"context"
	"log"
	"time"

	"fundledger/internal/config"
	"fundledger/internal/service"

	"gorm.io/gorm"
)

// AutoReceiveJob 自动确认收货任务
//
// 发货时订单上盖了 auto_receive_at 期限，
// 到期仍未确认收货的订单由这里代为确认，推动订单走完状态机
type AutoReceiveJob struct {
	db            *gorm.DB
	settlementSvc *service.SettlementService
	cfg           *config.Config
	stopCh        chan struct{}
	interval      time.Duration
	batchSize     int
}

func NewAutoReceiveJob(db *gorm.DB, cfg *config.Config) *AutoReceiveJob {
	return &AutoReceiveJob{
		db:            db,
		settlementSvc: service.NewSettlementService(db, nil, cfg),
		cfg:           cfg,
		stopCh:        make(chan struct{}),
		interval:      time.Minute,
		batchSize:     100,
	}
}

func (j *AutoReceiveJob) Start(ctx context.Context) {
	log.Println("[AutoReceiveJob] 自动收货任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[AutoReceiveJob] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			log.Println("[AutoReceiveJob] 任务停止")
			return
		case <-ticker.C:
			j.confirmExpiredOrders(ctx)
		}
	}
}

func (j *AutoReceiveJob) Stop() {
	close(j.stopCh)
}

func (j *AutoReceiveJob) confirmExpiredOrders(ctx context.Context) {
	confirmed, err := j.settlementSvc.AutoReceiveExpired(ctx, j.batchSize)
	if err != nil {
		log.Printf("[AutoReceiveJob] 查询到期订单失败: %v", err)
		return
	}
	if confirmed > 0 {
		log.Printf("[AutoReceiveJob] 本次自动确认收货 %d 单", confirmed)
	}
}
