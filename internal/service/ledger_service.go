package service

import (
	"context"
	"errors"
	"fmt"

	"fundledger/internal/model"
	"fundledger/internal/repository"
	"fundledger/pkg/idgen"

	"gorm.io/gorm"
)

// LedgerService 资金账本的唯一写入口
//
// 所有资金池和用户资金余额的变动都从这里走：
// 余额原子增减 + 追加一条带 balance_after 的流水，两者同一个事务。
// 其他服务不允许绕过本服务直接改余额。
type LedgerService struct {
	db          *gorm.DB
	accountRepo *repository.AccountRepository
	userRepo    *repository.UserRepository
	flowRepo    *repository.FlowRepository
}

func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{
		db:          db,
		accountRepo: repository.NewAccountRepository(db),
		userRepo:    repository.NewUserRepository(db),
		flowRepo:    repository.NewFlowRepository(db),
	}
}

// CreditTx 资金池入账
func (s *LedgerService) CreditTx(ctx context.Context, tx *gorm.DB, pool string, amount int64, causeType, causeID, remark string) error {
	if amount <= 0 {
		return errors.New("入账金额必须大于0")
	}
	return s.applyPoolTx(ctx, tx, pool, amount, causeType, causeID, remark)
}

// DebitTx 资金池出账，余额不足时整笔失败
func (s *LedgerService) DebitTx(ctx context.Context, tx *gorm.DB, pool string, amount int64, causeType, causeID, remark string) error {
	if amount <= 0 {
		return errors.New("出账金额必须大于0")
	}
	return s.applyPoolTx(ctx, tx, pool, -amount, causeType, causeID, remark)
}

func (s *LedgerService) Credit(ctx context.Context, pool string, amount int64, causeType, causeID, remark string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return s.CreditTx(ctx, tx, pool, amount, causeType, causeID, remark)
	})
}

func (s *LedgerService) Debit(ctx context.Context, pool string, amount int64, causeType, causeID, remark string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return s.DebitTx(ctx, tx, pool, amount, causeType, causeID, remark)
	})
}

// applyPoolTx 资金池余额变动 + 流水，delta 带符号
func (s *LedgerService) applyPoolTx(ctx context.Context, tx *gorm.DB, pool string, delta int64, causeType, causeID, remark string) error {
	if err := s.accountRepo.Add(ctx, tx, pool, delta); err != nil {
		return err
	}
	balance, err := s.accountRepo.BalanceTx(ctx, tx, pool)
	if err != nil {
		return err
	}
	return s.flowRepo.Create(ctx, tx, &model.FlowEntry{
		FlowNo:       idgen.GenerateFlowNo(),
		AccountType:  pool,
		UserID:       0,
		ChangeAmount: delta,
		BalanceAfter: balance,
		CauseType:    causeType,
		CauseID:      causeID,
		Remark:       remark,
	})
}

// applyUserTx 用户资金字段变动 + 流水，delta 带符号
func (s *LedgerService) applyUserTx(ctx context.Context, tx *gorm.DB, userID int64, field string, delta int64, causeType, causeID, remark string) error {
	if err := s.userRepo.AddToField(ctx, tx, userID, field, delta); err != nil {
		return err
	}
	balance, err := s.userRepo.FieldTx(ctx, tx, userID, field)
	if err != nil {
		return err
	}
	return s.flowRepo.Create(ctx, tx, &model.FlowEntry{
		FlowNo:       idgen.GenerateFlowNo(),
		AccountType:  field,
		UserID:       userID,
		ChangeAmount: delta,
		BalanceAfter: balance,
		CauseType:    causeType,
		CauseID:      causeID,
		Remark:       remark,
	})
}

// TransferToUserTx 资金池 → 用户余额字段的守恒转账
// 池子出多少用户进多少，两条流水共用同一个因果
func (s *LedgerService) TransferToUserTx(ctx context.Context, tx *gorm.DB, pool string, userID int64, field string, amount int64, causeType, causeID, remark string) error {
	if amount <= 0 {
		return errors.New("转账金额必须大于0")
	}
	if err := s.userRepo.EnsureTx(ctx, tx, userID); err != nil {
		return fmt.Errorf("初始化用户余额失败: %w", err)
	}
	if err := s.applyPoolTx(ctx, tx, pool, -amount, causeType, causeID, remark); err != nil {
		return err
	}
	return s.applyUserTx(ctx, tx, userID, field, amount, causeType, causeID, remark)
}

func (s *LedgerService) TransferToUser(ctx context.Context, pool string, userID int64, field string, amount int64, causeType, causeID, remark string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return s.TransferToUserTx(ctx, tx, pool, userID, field, amount, causeType, causeID, remark)
	})
}

// DebitUserTx 用户资金字段出账（提现等），余额不足整笔失败
func (s *LedgerService) DebitUserTx(ctx context.Context, tx *gorm.DB, userID int64, field string, amount int64, causeType, causeID, remark string) error {
	if amount <= 0 {
		return errors.New("出账金额必须大于0")
	}
	return s.applyUserTx(ctx, tx, userID, field, -amount, causeType, causeID, remark)
}

// CreditUserTx 用户资金字段入账（不经过资金池的场景慎用）
func (s *LedgerService) CreditUserTx(ctx context.Context, tx *gorm.DB, userID int64, field string, amount int64, causeType, causeID, remark string) error {
	if amount <= 0 {
		return errors.New("入账金额必须大于0")
	}
	if err := s.userRepo.EnsureTx(ctx, tx, userID); err != nil {
		return fmt.Errorf("初始化用户余额失败: %w", err)
	}
	return s.applyUserTx(ctx, tx, userID, field, amount, causeType, causeID, remark)
}

// ReverseTx 按因果冲正：把该 cause_id 下的全部流水逐条取反
//
// 冲正流水沿用原 cause_id，冲正后该因果的流水符号和归零。
// 幂等：冲正标记已存在时返回 (false, nil)，不产生任何新流水。
func (s *LedgerService) ReverseTx(ctx context.Context, tx *gorm.DB, causeID, remark string) (bool, error) {
	ok, err := s.flowRepo.MarkReversed(ctx, tx, causeID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	entries, err := s.flowRepo.ListByCause(ctx, tx, causeID)
	if err != nil {
		return false, err
	}

	for _, entry := range entries {
		if entry.UserID == 0 {
			err = s.applyPoolTx(ctx, tx, entry.AccountType, -entry.ChangeAmount, entry.CauseType, causeID, remark)
		} else {
			err = s.applyUserTx(ctx, tx, entry.UserID, entry.AccountType, -entry.ChangeAmount, entry.CauseType, causeID, remark)
		}
		if err != nil {
			return false, fmt.Errorf("冲正流水失败: flowNo=%s: %w", entry.FlowNo, err)
		}
	}

	return true, nil
}

func (s *LedgerService) Reverse(ctx context.Context, causeID, remark string) (bool, error) {
	var reversed bool
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		reversed, err = s.ReverseTx(ctx, tx, causeID, remark)
		return err
	})
	return reversed, err
}

// PoolBalance 查询资金池当前余额
func (s *LedgerService) PoolBalance(ctx context.Context, pool string) (int64, error) {
	account, err := s.accountRepo.GetByName(ctx, pool)
	if err != nil {
		return 0, err
	}
	return account.Balance, nil
}

// ListPools 查询全部资金池
func (s *LedgerService) ListPools(ctx context.Context) ([]*model.FundAccount, error) {
	return s.accountRepo.List(ctx)
}

// ListFlows 流水查询，accountType 为空时返回全账本最近流水
func (s *LedgerService) ListFlows(ctx context.Context, accountType string, limit int) ([]*model.FlowEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if accountType == "" {
		return s.flowRepo.List(ctx, limit)
	}
	return s.flowRepo.ListByAccount(ctx, accountType, limit)
}
