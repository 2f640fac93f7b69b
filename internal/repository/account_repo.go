package repository

import (
	"context"
	"errors"

	"fundledger/internal/ledger"
	"fundledger/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// EnsureAll 启动引导：按清单创建缺失的资金池
// 已存在的池子不动，余额永远不在这里初始化之外被直接写入
func (r *AccountRepository) EnsureAll(ctx context.Context, names []string) error {
	for _, name := range names {
		account := &model.FundAccount{Name: name, Balance: 0}
		err := r.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "name"}},
				DoNothing: true,
			}).
			Create(account).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *AccountRepository) GetByName(ctx context.Context, name string) (*model.FundAccount, error) {
	var account model.FundAccount
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *AccountRepository) List(ctx context.Context) ([]*model.FundAccount, error) {
	var accounts []*model.FundAccount
	err := r.db.WithContext(ctx).Order("name ASC").Find(&accounts).Error
	return accounts, err
}

// Add 对资金池余额做原子增减
//
// delta 为负时附带余额守卫：余额会变负则一行都不更新，
// 返回 ErrInsufficientFunds —— 绝不把余额截断到 0
func (r *AccountRepository) Add(ctx context.Context, tx *gorm.DB, name string, delta int64) error {
	if tx == nil {
		tx = r.db
	}

	query := tx.WithContext(ctx).
		Model(&model.FundAccount{}).
		Where("name = ?", name)
	if delta < 0 {
		query = query.Where("balance >= ?", -delta)
	}

	result := query.Updates(map[string]interface{}{
		"balance": gorm.Expr("balance + ?", delta),
		"version": gorm.Expr("version + 1"),
	})
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		balance, err := r.BalanceTx(ctx, tx, name)
		if err != nil {
			return err
		}
		if balance < -delta {
			return ledger.ErrInsufficientFunds
		}
		return ledger.ErrConcurrentModification
	}

	return nil
}

// BalanceTx 在事务内读取当前余额，用于流水的 balance_after
func (r *AccountRepository) BalanceTx(ctx context.Context, tx *gorm.DB, name string) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	var account model.FundAccount
	err := tx.WithContext(ctx).Where("name = ?", name).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ledger.ErrNotFound
		}
		return 0, err
	}
	return account.Balance, nil
}
