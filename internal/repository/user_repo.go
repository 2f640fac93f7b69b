package repository

import (
	"context"
	"errors"
	"fmt"

	"fundledger/internal/ledger"
	"fundledger/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByUserID(ctx context.Context, userID int64) (*model.UserBalance, error) {
	var user model.UserBalance
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetOrCreate(ctx context.Context, userID int64) (*model.UserBalance, error) {
	user, err := r.GetByUserID(ctx, userID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ledger.ErrNotFound) {
		return nil, err
	}

	newUser := &model.UserBalance{UserID: userID}
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(newUser).Error
	if err != nil {
		return nil, err
	}

	return r.GetByUserID(ctx, userID)
}

// EnsureTx 保证用户余额行存在，可以在外层事务内调用
func (r *UserRepository) EnsureTx(ctx context.Context, tx *gorm.DB, userID int64) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(&model.UserBalance{UserID: userID}).Error
}

// column 校验余额字段名，防止任何拼接进 SQL 的非受控字段
func column(field string) (string, error) {
	switch field {
	case model.FieldWithdrawable, model.FieldPromotion, "member_points", "merchant_points":
		return field, nil
	default:
		return "", fmt.Errorf("未知的余额字段: %s", field)
	}
}

// AddToField 对用户的某个余额字段做原子增减
//
// 与资金池同一套守卫：扣减不够时整行不动。
// 积分字段返回 ErrInsufficientPoints，资金字段返回 ErrInsufficientFunds
func (r *UserRepository) AddToField(ctx context.Context, tx *gorm.DB, userID int64, field string, delta int64) error {
	if tx == nil {
		tx = r.db
	}
	col, err := column(field)
	if err != nil {
		return err
	}

	query := tx.WithContext(ctx).
		Model(&model.UserBalance{}).
		Where("user_id = ?", userID)
	if delta < 0 {
		query = query.Where(col+" >= ?", -delta)
	}

	result := query.Updates(map[string]interface{}{
		col:       gorm.Expr(col+" + ?", delta),
		"version": gorm.Expr("version + 1"),
	})
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		current, err := r.FieldTx(ctx, tx, userID, field)
		if err != nil {
			return err
		}
		if current < -delta {
			if field == "member_points" || field == "merchant_points" {
				return ledger.ErrInsufficientPoints
			}
			return ledger.ErrInsufficientFunds
		}
		return ledger.ErrConcurrentModification
	}

	return nil
}

// FieldTx 在事务内读取某个余额字段的当前值
func (r *UserRepository) FieldTx(ctx context.Context, tx *gorm.DB, userID int64, field string) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	if _, err := column(field); err != nil {
		return 0, err
	}

	var user model.UserBalance
	err := tx.WithContext(ctx).Where("user_id = ?", userID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ledger.ErrNotFound
		}
		return 0, err
	}

	switch field {
	case "member_points":
		return user.MemberPoints, nil
	case "merchant_points":
		return user.MerchantPoints, nil
	case model.FieldWithdrawable:
		return user.WithdrawableBalance, nil
	case model.FieldPromotion:
		return user.PromotionBalance, nil
	}
	return 0, fmt.Errorf("未知的余额字段: %s", field)
}

// ListWithMemberPointsAtLeast 周补贴资格筛选：会员积分达到门槛的用户
func (r *UserRepository) ListWithMemberPointsAtLeast(ctx context.Context, min int64) ([]*model.UserBalance, error) {
	var users []*model.UserBalance
	err := r.db.WithContext(ctx).
		Where("member_points >= ?", min).
		Order("user_id ASC").
		Find(&users).Error
	return users, err
}
