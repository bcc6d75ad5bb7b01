package database

import (
	"context"
	"errors"

	"ceeloserver/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// UserBalances はユーザーのコイン残高をPostgreSQLに保存する
type UserBalances struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewUserBalances(db *gorm.DB, logger *zap.Logger) *UserBalances {
	return &UserBalances{db: db, logger: logger}
}

func (b *UserBalances) Balance(ctx context.Context, playerID uint) (int, bool, error) {
	var user models.User
	result := b.db.WithContext(ctx).First(&user, playerID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return 0, false, nil
		}
		b.logger.Error("Failed to load user balance", zap.Uint("playerID", playerID), zap.Error(result.Error))
		return 0, false, result.Error
	}
	return user.Coins, true, nil
}

func (b *UserBalances) SaveBalance(ctx context.Context, playerID uint, coins int) error {
	result := b.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", playerID).Update("coins", coins)
	if result.Error != nil {
		b.logger.Error("Failed to save user balance", zap.Uint("playerID", playerID), zap.Error(result.Error))
		return result.Error
	}
	return nil
}
