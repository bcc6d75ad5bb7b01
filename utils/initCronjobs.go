package utils

import (
	"time"

	"ceeloserver/engine"
	"ceeloserver/models"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func CronCleaner(registry *engine.Registry, db *gorm.DB, logger *zap.Logger) {
	c := cron.New()

	// 24時間利用のないルームを破棄するジョブ（毎日実行）
	c.AddFunc("@daily", func() {
		logger.Info("放置されたルームを整理する処理を開始")
		destroyed := registry.Sweep(24 * time.Hour)
		logger.Info("Idle room sweep finished",
			zap.Int("rooms_destroyed", destroyed),
			zap.Int("rooms_remaining", registry.Count()),
		)
	})

	// 長期間ログインのないユーザーを削除するジョブ（"分 時 日 月 曜日"）
	c.AddFunc("0 3 * * *", func() {
		logger.Info("休眠ユーザーを削除する処理を開始")
		result := db.Where("updated_at <= ?", time.Now().Add(-30*24*time.Hour)).Delete(&models.User{})
		if result.Error != nil {
			logger.Error("休眠ユーザーの削除に失敗しました", zap.Error(result.Error))
		} else {
			logger.Info("休眠ユーザーの削除完了", zap.Int("users_deleted", int(result.RowsAffected)))
		}
	})

	c.Start()
}
