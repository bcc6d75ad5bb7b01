package screens

import (
	"errors"
	"net/http"

	"ceeloserver/engine"
	"ceeloserver/middlewares"

	"go.uber.org/zap"

	"github.com/gin-gonic/gin"
)

// RoomCreate は指定した設定で新しいルームを作成し、ルームコードを返します。
// MaxRoundsとWinsNeededが共に0の場合は常設ルームになる。
func RoomCreate(c *gin.Context, registry *engine.Registry, logger *zap.Logger) {
	// JWTトークンからユーザーIDを取得
	userID, err := middlewares.GetUserIDFromToken(c, logger)
	if err != nil {
		logger.Error("Failed to get user ID from token", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{
			"status": "token_validation_error",
			"error":  "認証に失敗しました",
		})
		return
	}

	var config engine.MatchConfig
	if err := c.ShouldBindJSON(&config); err != nil {
		logger.Error("Failed to bind room create request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if config.MaxRounds < 0 || config.WinsNeeded < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid match configuration"})
		return
	}

	room := registry.Create(config)
	logger.Info("Room created",
		zap.String("roomCode", room.Code),
		zap.Uint("createdBy", userID),
	)

	c.JSON(http.StatusOK, gin.H{
		"status":   "success",
		"roomCode": room.Code,
	})
}

// RoomInfo はルームの現在の状態（フェーズ・プレイヤー・ポットなど）を返します。
func RoomInfo(c *gin.Context, registry *engine.Registry, logger *zap.Logger) {
	code := c.Query("code")
	room, err := registry.Find(code)
	if err != nil {
		if errors.Is(err, engine.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"status": "room_not_found",
				"error":  "ルームが見つかりません",
			})
			return
		}
		logger.Error("Failed to find room", zap.String("code", code), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve room"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"room":   room.Snapshot(),
	})
}
