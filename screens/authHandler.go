package screens

import (
	"net/http"
	"time"

	"ceeloserver/auth"
	"ceeloserver/middlewares"
	"ceeloserver/models"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/gin-gonic/gin"
	jwt "github.com/dgrijalva/jwt-go"
)

// AuthHandler はゲストユーザーの発行と既存トークンの更新を処理します。
// トークンが未提供なら新規ユーザーを作成してトークンを発行する。
func AuthHandler(c *gin.Context, db *gorm.DB, logger *zap.Logger) {
	var request models.AuthRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		logger.Error("Auth request bind error", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if request.Token != "" {
		// トークンが提供された場合、そのトークンをパースして検証
		claims := &models.MyClaims{}
		token, err := jwt.ParseWithClaims(request.Token, claims, func(token *jwt.Token) (interface{}, error) {
			return auth.JwtKey, nil
		})

		if err != nil || !token.Valid {
			logger.Error("Token validation error", zap.Error(err))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "認証失敗"})
			return
		}

		// トークンの有効期限チェック
		needUpdate := time.Until(time.Unix(claims.ExpiresAt, 0)) < time.Hour
		if needUpdate {
			// 既存のユーザーIDを引き継いで新しいトークンを生成
			newToken, userID, err := middlewares.GenerateToken(db, logger, claims.PlayerName, claims.UserID)
			if err != nil {
				logger.Error("Token generation error", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "トークン生成に失敗しました"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"token": newToken, "userID": userID})
			return
		}

		// トークンが有効な場合、認証成功
		c.JSON(http.StatusOK, gin.H{"message": "認証成功", "userID": claims.UserID})
		return
	}

	// トークンがない場合、新しいユーザーとトークンを生成
	token, userID, err := middlewares.GenerateToken(db, logger, request.PlayerName, 0)
	if err != nil {
		logger.Error("Token generation error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "トークン生成に失敗しました"})
		return
	}

	// トークンをクライアントに送信
	c.JSON(http.StatusOK, gin.H{"token": token, "userID": userID})
}
