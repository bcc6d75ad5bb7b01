package connection

import (
	"fmt"
	"net/http"
	"strings"

	"ceeloserver/auth"
	"ceeloserver/models"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dgrijalva/jwt-go"
)

// ClientContext はクライアントのセッション情報を保持するための構造体です。
type ClientContext struct {
	UserID   uint
	Name     string
	RoomCode string
	Claims   *models.MyClaims // JWTクレームを含む
}

// TokenValidation はヘッダーまたはクエリパラメータからJWTトークンを取り出して検証する。
// WebSocketクライアントはヘッダーを付けられない場合があるためクエリも受け付ける。
func TokenValidation(r *http.Request, logger *zap.Logger) (*models.MyClaims, error) {
	tokenString := r.Header.Get("Authorization")
	if strings.HasPrefix(tokenString, "Bearer ") {
		tokenString = strings.TrimPrefix(tokenString, "Bearer ")
	}
	if tokenString == "" {
		tokenString = r.URL.Query().Get("token")
	}

	claims := &models.MyClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return auth.JwtKey, nil
	})

	if err != nil || !token.Valid {
		logger.Error("Failed to validate token", zap.Error(err))
		return nil, fmt.Errorf("token validation failed: %w", err)
	}

	return claims, nil
}

// FetchClientContext はトークンを検証し、ユーザー情報と参加先ルームコードを解決する。
func FetchClientContext(r *http.Request, db *gorm.DB, logger *zap.Logger) (*ClientContext, error) {
	claims, err := TokenValidation(r, logger)
	if err != nil {
		return nil, fmt.Errorf("unauthorized: %w", err)
	}

	// 表示名はDBの値を優先し、未登録ならトークン内の名前を使う
	name := claims.PlayerName
	var user models.User
	if err := db.First(&user, claims.UserID).Error; err == nil && user.PlayerName != "" {
		name = user.PlayerName
	}

	// 参加先のルームコードはクエリパラメータで指定する
	roomCode := r.URL.Query().Get("room")

	return &ClientContext{
		UserID:   claims.UserID,
		Name:     name,
		RoomCode: roomCode,
		Claims:   claims,
	}, nil
}
