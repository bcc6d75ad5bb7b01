package models

import (
	jwt "github.com/dgrijalva/jwt-go"
)

// MyClaims はゲストトークンに内包するデータ
type MyClaims struct {
	UserID     uint   `json:"userId"`
	PlayerName string `json:"playerName"`
	jwt.StandardClaims
}
