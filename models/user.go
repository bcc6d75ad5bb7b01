package models

import (
	"gorm.io/gorm"
)

// User モデルの定義。Coinsが永続化される残高で、ゲームエンジン側の
// メモリ上の残高と変動のたびに同期される。
type User struct {
	gorm.Model
	PlayerName string `gorm:"not null"`
	Coins      int    `gorm:"not null;default:100"`
}
