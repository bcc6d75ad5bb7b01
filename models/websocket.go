package models

import (
	"github.com/gorilla/websocket"
)

// Websocketクライアントを定義
type Client struct {
	Conn     *websocket.Conn
	UserID   uint   // JWTから抽出したユーザーID
	RoomCode string // 接続が所属するルームの明示的なマッピング
	Name     string
}

// AuthRequest は認証リクエストのボディを表す構造体です。
type AuthRequest struct {
	Token      string `json:"token"`
	PlayerName string `json:"playerName"`
}
