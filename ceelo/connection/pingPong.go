package connection

import (
	"time"

	"ceeloserver/models"

	"go.uber.org/zap"

	"github.com/gorilla/websocket"
)

// MaintainWebSocketConnection はクライアントのWebSocket接続を維持し、Ping/Pongメッセージで接続をチェックします。
// 切断後の後片付け（ルーム退出とブロードキャスト）は読み取りゴルーチン側に任せる。
func MaintainWebSocketConnection(c *models.Client, logger *zap.Logger) {
	// Pongハンドラの設定: Pongメッセージを受信したら読み取りデッドラインを更新
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second)) // 60秒の読み取りデッドライン
		return nil
	})
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))

	// Pingの送信間隔を設定
	pingPeriod := 10 * time.Second // 10秒ごとにPingを送信
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for range ticker.C {
		// Pingを送信
		if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
			logger.Error("Error sending ping", zap.Error(err))
			c.Conn.Close() // 読み取りゴルーチンにエラーを伝播させる
			return
		}
	}
}
