package broadcast

import (
	"encoding/json"
	"sync"

	"ceeloserver/engine"
	"ceeloserver/models"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Hub は接続中の全クライアントを保持し、ルーム単位の配信を行う。
// タイマー起因のイベントは別ゴルーチンから届くためミューテックスで保護する。
type Hub struct {
	mu      sync.Mutex
	clients map[*models.Client]bool
	logger  *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[*models.Client]bool),
		logger:  logger,
	}
}

// クライアントリストに新規クライアントを追加
func (h *Hub) Add(client *models.Client) {
	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()
	h.logger.Info("New client added",
		zap.Uint("UserID", client.UserID),
		zap.String("RoomCode", client.RoomCode),
	)
}

// クライアントリストから削除
func (h *Hub) Remove(client *models.Client) {
	h.mu.Lock()
	delete(h.clients, client)
	h.mu.Unlock()
	h.logger.Info("Client removed", zap.Uint("UserID", client.UserID))
}

// Broadcast はルーム内の全クライアントにエンジンのイベントを配信する。
// engine.Notifier として登録される。
func (h *Hub) Broadcast(roomCode string, events []engine.Event) {
	for _, event := range events {
		message := make(map[string]interface{}, len(event.Data)+1)
		message["type"] = event.Type
		for k, v := range event.Data {
			message[k] = v
		}
		messageJSON, err := json.Marshal(message)
		if err != nil {
			h.logger.Error("Failed to marshal event", zap.String("type", event.Type), zap.Error(err))
			continue
		}

		h.mu.Lock()
		for c := range h.clients {
			if c.RoomCode != roomCode {
				continue
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, messageJSON); err != nil {
				h.logger.Error("Failed to broadcast event",
					zap.Uint("to", c.UserID),
					zap.String("type", event.Type),
					zap.Error(err),
				)
			}
		}
		h.mu.Unlock()
	}
}

// SendToClient は単一クライアントにのみイベントを送信する。
func (h *Hub) SendToClient(client *models.Client, events []engine.Event) {
	for _, event := range events {
		message := make(map[string]interface{}, len(event.Data)+1)
		message["type"] = event.Type
		for k, v := range event.Data {
			message[k] = v
		}
		if err := client.Conn.WriteJSON(message); err != nil {
			h.logger.Error("Failed to send event to client",
				zap.Uint("to", client.UserID),
				zap.String("type", event.Type),
				zap.Error(err),
			)
		}
	}
}

// SendError はエラーメッセージを単一クライアントに送信するヘルパー関数
func (h *Hub) SendError(client *models.Client, errorMessage string) {
	errorResponse := map[string]string{"type": "error", "error": errorMessage}
	errorJSON, _ := json.Marshal(errorResponse)
	client.Conn.WriteMessage(websocket.TextMessage, errorJSON) // Ignoring error for simplicity
}
