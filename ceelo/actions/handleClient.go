package actions

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"ceeloserver/ceelo/broadcast"
	"ceeloserver/engine"
	"ceeloserver/models"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// クライアントごとにメッセージ読み取りするゴルーチン
func HandleClient(ctx context.Context, client *models.Client, hub *broadcast.Hub, registry *engine.Registry, logger *zap.Logger) {
	defer func() {
		client.Conn.Close() // クライアントの接続を閉じる
		hub.Remove(client)  // クライアントリストからこのクライアントを削除

		// 切断したプレイヤーをルームから退出させ、残りのメンバーに通知
		room, err := registry.Find(client.RoomCode)
		if err != nil {
			return
		}
		events, err := room.Leave(ctx, client.UserID)
		if err != nil {
			return
		}
		hub.Broadcast(client.RoomCode, events)
	}()

	for {
		_, message, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		// 受信したメッセージをJSON形式でデコード
		var msg map[string]interface{}
		if err := json.Unmarshal(message, &msg); err != nil {
			logger.Error("Error decoding message", zap.Error(err))
			continue
		}

		room, err := registry.Find(client.RoomCode)
		if err != nil {
			// ルームが見つからないエラー処理
			hub.SendError(client, "Room not found")
			continue
		}

		msgType, _ := msg["type"].(string)

		// メッセージタイプに基づいて適切なアクションを実行
		switch msgType {
		case "placeBet":
			handlePlaceBet(ctx, client, msg, room, hub, logger)
		case "rollDice":
			handleRollDice(ctx, client, room, hub, logger)
		case "voteRematch":
			handleVoteRematch(client, room, hub, logger)
		case "requestPlayers":
			hub.SendToClient(client, room.RequestPlayers())
		case "chatMessage":
			handleChatMessage(client, msg, hub, logger)
		case "leaveRoom":
			return // deferでLeaveが呼ばれる
		default:
			logger.Info("Received unknown message type", zap.Any("message", msg))
		}
	}
}

func handlePlaceBet(ctx context.Context, client *models.Client, msg map[string]interface{}, room *engine.Room, hub *broadcast.Hub, logger *zap.Logger) {
	amountFloat, ok := msg["amount"].(float64)
	if !ok {
		hub.SendError(client, "Invalid bet amount")
		logger.Error("Invalid bet amount - type assertion failed", zap.Any("amount", msg["amount"]))
		return
	}
	amount := int(amountFloat)

	events, err := room.PlaceBet(ctx, client.UserID, amount)
	if err != nil {
		// 却下された賭けは本人にのみ通知し、ルームの状態は変えない
		rejection := map[string]interface{}{"error": err.Error()}
		var mismatch *engine.StakeMismatchError
		if errors.As(err, &mismatch) {
			rejection["requiredStake"] = mismatch.Required
		}
		hub.SendToClient(client, []engine.Event{{Type: "betRejected", Data: rejection}})
		logger.Info("Bet rejected",
			zap.Uint("UserID", client.UserID),
			zap.Int("amount", amount),
			zap.Error(err),
		)
		return
	}
	hub.Broadcast(client.RoomCode, events)
}

func handleRollDice(ctx context.Context, client *models.Client, room *engine.Room, hub *broadcast.Hub, logger *zap.Logger) {
	events, err := room.RollDice(ctx, client.UserID)
	if err != nil {
		// 手番外のロールは無視する（結果の誤配信を防ぐ）
		if errors.Is(err, engine.ErrOutOfTurn) {
			logger.Info("Out-of-turn roll ignored", zap.Uint("UserID", client.UserID))
			return
		}
		hub.SendError(client, err.Error())
		return
	}
	hub.Broadcast(client.RoomCode, events)
}

func handleVoteRematch(client *models.Client, room *engine.Room, hub *broadcast.Hub, logger *zap.Logger) {
	events, err := room.VoteRematch(client.UserID)
	if err != nil {
		hub.SendError(client, err.Error())
		return
	}
	logger.Info("Rematch vote received", zap.Uint("UserID", client.UserID))
	hub.Broadcast(client.RoomCode, events)
}

// チャットメッセージを処理する関数
func handleChatMessage(client *models.Client, msg map[string]interface{}, hub *broadcast.Hub, logger *zap.Logger) {
	chatMessage, ok := msg["message"].(string)
	if !ok {
		hub.SendError(client, "Invalid chat message")
		return
	}

	// 現在のタイムスタンプを取得
	timestamp := time.Now().Format(time.RFC3339)

	logger.Info("Received chat message",
		zap.String("message", chatMessage),
		zap.Uint("from", client.UserID),
		zap.String("timestamp", timestamp),
	)

	// ゲームルーム内の全クライアントにメッセージをブロードキャストする
	hub.Broadcast(client.RoomCode, []engine.Event{{
		Type: "chatMessage",
		Data: map[string]interface{}{
			"message":   chatMessage,
			"from":      client.Name,
			"timestamp": timestamp,
		},
	}})
}
