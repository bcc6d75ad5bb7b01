package ceelo

import (
	"context"
	"errors"
	"net/http"

	"ceeloserver/ceelo/actions"
	"ceeloserver/ceelo/broadcast"
	"ceeloserver/ceelo/connection"
	"ceeloserver/ceelo/database"
	"ceeloserver/engine"
	"ceeloserver/models"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
)

// WebSocket接続へのアップグレードを行う関数
func HandleConnections(ctx context.Context, w http.ResponseWriter, r *http.Request, db *gorm.DB, rdb *redis.Client, registry *engine.Registry, hub *broadcast.Hub, logger *zap.Logger, upgrader websocket.Upgrader) {
	// ユーザーコンテキストの取得
	clientContext, err := connection.FetchClientContext(r, db, logger)
	if err != nil {
		logger.Error("Error fetching client context", zap.Error(err))
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	// セッションIDの検証と復元（再接続時はルームコードを引き継ぐ）
	sessionID := r.Header.Get("SessionID") // クライアントが送るセッションID
	if sessionID == "" {
		sessionID = r.URL.Query().Get("sessionID")
	}
	if sessionID != "" {
		restored := database.ValidateSessionID(ctx, rdb, sessionID, logger)
		if restored == nil {
			// セッションIDが無効または期限切れの場合
			http.Error(w, "Invalid or expired session ID", http.StatusUnauthorized)
			return
		}
		clientContext.UserID = restored.UserID
		clientContext.Name = restored.Name
		if clientContext.RoomCode == "" {
			clientContext.RoomCode = restored.RoomCode
		}
		// 旧セッションの削除
		rdb.Del(ctx, "session:"+sessionID)
	}

	if clientContext.RoomCode == "" {
		http.Error(w, "Room code is required", http.StatusBadRequest)
		return
	}

	// ルームコードで検索し、存在しなければ常設ルームとして作成
	room, err := registry.FindOrCreate(clientContext.RoomCode)
	if err != nil {
		http.Error(w, "Invalid room code", http.StatusBadRequest)
		return
	}

	// WebSocket接続へのアップグレードと確立
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// WebSocket接続のアップグレードに失敗
		logger.Error("Error upgrading WebSocket", zap.Error(err))
		return
	}

	client := &models.Client{
		Conn:     conn,
		UserID:   clientContext.UserID,
		RoomCode: room.Code,
		Name:     clientContext.Name,
	}

	// ルームへの着席。進行中のラウンドへの途中参加はここで弾かれる
	_, events, err := room.Join(ctx, client.UserID, client.Name)
	if err != nil {
		reason := "Failed to join room"
		switch {
		case errors.Is(err, engine.ErrMatchInProgress):
			reason = "A round is in progress, try again later"
		case errors.Is(err, engine.ErrAccountRequired):
			reason = "This room requires a registered account"
		}
		logger.Info("Join rejected",
			zap.Uint("UserID", client.UserID),
			zap.String("RoomCode", room.Code),
			zap.Error(err),
		)
		conn.WriteJSON(map[string]string{"type": "joinRejected", "error": reason})
		conn.Close()
		return
	}

	// クライアントリストに新規クライアントを追加
	hub.Add(client)

	// WebSocketのCloseHandlerを設定
	client.Conn.SetCloseHandler(func(code int, text string) error {
		// Closeイベントが発生した時の処理
		logger.Info("WebSocket closed", zap.Int("code", code), zap.String("reason", text))
		return nil
	})

	// 入室をルーム全体にブロードキャスト
	hub.Broadcast(room.Code, events)

	// クライアントごとにメッセージ読み取りゴルーチンを起動。
	// リクエストのコンテキストはハンドラ終了時に取り消されるため、
	// 接続の寿命に合わせた独立のコンテキストを渡す
	go actions.HandleClient(context.Background(), client, hub, registry, logger)

	// Ping/Pongを管理するゴルーチンを起動
	go connection.MaintainWebSocketConnection(client, logger)

	// Generate and store session ID, then send it back to the client
	err = database.GenerateAndStoreSessionID(ctx, client, rdb, logger)
	if err != nil {
		logger.Error("Failed to generate or store session ID", zap.Error(err))
	}
}
