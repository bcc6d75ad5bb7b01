package main

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"ceeloserver/ceelo"           //Cee-loのWebSocketトランスポート
	"ceeloserver/ceelo/broadcast" //ルーム単位のイベント配信
	"ceeloserver/database"        //PostgreSQLとRedisの初期化
	"ceeloserver/engine"          //ルームとマッチの状態機械
	"ceeloserver/screens"         //認証とルーム作成に関連するHTTPリクエストの処理
	"ceeloserver/utils"           //ロガーの初期化とCronジョブ(放置ルームと休眠ユーザーの定期クリーンナップ)

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"gorm.io/gorm"
)

func main() {
	var logger *zap.Logger
	var err error
	logger, err = utils.InitLogger() // ロガーの初期化
	if err != nil {
		panic(err) // 失敗した場合はプログラム停止
	}
	defer logger.Sync() // ロガーのクリーンアップ

	// Websocket接続で用いる変数を初期化
	hub := broadcast.NewHub(logger)
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	// 非同期でPostgreSQLとRedisの初期化
	var db *gorm.DB
	var rdb *redis.Client
	done := make(chan bool)

	go func() {
		config, err := database.LoadConfig("config.json")
		if err != nil {
			logger.Fatal("設定ファイルの読み込みに失敗しました", zap.Error(err))
		}
		db, err = database.InitPostgreSQL(config, logger)
		if err != nil {
			logger.Fatal("PostgreSQLの初期化に失敗しました", zap.Error(err))
		}
		done <- true
	}()

	go func() {
		rdb, err = database.InitRedis(logger)
		if err != nil {
			logger.Fatal("Failed to initialize Redis", zap.Error(err))
		}
		done <- true
	}()

	// 2つの初期化が完了するのを待つ
	<-done
	<-done

	// テーブルのマイグレーション
	if err := database.Migrate(db, logger); err != nil {
		logger.Fatal("データベースのマイグレーションに失敗しました", zap.Error(err))
	}

	// ルームレジストリの初期化。残高はPostgreSQLに永続化し、
	// タイマー起因のイベントはハブ経由で配信する
	store := database.NewUserBalances(db, logger)
	registry := engine.NewRegistry(store, logger)
	registry.SetNotifier(hub.Broadcast)

	// クーロンスケジューラのセットアップと呼び出し
	go utils.CronCleaner(registry, db, logger)

	router := gin.Default()
	//リクエストロガーを起動
	router.Use(gin.Recovery(), utils.RequestLogger(logger))

	//CORS（Cross-Origin Resource Sharing）ポリシーを設定
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://192.168.1.1:8080"}, //ここにデプロイサーバーのIPアドレスを設定
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	//各HTTPリクエストのルーティング
	router.POST("/auth", func(c *gin.Context) {
		screens.AuthHandler(c, db, logger)
	})
	router.POST("/room/create", func(c *gin.Context) {
		screens.RoomCreate(c, registry, logger)
	})
	router.GET("/room/info", func(c *gin.Context) {
		screens.RoomInfo(c, registry, logger)
	})
	router.GET("/ws", func(c *gin.Context) {
		ceelo.HandleConnections(c.Request.Context(), c.Writer, c.Request, db, rdb, registry, hub, logger, upgrader)
	})

	// テスト時はHTTPサーバーとして運用。デフォルトポートは ":8080"
	router.Run()

	// // 本番環境ではコメントアウトを解除し、HTTPSサーバーとして運用
	// err = router.RunTLS(":443", "path/to/cert.pem", "path/to/key.pem")
	// if err != nil {
	// 	logger.Fatal("Failed to run HTTPS server: ", zap.Error(err))
	// }
}
