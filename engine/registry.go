package engine

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// 紛らわしい文字（I, O, 0, 1）を除いたルームコード用アルファベット
const (
	roomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	roomCodeLength   = 6
)

// Registry はプロセス内のルーム一覧。テストから独立したレジストリを
// 構築できるよう、グローバル変数ではなく明示的に所有させる。
type Registry struct {
	mu      sync.Mutex
	rooms   map[string]*Room
	randGen *rand.Rand

	store       BalanceStore
	logger      *zap.Logger
	notify      Notifier
	turnTimeout time.Duration
}

func NewRegistry(store BalanceStore, logger *zap.Logger) *Registry {
	return &Registry{
		rooms:       make(map[string]*Room),
		randGen:     NewRandGenerator(),
		store:       store,
		logger:      logger,
		turnTimeout: defaultTurnTimeout,
	}
}

// SetNotifier はタイマー発火イベントの配送先を設定する（トランスポートが起動時に一度呼ぶ）
func (g *Registry) SetNotifier(fn Notifier) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.notify = fn
}

func (g *Registry) notifier() Notifier {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.notify
}

// SetTurnTimeout はテスト用に手番の制限時間を差し替える
func (g *Registry) SetTurnTimeout(d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.turnTimeout = d
}

func (g *Registry) newRoomLocked(code string, cfg MatchConfig) *Room {
	room := &Room{
		Code:         code,
		Config:       cfg,
		phase:        PhaseLobby,
		bets:         make(map[uint]int),
		rolls:        make(map[uint]RollRecord),
		roundWins:    make(map[uint]int),
		rematchVotes: make(map[uint]bool),
		roundNumber:  1,
		lastActivity: time.Now(),
		turnTimeout:  g.turnTimeout,
		registry:     g,
		store:        g.store,
		logger:       g.logger,
		randGen:      NewRandGenerator(),
	}
	g.rooms[code] = room
	return room
}

// Create は衝突しないコードを生成して初期状態のルームを登録する
func (g *Registry) Create(cfg MatchConfig) *Room {
	g.mu.Lock()
	defer g.mu.Unlock()
	var code string
	for {
		b := make([]byte, roomCodeLength)
		for i := range b {
			b[i] = roomCodeAlphabet[g.randGen.Intn(len(roomCodeAlphabet))]
		}
		code = string(b)
		if _, exists := g.rooms[code]; !exists {
			break
		}
	}
	room := g.newRoomLocked(code, cfg)
	g.logger.Info("Room created", zap.String("roomCode", code))
	return room
}

func (g *Registry) Find(code string) (*Room, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	room, ok := g.rooms[normalizeCode(code)]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// FindOrCreate はコード指定の入室用。存在しないコードなら常設ルームとして
// その場で作成する（最初の入室でルームが生まれる従来の挙動）。
func (g *Registry) FindOrCreate(code string) (*Room, error) {
	code = normalizeCode(code)
	if code == "" {
		return nil, ErrRoomNotFound
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if room, ok := g.rooms[code]; ok {
		return room, nil
	}
	room := g.newRoomLocked(code, MatchConfig{})
	g.logger.Info("Room created on first join", zap.String("roomCode", code))
	return room, nil
}

// remove はルーム自身の処理パス（全員退室・早期清算）から呼ばれる。
// ルームのロックを保持したまま呼ばれるため、ここではマップ操作しかしない。
func (g *Registry) remove(code string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.rooms, code)
	g.logger.Info("Room destroyed", zap.String("roomCode", code))
}

// Destroy は外部（クリーンナップジョブなど）からの破棄。マップから外して
// レジストリのロックを手放した後にルームのタイマーを無効化する。
func (g *Registry) Destroy(code string) {
	code = normalizeCode(code)
	g.mu.Lock()
	room, ok := g.rooms[code]
	delete(g.rooms, code)
	g.mu.Unlock()
	if !ok {
		return
	}
	room.mu.Lock()
	room.cancelTimerLocked()
	room.phase = PhaseMatchOver
	room.mu.Unlock()
	g.logger.Info("Room destroyed", zap.String("roomCode", code))
}

func (g *Registry) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rooms)
}

// Sweep は一定時間動きのないルームを破棄し、破棄した数を返す
func (g *Registry) Sweep(maxIdle time.Duration) int {
	g.mu.Lock()
	codes := make([]string, 0, len(g.rooms))
	for code := range g.rooms {
		codes = append(codes, code)
	}
	g.mu.Unlock()

	swept := 0
	for _, code := range codes {
		room, err := g.Find(code)
		if err != nil {
			continue
		}
		if room.IdleFor() > maxIdle {
			g.Destroy(code)
			swept++
		}
	}
	return swept
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
