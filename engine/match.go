package engine

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Phase はルームの進行状態
type Phase string

const (
	PhaseLobby        Phase = "lobby"        // 待機中（プレイヤー0〜1人、または賭け開始前）
	PhaseBetting      Phase = "betting"      // 賭け金を集めている
	PhaseResolving    Phase = "resolving"    // 順番にサイコロを振っている
	PhaseRoundSettled Phase = "roundSettled" // ポット分配済み
	PhaseMatchOver    Phase = "matchOver"    // マッチ終了（終端状態）
)

const (
	minPlayers         = 2
	defaultStartCoins  = 100
	defaultTurnTimeout = 30 * time.Second
)

// Player はルーム内の一人のプレイヤー。Coins はメモリ上の正となる残高で、
// 変動のたびに BalanceStore へ同期される。
type Player struct {
	ID    uint
	Name  string
	Coins int
}

// RollRecord は1ラウンドにつきプレイヤー1人あたり1件。
// スキップされたプレイヤーには番兵値（出目0,0,0・点数0）を記録する。
type RollRecord struct {
	Dice  [3]int
	Label string
	Point int
}

// MatchConfig はルームのバリエーションを一本化する設定。
// MaxRounds と WinsNeeded が共に0の場合は常設ルームとして扱い、
// ラウンドを無期限に繰り返す。
type MatchConfig struct {
	MaxRounds      int  `json:"maxRounds"`
	WinsNeeded     int  `json:"winsNeeded"`
	RequireAccount bool `json:"requireAccount"`
}

func (c MatchConfig) persistent() bool {
	return c.MaxRounds == 0 && c.WinsNeeded == 0
}

// BalanceStore は外部の永続化層が実装する残高の読み書き契約。
type BalanceStore interface {
	Balance(ctx context.Context, playerID uint) (coins int, found bool, err error)
	SaveBalance(ctx context.Context, playerID uint, coins int) error
}

// Room は1ルーム分の状態機械。全フィールドは mu の保護下にあり、
// ルームごとの変異は常に一度に一つしか進行しない。
type Room struct {
	Code   string
	Config MatchConfig

	mu            sync.Mutex
	phase         Phase
	players       []*Player
	turnIndex     int
	bets          map[uint]int
	requiredStake int // 0 は未確定（bets が空の時のみ）
	pot           int
	rolls         map[uint]RollRecord
	rollOrder     []uint // 同点の決着は先に振ったプレイヤー優先
	roundWins     map[uint]int
	roundNumber   int
	rematchVotes  map[uint]bool
	lastActivity  time.Time

	turnTimeout time.Duration
	timer       *time.Timer
	timerGen    uint64 // 古いタイムアウトコールバックの無効化に使う世代番号

	registry *Registry
	store    BalanceStore
	logger   *zap.Logger
	randGen  *rand.Rand
}

func (r *Room) touchLocked() {
	r.lastActivity = time.Now()
}

func (r *Room) findPlayerLocked(playerID uint) (*Player, int) {
	for i, p := range r.players {
		if p.ID == playerID {
			return p, i
		}
	}
	return nil, -1
}

// HasPlayer はトランスポート側の所属チェック用
func (r *Room) HasPlayer(playerID uint) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, _ := r.findPlayerLocked(playerID)
	return p != nil
}

func (r *Room) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

func (r *Room) Pot() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pot
}

func (r *Room) IdleFor() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Since(r.lastActivity)
}

// Join はプレイヤーをルームに着席させる。2人目の入室でロビーから賭けフェーズへ
// 自動的に移行する。ラウンド進行中の途中参加は受け付けない。
func (r *Room) Join(ctx context.Context, playerID uint, name string) (*Player, []Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touchLocked()

	// 再入室（切断からの復帰）は着席状態をそのまま返す
	if p, _ := r.findPlayerLocked(playerID); p != nil {
		return p, []Event{r.evPlayersUpdated(), r.evRoomStatus()}, nil
	}

	if r.phase == PhaseResolving || r.phase == PhaseRoundSettled {
		return nil, nil, ErrMatchInProgress
	}

	coins, found, err := r.store.Balance(ctx, playerID)
	if err != nil {
		return nil, nil, err
	}
	if !found {
		if r.Config.RequireAccount {
			return nil, nil, ErrAccountRequired
		}
		coins = defaultStartCoins
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = fmt.Sprintf("Player%d", len(r.players)+1)
	}
	// 名前はルーム内で一意にする
	for _, p := range r.players {
		if p.Name == name {
			name = fmt.Sprintf("%s_%d", name, len(r.players)+1)
			break
		}
	}

	player := &Player{ID: playerID, Name: name, Coins: coins}
	r.players = append(r.players, player)
	if !found {
		r.persistBalanceLocked(ctx, player)
	}

	events := []Event{r.evPlayersUpdated()}
	if r.phase == PhaseLobby && len(r.players) >= minPlayers {
		r.phase = PhaseBetting
	}
	events = append(events, r.evRoomStatus())

	r.logger.Info("Player joined room",
		zap.String("roomCode", r.Code),
		zap.Uint("playerID", playerID),
		zap.String("name", player.Name),
	)
	return player, events, nil
}

func (r *Room) persistBalanceLocked(ctx context.Context, p *Player) {
	if err := r.store.SaveBalance(ctx, p.ID, p.Coins); err != nil {
		r.logger.Error("Failed to persist balance",
			zap.Uint("playerID", p.ID),
			zap.Int("coins", p.Coins),
			zap.Error(err),
		)
	}
}

// instantLossWinnerLocked は1-2-3を振ったプレイヤー以外から勝者を選ぶ。
// 席順で最初の、まだ振っていないか即負けでないプレイヤー。
func (r *Room) instantLossWinnerLocked(loser *Player) *Player {
	for _, p := range r.players {
		rec, rolled := r.rolls[p.ID]
		if !rolled || rec.Point != PointInstantLoss {
			return p
		}
	}
	return r.players[0]
}

// settleByPointsLocked は全員の出目が揃った時点での勝敗判定。
// 最初の候補のみ無条件で採用し、以降は厳密な大小比較で更新するため、
// 同点の場合は先に振ったプレイヤーが勝つ。
func (r *Room) settleByPointsLocked(ctx context.Context) []Event {
	var winner *Player
	best := 0
	for _, id := range r.rollOrder {
		rec, ok := r.rolls[id]
		if !ok {
			continue
		}
		p, _ := r.findPlayerLocked(id)
		if p == nil {
			continue
		}
		if winner == nil || rec.Point > best {
			winner = p
			best = rec.Point
		}
	}
	if winner == nil {
		// 有効な出目が一つも残っていない。ポットを返金してラウンドをやり直す
		events := []Event{evMessage("No valid rolls! Refunding all bets...")}
		for _, p := range r.players {
			r.refundLocked(ctx, p)
		}
		events = append(events, r.evPlayersUpdated())
		events = append(events, r.resetRoundLocked()...)
		return events
	}

	var message string
	if best == 0 {
		message = fmt.Sprintf("No points scored! %s wins %d coins by default!", winner.Name, r.pot)
	} else {
		message = fmt.Sprintf("%s wins with %d points! Pot: %d coins.", winner.Name, best, r.pot)
	}
	return r.settleRoundLocked(ctx, winner, message)
}

// settleRoundLocked はポット全額を勝者に渡し、ラウンドまたはマッチを締める。
func (r *Room) settleRoundLocked(ctx context.Context, winner *Player, message string) []Event {
	r.cancelTimerLocked()

	pot := r.pot
	winner.Coins += pot
	r.pot = 0
	r.bets = make(map[uint]int)
	r.requiredStake = 0
	r.persistBalanceLocked(ctx, winner)

	r.roundWins[winner.ID]++
	r.phase = PhaseRoundSettled
	point := r.rolls[winner.ID].Point

	r.logger.Info("Round settled",
		zap.String("roomCode", r.Code),
		zap.String("winner", winner.Name),
		zap.Int("pot", pot),
	)

	events := []Event{
		evRoundSettled(winner.Name, pot, point, r.roundNumber, message),
		r.evPlayersUpdated(),
	}

	if r.matchDecidedLocked(winner) {
		r.phase = PhaseMatchOver
		leader := r.matchLeaderLocked()
		events = append(events, evMatchOver(leader.Name, pot, r.standingsLocked(),
			fmt.Sprintf("Match over! %s takes the match.", leader.Name)))
		return events
	}

	events = append(events, r.resetRoundLocked()...)
	return events
}

func (r *Room) matchDecidedLocked(winner *Player) bool {
	if r.Config.WinsNeeded > 0 && r.roundWins[winner.ID] >= r.Config.WinsNeeded {
		return true
	}
	if r.Config.MaxRounds > 0 && r.roundNumber >= r.Config.MaxRounds {
		return true
	}
	return false
}

// matchLeaderLocked はラウンド勝利数が最多のプレイヤー（同数なら席順が先）
func (r *Room) matchLeaderLocked() *Player {
	var leader *Player
	bestWins := -1
	for _, p := range r.players {
		if r.roundWins[p.ID] > bestWins {
			leader = p
			bestWins = r.roundWins[p.ID]
		}
	}
	return leader
}

func (r *Room) standingsLocked() []map[string]interface{} {
	standings := make([]map[string]interface{}, 0, len(r.players))
	for _, p := range r.players {
		standings = append(standings, map[string]interface{}{
			"name":      p.Name,
			"coins":     p.Coins,
			"roundWins": r.roundWins[p.ID],
		})
	}
	sort.SliceStable(standings, func(i, j int) bool {
		return standings[i]["roundWins"].(int) > standings[j]["roundWins"].(int)
	})
	return standings
}

// resetRoundLocked はラウンド限りの状態を初期化して次の賭けフェーズに入る。
// どの遷移経路でもタイマーはここで必ず無効化される。
func (r *Room) resetRoundLocked() []Event {
	r.cancelTimerLocked()
	r.roundNumber++
	r.bets = make(map[uint]int)
	r.requiredStake = 0
	r.pot = 0
	r.rolls = make(map[uint]RollRecord)
	r.rollOrder = nil
	r.turnIndex = 0
	r.rematchVotes = make(map[uint]bool)

	if len(r.players) >= minPlayers {
		r.phase = PhaseBetting
	} else {
		r.phase = PhaseLobby
	}
	return []Event{evRoomReset(), r.evRoomStatus()}
}

// VoteRematch はマッチ終了後の再戦投票。残っている全員が投票した時点で
// 勝敗カウントを初期化し、新しいマッチの賭けフェーズに入る。
func (r *Room) VoteRematch(playerID uint) ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touchLocked()

	p, _ := r.findPlayerLocked(playerID)
	if p == nil {
		return nil, ErrNotAMember
	}
	if r.phase != PhaseMatchOver {
		// 終了前の投票は無害なレースなので黙って無視する
		return nil, nil
	}

	r.rematchVotes[playerID] = true
	events := []Event{evMessage(fmt.Sprintf("%s wants a rematch! (%d/%d)",
		p.Name, len(r.rematchVotes), len(r.players)))}

	if len(r.players) >= minPlayers && len(r.rematchVotes) == len(r.players) {
		r.roundWins = make(map[uint]int)
		r.roundNumber = 0 // resetRoundLocked がインクリメントして第1ラウンドになる
		events = append(events, evMessage("All players voted for a rematch! Starting new round..."))
		events = append(events, r.resetRoundLocked()...)
		events = append(events, r.evPlayersUpdated())
	}
	return events, nil
}

// RoomInfo はHTTPのルーム情報画面向けスナップショット
type RoomInfo struct {
	Code          string                   `json:"roomCode"`
	Phase         string                   `json:"phase"`
	Players       []map[string]interface{} `json:"players"`
	RequiredStake int                      `json:"requiredStake"`
	Pot           int                      `json:"pot"`
	RoundNumber   int                      `json:"roundNumber"`
	MaxBet        int                      `json:"maxBet"`
	CanPlay       bool                     `json:"canPlay"`
}

func (r *Room) Snapshot() RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RoomInfo{
		Code:          r.Code,
		Phase:         string(r.phase),
		Players:       r.playersInfo(),
		RequiredStake: r.requiredStake,
		Pot:           r.pot,
		RoundNumber:   r.roundNumber,
		MaxBet:        r.maxBet(),
		CanPlay:       len(r.players) >= minPlayers,
	}
}

// RequestPlayers は現在のプレイヤー一覧の再送要求に応える
func (r *Room) RequestPlayers() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return []Event{r.evPlayersUpdated(), r.evRoomStatus()}
}
