package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ターン進行とタイムアウトの管理。タイマーは部屋が所有するキャンセル可能な
// 遅延タスクで、フェーズ遷移のたびに必ず解除または再設定される。古い
// コールバックは世代番号の不一致で無効化されるため、新しいターンの開始と
// 旧タイマーの発火が競合しても再利用されたルーム状態に触れることはない。

func (r *Room) beginResolvingLocked() []Event {
	r.phase = PhaseResolving
	r.turnIndex = 0
	return r.startTurnLocked()
}

// startTurnLocked は現在のプレイヤーに手番を通知し、制限時間のタイマーを張る
func (r *Room) startTurnLocked() []Event {
	if len(r.players) == 0 {
		return nil
	}
	if r.turnIndex >= len(r.players) {
		r.turnIndex = 0
	}
	current := r.players[r.turnIndex]
	r.armTimerLocked()
	return []Event{evTurnStarted(current.Name, int(r.turnTimeout / time.Second))}
}

func (r *Room) armTimerLocked() {
	r.cancelTimerLocked()
	gen := r.timerGen
	r.timer = time.AfterFunc(r.turnTimeout, func() {
		r.handleTurnTimeout(gen)
	})
}

func (r *Room) cancelTimerLocked() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	// Stop だけでは既に走り出したコールバックを止められないので世代を進める
	r.timerGen++
}

// RollDice は手番のプレイヤーの振りを処理する。手番以外や未知の送信者からの
// 要求は ErrOutOfTurn で返り、状態は一切変化しない（トランスポート側で黙殺）。
func (r *Room) RollDice(ctx context.Context, playerID uint) ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touchLocked()

	if r.phase != PhaseResolving || len(r.players) == 0 {
		return nil, ErrOutOfTurn
	}
	current := r.players[r.turnIndex]
	if current.ID != playerID {
		return nil, ErrOutOfTurn
	}
	if _, done := r.rolls[playerID]; done {
		// タイムアウトでスキップ済みの遅れた振りは二重処理しない
		return nil, ErrOutOfTurn
	}

	r.cancelTimerLocked()

	var events []Event
	result := RollValidTriple(r.randGen, func(invalid RollResult) {
		events = append(events, evRerolling(current.Name, invalid))
	})
	return append(events, r.recordRollLocked(ctx, current, result)...), nil
}

// recordRollLocked は有効な出目を記録し、即清算・手番送り・ラウンド清算の
// いずれかに分岐する
func (r *Room) recordRollLocked(ctx context.Context, current *Player, result RollResult) []Event {
	r.rolls[current.ID] = RollRecord{Dice: result.Dice, Label: result.Label, Point: result.Point}
	r.rollOrder = append(r.rollOrder, current.ID)
	events := []Event{evDiceRolled(current.Name, result)}

	r.logger.Info("Dice rolled",
		zap.String("roomCode", r.Code),
		zap.String("player", current.Name),
		zap.String("result", result.Label),
	)

	switch result.Point {
	case PointInstantWin:
		// 4-5-6は他のプレイヤーの手番を待たずに即清算
		events = append(events, r.settleRoundLocked(ctx, current,
			fmt.Sprintf("%s rolled 4-5-6 and wins %d coins instantly!", current.Name, r.pot))...)
	case PointInstantLoss:
		winner := r.instantLossWinnerLocked(current)
		events = append(events, r.settleRoundLocked(ctx, winner,
			fmt.Sprintf("%s rolled 1-2-3! %s wins %d coins by default!", current.Name, winner.Name, r.pot))...)
	default:
		events = append(events, r.advanceTurnLocked(ctx)...)
	}
	return events
}

// advanceTurnLocked は手番を次に進めるか、全員の出目が揃っていれば清算する
func (r *Room) advanceTurnLocked(ctx context.Context) []Event {
	r.turnIndex = (r.turnIndex + 1) % len(r.players)
	if len(r.rolls) == len(r.players) {
		return r.settleByPointsLocked(ctx)
	}
	return r.startTurnLocked()
}

// handleTurnTimeout は制限時間内に振らなかったプレイヤーを強制スキップする。
// 世代番号が一致しない場合は既に無効化された古いタイマーなので何もしない。
func (r *Room) handleTurnTimeout(gen uint64) {
	r.mu.Lock()
	if gen != r.timerGen || r.phase != PhaseResolving || len(r.players) == 0 {
		r.mu.Unlock()
		return
	}
	r.timer = nil
	r.timerGen++

	current := r.players[r.turnIndex]
	r.rolls[current.ID] = RollRecord{Dice: [3]int{0, 0, 0}, Label: "Skipped", Point: 0}
	r.rollOrder = append(r.rollOrder, current.ID)

	r.logger.Info("Turn skipped on timeout",
		zap.String("roomCode", r.Code),
		zap.String("player", current.Name),
	)

	events := []Event{evTurnSkipped(current.Name)}
	events = append(events, r.advanceTurnLocked(context.Background())...)

	code := r.Code
	notify := r.registry.notifier()
	r.mu.Unlock()

	if notify != nil {
		notify(code, events)
	}
}
