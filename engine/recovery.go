package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// 退室（自発的な退室とトランスポート切断の両方）からの復旧処理。

// Leave はプレイヤーをルームから取り除く。保留中の賭け金は返金し、
// 残りの賭けから基準額を引き直すことで、形成途中の賭けラウンドを
// 全リセットせずに生かしたまま続行できる。
func (r *Room) Leave(ctx context.Context, playerID uint) ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touchLocked()

	player, idx := r.findPlayerLocked(playerID)
	if player == nil {
		return nil, ErrNotAMember
	}

	wasCurrent := r.phase == PhaseResolving && idx == r.turnIndex

	events := []Event{evMessage(player.Name + " has left the table.")}

	r.refundLocked(ctx, player)
	r.players = append(r.players[:idx], r.players[idx+1:]...)
	delete(r.rolls, playerID)
	for i, id := range r.rollOrder {
		if id == playerID {
			r.rollOrder = append(r.rollOrder[:i], r.rollOrder[i+1:]...)
			break
		}
	}
	delete(r.roundWins, playerID)
	delete(r.rematchVotes, playerID)

	// 空いた席の分だけ手番インデックスを詰める
	if idx < r.turnIndex {
		r.turnIndex--
	}
	if len(r.players) > 0 && r.turnIndex >= len(r.players) {
		r.turnIndex = 0
	}

	// 残っている賭けの最大値を新しい基準額とする
	r.requiredStake = 0
	for _, staked := range r.bets {
		if staked > r.requiredStake {
			r.requiredStake = staked
		}
	}

	r.logger.Info("Player left room",
		zap.String("roomCode", r.Code),
		zap.Uint("playerID", playerID),
		zap.Int("remaining", len(r.players)),
	)

	if len(r.players) == 0 {
		r.cancelTimerLocked()
		r.registry.remove(r.Code)
		return events, nil
	}

	if len(r.players) < minPlayers {
		events = append(events, r.earlySettleLocked(ctx)...)
		return events, nil
	}

	events = append(events, r.evPlayersUpdated())

	switch r.phase {
	case PhaseResolving:
		if len(r.rolls) == len(r.players) {
			// 退室者の枠が空いたことで残り全員の出目が揃った
			events = append(events, r.settleByPointsLocked(ctx)...)
		} else if wasCurrent {
			// 手番のプレイヤーが消えたので古いタイマーを破棄して次の手番へ
			events = append(events, r.startTurnLocked()...)
		}
	case PhaseBetting:
		if r.bettingCompleteLocked() {
			events = append(events, r.beginResolvingLocked()...)
		}
	case PhaseMatchOver:
		// 残りの投票者だけで再戦が成立する場合がある
		if len(r.players) >= minPlayers && len(r.rematchVotes) == len(r.players) {
			r.roundWins = make(map[uint]int)
			r.roundNumber = 0
			events = append(events, evMessage("All players voted for a rematch! Starting new round..."))
			events = append(events, r.resetRoundLocked()...)
		}
	}
	return events, nil
}

// earlySettleLocked は2人を割ったルームの早期清算。残留者がラウンド勝利数の
// トップ（一人だけなら自明にトップ）ならポットを授与する。常設ルームは
// ロビーに戻して次の入室を待ち、マッチ用ルームは終了させて破棄する。
func (r *Room) earlySettleLocked(ctx context.Context) []Event {
	r.cancelTimerLocked()

	if r.phase == PhaseLobby {
		// 賭けの始まっていないロビーに清算するものはない
		return []Event{r.evPlayersUpdated(), r.evRoomStatus()}
	}

	survivor := r.players[0]
	var events []Event
	pot := r.pot
	if pot > 0 {
		survivor.Coins += pot
		r.pot = 0
		r.bets = make(map[uint]int)
		r.requiredStake = 0
		r.persistBalanceLocked(ctx, survivor)
		events = append(events, evMessage(
			fmt.Sprintf("%s wins %d coins by default!", survivor.Name, pot)))
	}

	r.logger.Info("Room settled early",
		zap.String("roomCode", r.Code),
		zap.String("survivor", survivor.Name),
		zap.Int("pot", pot),
	)

	if r.Config.persistent() {
		r.roundWins = make(map[uint]int)
		r.roundNumber = 0
		events = append(events, r.resetRoundLocked()...)
		events = append(events, r.evPlayersUpdated())
		return events
	}

	r.phase = PhaseMatchOver
	events = append(events, evMatchOver(survivor.Name, pot, r.standingsLocked(),
		fmt.Sprintf("Match over! %s takes the match.", survivor.Name)))
	r.registry.remove(r.Code)
	return events
}
