package engine

import (
	"context"

	"go.uber.org/zap"
)

// 賭け金の台帳。ルーム不変条件: pot == bets の合計（清算遷移の最中を除く）。

// maxBet は現在のプレイヤー全員が合わせられる賭け金の上限。
// 複数ラウンド戦では残りラウンド数で割り、途中で破産しないようにする。
// あくまで目安だが、受理時にも同じ上限を適用する。
func (r *Room) maxBet() int {
	if len(r.players) == 0 {
		return 0
	}
	min := -1
	for _, p := range r.players {
		// 賭け済みのプレイヤーは控除前の額で比較する
		available := p.Coins + r.bets[p.ID]
		if min < 0 || available < min {
			min = available
		}
	}
	if r.Config.MaxRounds > 1 {
		remaining := r.Config.MaxRounds - r.roundNumber + 1
		if remaining > 1 {
			min /= remaining
		}
	}
	return min
}

// PlaceBet は賭けを受理または拒否する。最初の賭けが基準額を確定し、
// 基準額より高い賭けは基準額を引き上げる（既存の低い賭けは返金して
// 同額での再提示を求める）。基準額より低い賭けは StakeMismatchError で
// 拒否され、プレイヤーは合わせるか退室するかを選ぶ。台帳が勝手に
// 金額を調整することはない。
func (r *Room) PlaceBet(ctx context.Context, playerID uint, amount int) ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touchLocked()

	player, _ := r.findPlayerLocked(playerID)
	if player == nil {
		return nil, ErrNotAMember
	}
	if r.phase != PhaseBetting {
		return nil, ErrInvalidBet
	}
	if len(r.players) < minPlayers {
		return nil, ErrInsufficientPlayers
	}
	if _, already := r.bets[playerID]; already {
		return nil, ErrInvalidBet
	}
	if amount <= 0 || amount > player.Coins || amount > r.maxBet() {
		return nil, ErrInvalidBet
	}
	if r.requiredStake != 0 && amount < r.requiredStake {
		return nil, &StakeMismatchError{Required: r.requiredStake}
	}

	var events []Event
	if amount != r.requiredStake {
		// 基準額の確定または引き上げ。既存の異なる賭けは返金する
		for _, p := range r.players {
			if staked, ok := r.bets[p.ID]; ok && staked != amount {
				r.refundLocked(ctx, p)
				events = append(events, evMustMatch(p.Name, amount))
			}
		}
		r.requiredStake = amount
	}

	player.Coins -= amount
	r.bets[playerID] = amount
	r.pot += amount
	r.persistBalanceLocked(ctx, player)

	r.logger.Info("Bet accepted",
		zap.String("roomCode", r.Code),
		zap.String("player", player.Name),
		zap.Int("amount", amount),
		zap.Int("pot", r.pot),
	)

	events = append(events,
		evBetAccepted(player.Name, amount, r.requiredStake, r.pot),
		r.evPlayersUpdated(),
	)

	if r.bettingCompleteLocked() {
		events = append(events, r.beginResolvingLocked()...)
	}
	return events, nil
}

// bettingCompleteLocked: 現在の全プレイヤーが基準額と同額の賭けを済ませた
func (r *Room) bettingCompleteLocked() bool {
	if r.requiredStake == 0 || len(r.bets) != len(r.players) {
		return false
	}
	for _, p := range r.players {
		if r.bets[p.ID] != r.requiredStake {
			return false
		}
	}
	return true
}

// refundLocked はプレイヤーの現在の賭け金を残高に戻し、台帳から除去する。
// 最後の賭けが消えたら基準額も未確定に戻す。
func (r *Room) refundLocked(ctx context.Context, p *Player) {
	staked, ok := r.bets[p.ID]
	if !ok {
		return
	}
	p.Coins += staked
	r.pot -= staked
	delete(r.bets, p.ID)
	if len(r.bets) == 0 {
		r.requiredStake = 0
	}
	r.persistBalanceLocked(ctx, p)
	r.logger.Info("Bet refunded",
		zap.String("roomCode", r.Code),
		zap.String("player", p.Name),
		zap.Int("amount", staked),
	)
}
