package engine

import (
	"context"
	"testing"
)

// 賭けフェーズ中の退室は賭け金を返金し、残りの賭けから基準額を引き直す
func TestLeaveDuringBettingRefunds(t *testing.T) {
	ctx := context.Background()
	room, store := newBettingRoom(t, MatchConfig{}, 3)

	betAll(t, room, 10, 1, 2)
	if _, err := room.Leave(ctx, 2); err != nil {
		t.Fatal(err)
	}
	if got := store.saved(2); got != defaultStartCoins {
		t.Errorf("player 2 persisted balance = %d after refund, want %d", got, defaultStartCoins)
	}
	checkPotInvariant(t, room)

	// 残りはPlayer1の10だけなので基準額は10のまま
	snap := room.Snapshot()
	if snap.RequiredStake != 10 {
		t.Errorf("requiredStake = %d, want 10", snap.RequiredStake)
	}
	if snap.Pot != 10 {
		t.Errorf("pot = %d, want 10", snap.Pot)
	}
}

// 最後の賭けが消えたら基準額は未確定に戻る
func TestStakeResetsWhenNoBetsRemain(t *testing.T) {
	ctx := context.Background()
	room, _ := newBettingRoom(t, MatchConfig{}, 3)

	betAll(t, room, 10, 1)
	if _, err := room.Leave(ctx, 1); err != nil {
		t.Fatal(err)
	}
	snap := room.Snapshot()
	if snap.RequiredStake != 0 {
		t.Errorf("requiredStake = %d, want 0 with no bets", snap.RequiredStake)
	}
	checkPotInvariant(t, room)
}

// 退室者の枠が空いて残り全員の出目が揃ったら、残りの出目だけで清算する
func TestLeaveMidRoundVacatesRollSlot(t *testing.T) {
	ctx := context.Background()
	room, _ := newBettingRoom(t, MatchConfig{}, 3)
	betAll(t, room, 10, 1, 2, 3)

	rollExact(t, room, 1, [3]int{2, 2, 5}) // Player1: 5点
	rollExact(t, room, 2, [3]int{3, 3, 2}) // Player2: 2点

	// Player3が振る前にPlayer1が切断 → Player3の振りで清算
	if _, err := room.Leave(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if room.Phase() != PhaseResolving {
		t.Fatalf("phase = %s, want still %s", room.Phase(), PhaseResolving)
	}
	events := rollExact(t, room, 3, [3]int{4, 4, 3}) // Player3: 3点
	ev, ok := findEvent(events, "roundSettled")
	if !ok {
		t.Fatal("expected settlement once remaining players rolled")
	}
	// Player1の5点は席と共に消えたのでPlayer3の3点が最高
	if got := ev.Data["winnerName"].(string); got != "Player3" {
		t.Errorf("winner = %q, want Player3", got)
	}
	checkPotInvariant(t, room)
}

// 振り終えていたプレイヤーの退室で残り全員の出目が揃った場合は即清算
func TestLeaveTriggersSettlementWhenRollsComplete(t *testing.T) {
	ctx := context.Background()
	room, _ := newBettingRoom(t, MatchConfig{}, 3)
	betAll(t, room, 10, 1, 2, 3)

	rollExact(t, room, 1, [3]int{2, 2, 5})
	rollExact(t, room, 2, [3]int{3, 3, 2})

	// 未ロールのPlayer3が退室 → Player1とPlayer2の出目で即清算
	events, err := room.Leave(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	ev, ok := findEvent(events, "roundSettled")
	if !ok {
		t.Fatal("expected immediate settlement")
	}
	if got := ev.Data["winnerName"].(string); got != "Player1" {
		t.Errorf("winner = %q, want Player1", got)
	}
}

// 2人を割ったら早期清算: 残留者がポットを取り、マッチ用ルームは破棄される
func TestLeaveBelowTwoPlayersEndsMatchRoom(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry()
	room := reg.Create(MatchConfig{MaxRounds: 3})
	for i := 1; i <= 2; i++ {
		if _, _, err := room.Join(ctx, uint(i), ""); err != nil {
			t.Fatal(err)
		}
	}
	betAll(t, room, 10, 1, 2)
	rollExact(t, room, 1, [3]int{2, 2, 5})

	events, err := room.Leave(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !hasEvent(events, "gameOver") {
		t.Fatal("expected terminal notification")
	}
	// 退室者の賭けは返金され、残ったポット（Player2の分）は残留者へ
	if got := player(t, room, 2).Coins; got != defaultStartCoins {
		t.Errorf("survivor coins = %d, want %d", got, defaultStartCoins)
	}
	if _, err := reg.Find(room.Code); err != ErrRoomNotFound {
		t.Error("match room must be destroyed after early settlement")
	}
}

// 常設ルームは早期清算後もロビーとして生き残る
func TestLeaveBelowTwoPlayersResetsPersistentRoom(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry()
	room := reg.Create(MatchConfig{})
	for i := 1; i <= 2; i++ {
		if _, _, err := room.Join(ctx, uint(i), ""); err != nil {
			t.Fatal(err)
		}
	}
	betAll(t, room, 10, 1, 2)

	if _, err := room.Leave(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Find(room.Code); err != nil {
		t.Fatal("persistent room must survive early settlement")
	}
	if room.Phase() != PhaseLobby {
		t.Fatalf("phase = %s, want %s", room.Phase(), PhaseLobby)
	}
	// 3人目が入ればまた遊べる
	if _, _, err := room.Join(ctx, 3, ""); err != nil {
		t.Fatal(err)
	}
	if room.Phase() != PhaseBetting {
		t.Fatalf("phase = %s after refill, want %s", room.Phase(), PhaseBetting)
	}
}

// 全員が退室したルームはレジストリから消える
func TestRoomDestroyedWhenEmpty(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry()
	room := reg.Create(MatchConfig{})
	if _, _, err := room.Join(ctx, 1, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := room.Leave(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if reg.Count() != 0 {
		t.Errorf("registry count = %d, want 0", reg.Count())
	}
}

// 手番中のプレイヤーが退室したら、古いタイマーを破棄して次の手番が始まる
func TestLeaveByCurrentPlayerAdvancesTurn(t *testing.T) {
	ctx := context.Background()
	room, _ := newBettingRoom(t, MatchConfig{}, 3)
	betAll(t, room, 10, 1, 2, 3)

	events, err := room.Leave(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	ev, ok := findEvent(events, "nextTurn")
	if !ok {
		t.Fatal("expected nextTurn for the next player")
	}
	if got := ev.Data["playerName"].(string); got != "Player2" {
		t.Errorf("next turn = %q, want Player2", got)
	}
}
