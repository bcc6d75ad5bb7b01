package engine

import (
	"context"
	"errors"
	"testing"
	"time"
)

// タイムアウト付きのルームを作り、タイマー発火イベントをチャネルで受ける
func newTimedRoom(t *testing.T, timeout time.Duration, players int) (*Room, chan []Event) {
	t.Helper()
	reg, _ := newTestRegistry()
	reg.SetTurnTimeout(timeout)
	notifications := make(chan []Event, 16)
	reg.SetNotifier(func(code string, events []Event) {
		notifications <- events
	})
	room := reg.Create(MatchConfig{})
	for i := 1; i <= players; i++ {
		if _, _, err := room.Join(context.Background(), uint(i), ""); err != nil {
			t.Fatal(err)
		}
	}
	return room, notifications
}

func waitForEvents(t *testing.T, ch chan []Event) []Event {
	t.Helper()
	select {
	case events := <-ch:
		return events
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for timer notification")
		return nil
	}
}

func TestTurnTimeoutForcesSkip(t *testing.T) {
	room, notifications := newTimedRoom(t, 20*time.Millisecond, 2)
	betAll(t, room, 10, 1, 2)

	// Player1の手番を放置 → 強制スキップでPlayer2に手番が移る
	events := waitForEvents(t, notifications)
	if !hasEvent(events, "message") {
		t.Error("expected skip message")
	}
	ev, ok := findEvent(events, "nextTurn")
	if !ok {
		t.Fatal("expected nextTurn after forced skip")
	}
	if got := ev.Data["playerName"].(string); got != "Player2" {
		t.Errorf("next turn = %q, want Player2", got)
	}

	room.mu.Lock()
	rec, recorded := room.rolls[1]
	room.mu.Unlock()
	if !recorded {
		t.Fatal("expected sentinel roll for skipped player")
	}
	if rec.Point != 0 || rec.Dice != [3]int{0, 0, 0} || rec.Label != "Skipped" {
		t.Errorf("sentinel record = %+v", rec)
	}
	checkPotInvariant(t, room)
}

// タイムアウト後に届いた遅れた振りは二重処理されない
func TestLateRollAfterSkipIsRejected(t *testing.T) {
	room, notifications := newTimedRoom(t, 20*time.Millisecond, 2)
	betAll(t, room, 10, 1, 2)

	waitForEvents(t, notifications) // Player1のスキップを待つ

	if _, err := room.RollDice(context.Background(), 1); !errors.Is(err, ErrOutOfTurn) {
		t.Fatalf("late roll = %v, want %v", err, ErrOutOfTurn)
	}
}

// 全員がタイムアウトした場合もポットは勝者総取り（先に振られた＝先に
// スキップされたプレイヤーが0点同士の決着を制する）
func TestAllSkippedStillAwardsPot(t *testing.T) {
	room, notifications := newTimedRoom(t, 20*time.Millisecond, 2)
	betAll(t, room, 10, 1, 2)

	var settled Event
	deadline := time.After(2 * time.Second)
	for {
		var events []Event
		select {
		case events = <-notifications:
		case <-deadline:
			t.Fatal("round never settled")
		}
		if ev, ok := findEvent(events, "roundSettled"); ok {
			settled = ev
			break
		}
	}
	if got := settled.Data["winnerName"].(string); got != "Player1" {
		t.Errorf("winner = %q, want earliest skipped Player1", got)
	}
	if got := settled.Data["amount"].(int); got != 20 {
		t.Errorf("pot = %d, want 20", got)
	}
	checkPotInvariant(t, room)
}

func TestOutOfTurnRollIsSilentlyIgnored(t *testing.T) {
	room, _ := newBettingRoom(t, MatchConfig{}, 2)
	betAll(t, room, 10, 1, 2)

	potBefore := room.Pot()
	if _, err := room.RollDice(context.Background(), 2); !errors.Is(err, ErrOutOfTurn) {
		t.Fatalf("out-of-turn roll = %v, want %v", err, ErrOutOfTurn)
	}
	if _, err := room.RollDice(context.Background(), 99); !errors.Is(err, ErrOutOfTurn) {
		t.Fatalf("unknown roller = %v, want %v", err, ErrOutOfTurn)
	}
	if room.Pot() != potBefore {
		t.Error("ignored roll must not change state")
	}
	room.mu.Lock()
	turn := room.turnIndex
	rollCount := len(room.rolls)
	room.mu.Unlock()
	if turn != 0 || rollCount != 0 {
		t.Errorf("turnIndex = %d, rolls = %d after ignored roll", turn, rollCount)
	}
}

// 手番中の全状態で 0 <= turnIndex < len(players)
func TestTurnIndexStaysInRange(t *testing.T) {
	room, _ := newBettingRoom(t, MatchConfig{}, 3)
	betAll(t, room, 10, 1, 2, 3)

	check := func() {
		room.mu.Lock()
		defer room.mu.Unlock()
		if room.phase == PhaseResolving {
			if room.turnIndex < 0 || room.turnIndex >= len(room.players) {
				t.Fatalf("turnIndex %d out of range for %d players", room.turnIndex, len(room.players))
			}
		}
	}
	check()
	rollExact(t, room, 1, [3]int{2, 2, 3})
	check()
	rollExact(t, room, 2, [3]int{3, 3, 4})
	check()
	if _, err := room.Leave(context.Background(), 2); err != nil {
		t.Fatal(err)
	}
	check()
}
