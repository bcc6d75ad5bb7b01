package engine

import (
	"context"
	"sync"
	"testing"

	"go.uber.org/zap"
)

// fakeStore はテスト用のインメモリ残高ストア
type fakeStore struct {
	mu       sync.Mutex
	balances map[uint]int
	saves    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{balances: make(map[uint]int)}
}

func (s *fakeStore) Balance(ctx context.Context, playerID uint) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	coins, ok := s.balances[playerID]
	return coins, ok, nil
}

func (s *fakeStore) SaveBalance(ctx context.Context, playerID uint, coins int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[playerID] = coins
	s.saves++
	return nil
}

func (s *fakeStore) saved(playerID uint) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[playerID]
}

func newTestRegistry() (*Registry, *fakeStore) {
	store := newFakeStore()
	return NewRegistry(store, zap.NewNop()), store
}

// newBettingRoom は指定人数が着席済みのルームを作る。ID は 1..n。
func newBettingRoom(t *testing.T, cfg MatchConfig, n int) (*Room, *fakeStore) {
	t.Helper()
	reg, store := newTestRegistry()
	room := reg.Create(cfg)
	for i := 1; i <= n; i++ {
		if _, _, err := room.Join(context.Background(), uint(i), ""); err != nil {
			t.Fatalf("Join(%d): %v", i, err)
		}
	}
	return room, store
}

// rollExact は手番検証だけを行い、指定の出目でターンを解決するテスト用ヘルパー
func rollExact(t *testing.T, r *Room, playerID uint, dice [3]int) []Event {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase != PhaseResolving {
		t.Fatalf("rollExact: phase = %s, want %s", r.phase, PhaseResolving)
	}
	current := r.players[r.turnIndex]
	if current.ID != playerID {
		t.Fatalf("rollExact: current turn is player %d, not %d", current.ID, playerID)
	}
	r.cancelTimerLocked()
	return r.recordRollLocked(context.Background(), current, Score(dice))
}

func player(t *testing.T, r *Room, playerID uint) *Player {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	p, _ := r.findPlayerLocked(playerID)
	if p == nil {
		t.Fatalf("player %d not in room", playerID)
	}
	return p
}

// checkPotInvariant: 到達可能な全状態で pot == bets の合計
func checkPotInvariant(t *testing.T, r *Room) {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	sum := 0
	for _, staked := range r.bets {
		sum += staked
	}
	if r.pot != sum {
		t.Fatalf("pot invariant violated: pot = %d, sum(bets) = %d", r.pot, sum)
	}
}

func hasEvent(events []Event, eventType string) bool {
	for _, ev := range events {
		if ev.Type == eventType {
			return true
		}
	}
	return false
}

func findEvent(events []Event, eventType string) (Event, bool) {
	for _, ev := range events {
		if ev.Type == eventType {
			return ev, true
		}
	}
	return Event{}, false
}
