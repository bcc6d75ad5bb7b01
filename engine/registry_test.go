package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestCreateGeneratesUniqueCodes(t *testing.T) {
	reg, _ := newTestRegistry()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		room := reg.Create(MatchConfig{})
		if len(room.Code) != roomCodeLength {
			t.Fatalf("code %q length = %d, want %d", room.Code, len(room.Code), roomCodeLength)
		}
		for _, c := range room.Code {
			if !strings.ContainsRune(roomCodeAlphabet, c) {
				t.Fatalf("code %q contains %q outside the alphabet", room.Code, c)
			}
		}
		if seen[room.Code] {
			t.Fatalf("duplicate room code %q", room.Code)
		}
		seen[room.Code] = true
	}
	if reg.Count() != 100 {
		t.Errorf("registry count = %d, want 100", reg.Count())
	}
}

func TestFindNormalizesCode(t *testing.T) {
	reg, _ := newTestRegistry()
	room := reg.Create(MatchConfig{})

	found, err := reg.Find("  " + strings.ToLower(room.Code) + " ")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if found != room {
		t.Error("Find returned a different room")
	}

	if _, err := reg.Find("NOSUCH"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("Find(NOSUCH) = %v, want %v", err, ErrRoomNotFound)
	}
}

func TestFindOrCreate(t *testing.T) {
	reg, _ := newTestRegistry()

	room, err := reg.FindOrCreate("gold")
	if err != nil {
		t.Fatal(err)
	}
	if room.Code != "GOLD" {
		t.Errorf("code = %q, want GOLD", room.Code)
	}
	if !room.Config.persistent() {
		t.Error("first-join rooms must be persistent lobby rooms")
	}
	again, err := reg.FindOrCreate("GOLD")
	if err != nil {
		t.Fatal(err)
	}
	if again != room {
		t.Error("FindOrCreate must return the existing room")
	}
	if _, err := reg.FindOrCreate("   "); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("blank code = %v, want %v", err, ErrRoomNotFound)
	}
}

func TestDestroyCancelsTimers(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry()
	reg.SetTurnTimeout(30 * time.Millisecond)
	fired := make(chan []Event, 4)
	reg.SetNotifier(func(code string, events []Event) {
		fired <- events
	})

	room := reg.Create(MatchConfig{})
	for i := 1; i <= 2; i++ {
		if _, _, err := room.Join(ctx, uint(i), ""); err != nil {
			t.Fatal(err)
		}
	}
	betAll(t, room, 10, 1, 2)

	reg.Destroy(room.Code)
	if reg.Count() != 0 {
		t.Fatalf("registry count = %d after destroy, want 0", reg.Count())
	}

	// 破棄済みルームの古いタイマーは発火してはならない
	select {
	case <-fired:
		t.Fatal("stale timer fired after room destruction")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSweepDestroysIdleRooms(t *testing.T) {
	reg, _ := newTestRegistry()
	idle := reg.Create(MatchConfig{})
	busy := reg.Create(MatchConfig{})

	idle.mu.Lock()
	idle.lastActivity = time.Now().Add(-48 * time.Hour)
	idle.mu.Unlock()

	if swept := reg.Sweep(24 * time.Hour); swept != 1 {
		t.Fatalf("swept = %d, want 1", swept)
	}
	if _, err := reg.Find(idle.Code); !errors.Is(err, ErrRoomNotFound) {
		t.Error("idle room must be swept")
	}
	if _, err := reg.Find(busy.Code); err != nil {
		t.Error("active room must survive the sweep")
	}
}
