package engine

import (
	"math/rand"
	"strings"
	"testing"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name      string
		dice      [3]int
		wantLabel string
		wantPoint int
		wantValid bool
	}{
		{"instant win", [3]int{4, 5, 6}, "Win", PointInstantWin, true},
		{"instant win unsorted", [3]int{6, 4, 5}, "Win", PointInstantWin, true},
		{"instant loss", [3]int{1, 2, 3}, "Loss", PointInstantLoss, true},
		{"instant loss unsorted", [3]int{3, 1, 2}, "Loss", PointInstantLoss, true},
		{"trips", [3]int{3, 3, 3}, "Trips 3", 3, true},
		{"trips sixes", [3]int{6, 6, 6}, "Trips 6", 6, true},
		{"pair low", [3]int{2, 2, 5}, "Pair 2, Point: 5", 5, true},
		{"pair high", [3]int{5, 2, 5}, "Pair 5, Point: 2", 2, true},
		{"pair outer", [3]int{4, 6, 4}, "Pair 4, Point: 6", 6, true},
		{"no combination", [3]int{1, 2, 4}, "Invalid", 0, false},
		{"no combination spread", [3]int{2, 4, 6}, "Invalid", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.dice)
			if !strings.Contains(got.Label, tt.wantLabel) {
				t.Errorf("Score(%v).Label = %q, want contains %q", tt.dice, got.Label, tt.wantLabel)
			}
			if got.Point != tt.wantPoint {
				t.Errorf("Score(%v).Point = %d, want %d", tt.dice, got.Point, tt.wantPoint)
			}
			if got.Valid != tt.wantValid {
				t.Errorf("Score(%v).Valid = %v, want %v", tt.dice, got.Valid, tt.wantValid)
			}
			if got.Dice != tt.dice {
				t.Errorf("Score(%v).Dice = %v, input must be preserved", tt.dice, got.Dice)
			}
		})
	}
}

func TestScoreDeterministic(t *testing.T) {
	for i := 0; i < 10; i++ {
		if got := Score([3]int{2, 2, 5}); got.Point != 5 {
			t.Fatalf("Score is not deterministic: got point %d", got.Point)
		}
	}
}

func TestScoreWinBeatsEverything(t *testing.T) {
	win := Score([3]int{4, 5, 6})
	loss := Score([3]int{1, 2, 3})
	for d := 1; d <= 6; d++ {
		trips := Score([3]int{d, d, d})
		if win.Point <= trips.Point {
			t.Errorf("win point must beat trips %d", d)
		}
		if loss.Point >= trips.Point {
			t.Errorf("loss point must lose to trips %d", d)
		}
	}
}

func TestRollValidTriple(t *testing.T) {
	randGen := rand.New(rand.NewSource(42))
	rerolls := 0
	for i := 0; i < 200; i++ {
		result := RollValidTriple(randGen, func(invalid RollResult) {
			rerolls++
			if invalid.Valid {
				t.Fatal("onReroll must only receive invalid results")
			}
			if !strings.Contains(invalid.Label, "Invalid") {
				t.Fatalf("unexpected reroll label %q", invalid.Label)
			}
		})
		if !result.Valid {
			t.Fatalf("RollValidTriple returned invalid result %+v", result)
		}
		for _, d := range result.Dice {
			if d < 1 || d > 6 {
				t.Fatalf("die out of range: %d", d)
			}
		}
	}
	// 無効な出目はおよそ半分の確率で出るので、200回で一度も
	// リロールが起きないことはまずない
	if rerolls == 0 {
		t.Error("expected at least one reroll across 200 rolls")
	}
}
