package engine

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"
)

// チーロの点数。4-5-6は常に最強、1-2-3は常に最弱の番兵値を使う。
const (
	PointInstantWin  = math.MaxInt32
	PointInstantLoss = math.MinInt32
)

// 無効な出目のリロール上限。上限到達後は確定的に1,1,1へフォールバック。
const maxRollAttempts = 10

// RollResult は3つの出目の判定結果
type RollResult struct {
	Dice  [3]int
	Label string
	Point int
	Valid bool // false の場合はリロール対象
}

// Score は3つの出目（各1〜6）を役に分類し、比較可能な点数を返す。
// 判定はソート済みの出目に対して優先順に行う。
func Score(dice [3]int) RollResult {
	sorted := dice
	s := sorted[:]
	sort.Ints(s)
	d1, d2, d3 := sorted[0], sorted[1], sorted[2]

	switch {
	case d1 == 4 && d2 == 5 && d3 == 6:
		return RollResult{Dice: dice, Label: "4-5-6! Instant Win!", Point: PointInstantWin, Valid: true}
	case d1 == 1 && d2 == 2 && d3 == 3:
		return RollResult{Dice: dice, Label: "1-2-3! Instant Loss!", Point: PointInstantLoss, Valid: true}
	case d1 == d2 && d2 == d3:
		return RollResult{Dice: dice, Label: fmt.Sprintf("Trips %d! Point: %d", d1, d1), Point: d1, Valid: true}
	case d1 == d2:
		return RollResult{Dice: dice, Label: fmt.Sprintf("Pair %d, Point: %d", d1, d3), Point: d3, Valid: true}
	case d2 == d3:
		return RollResult{Dice: dice, Label: fmt.Sprintf("Pair %d, Point: %d", d2, d1), Point: d1, Valid: true}
	case d1 == d3:
		return RollResult{Dice: dice, Label: fmt.Sprintf("Pair %d, Point: %d", d1, d2), Point: d2, Valid: true}
	default:
		return RollResult{Dice: dice, Label: "Invalid roll", Valid: false}
	}
}

// RollValidTriple は有効な役が出るまでサイコロを振り直す。
// 無効な出目ごとに onReroll を呼び出して途中経過を通知できる。
func RollValidTriple(randGen *rand.Rand, onReroll func(result RollResult)) RollResult {
	for i := 0; i < maxRollAttempts; i++ {
		dice := [3]int{randGen.Intn(6) + 1, randGen.Intn(6) + 1, randGen.Intn(6) + 1}
		result := Score(dice)
		if result.Valid {
			return result
		}
		if onReroll != nil {
			onReroll(result)
		}
	}
	// 上限まで無効が続く確率は無視できるほど小さいが、無限ループは許さない
	return Score([3]int{1, 1, 1})
}

// 乱数はサイコロの出目とルームコードの生成に使用
func NewRandGenerator() *rand.Rand {
	source := rand.NewSource(time.Now().UnixNano())
	return rand.New(source)
}
