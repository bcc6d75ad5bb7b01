package engine

import (
	"errors"
	"fmt"
)

// エンジンが返すエラーは全て回復可能で、呼び出し元のプレイヤーにのみ報告される。
// ルーム状態を壊す致命的エラーは存在しない（不整合なルームは破棄で自己回復する）。
var (
	ErrInvalidBet          = errors.New("invalid bet")
	ErrOutOfTurn           = errors.New("not your turn") // トランスポート側で黙殺する
	ErrRoomNotFound        = errors.New("room not found")
	ErrNotAMember          = errors.New("not a member of this room")
	ErrInsufficientPlayers = errors.New("not enough players")
	ErrMatchInProgress     = errors.New("match already in progress")
	ErrAccountRequired     = errors.New("account required for this room")
)

// StakeMismatchError は確定済みの賭け金と異なる額が提示された場合のエラー。
// プレイヤーは同額で再提示するか退室するかを選べる。
type StakeMismatchError struct {
	Required int
}

func (e *StakeMismatchError) Error() string {
	return fmt.Sprintf("bet must match the required stake of %d", e.Required)
}
