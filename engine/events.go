package engine

// Event はルームのメンバーへブロードキャストする通知。エンジンは
// トランスポートに直接触れず、処理結果としてイベント列を返すだけ。
// Data のキーはそのままJSONとしてクライアントに届く。
type Event struct {
	Type string
	Data map[string]interface{}
}

// Notifier はタイマー発火など、コマンド応答の外で生じたイベントの配送先。
type Notifier func(roomCode string, events []Event)

func (r *Room) playersInfo() []map[string]interface{} {
	players := make([]map[string]interface{}, 0, len(r.players))
	for _, p := range r.players {
		players = append(players, map[string]interface{}{
			"id":    p.ID,
			"name":  p.Name,
			"coins": p.Coins,
		})
	}
	return players
}

// ロック保持中に呼ぶこと
func (r *Room) evPlayersUpdated() Event {
	return Event{Type: "playersUpdated", Data: map[string]interface{}{
		"players": r.playersInfo(),
	}}
}

func (r *Room) evRoomStatus() Event {
	return Event{Type: "roomStatus", Data: map[string]interface{}{
		"phase":         string(r.phase),
		"canPlay":       len(r.players) >= minPlayers,
		"maxBet":        r.maxBet(),
		"requiredStake": r.requiredStake,
		"pot":           r.pot,
		"roundNumber":   r.roundNumber,
	}}
}

func evBetAccepted(name string, amount, requiredStake, pot int) Event {
	return Event{Type: "betAccepted", Data: map[string]interface{}{
		"player":        name,
		"amount":        amount,
		"requiredStake": requiredStake,
		"pot":           pot,
	}}
}

func evMustMatch(name string, requiredStake int) Event {
	return Event{Type: "mustMatch", Data: map[string]interface{}{
		"player":        name,
		"requiredStake": requiredStake,
	}}
}

func evDiceRolled(name string, result RollResult) Event {
	return Event{Type: "diceRolled", Data: map[string]interface{}{
		"player": name,
		"dice":   result.Dice,
		"result": result.Label,
	}}
}

func evRerolling(name string, result RollResult) Event {
	return Event{Type: "diceRolled", Data: map[string]interface{}{
		"player": name,
		"dice":   result.Dice,
		"result": result.Label + " Rerolling...",
	}}
}

func evTurnStarted(name string, timeoutSeconds int) Event {
	return Event{Type: "nextTurn", Data: map[string]interface{}{
		"playerName": name,
		"timeLeft":   timeoutSeconds,
	}}
}

func evTurnSkipped(name string) Event {
	return evMessage(name + " took too long! Skipping turn...")
}

func evRoundSettled(winner string, pot, point, roundNumber int, message string) Event {
	return Event{Type: "roundSettled", Data: map[string]interface{}{
		"winnerName":  winner,
		"amount":      pot,
		"point":       point,
		"roundNumber": roundNumber,
		"message":     message,
	}}
}

func evMatchOver(winner string, pot int, standings []map[string]interface{}, message string) Event {
	return Event{Type: "gameOver", Data: map[string]interface{}{
		"winnerName": winner,
		"amount":     pot,
		"standings":  standings,
		"message":    message,
	}}
}

func evRoomReset() Event {
	return Event{Type: "roundReset", Data: map[string]interface{}{}}
}

func evMessage(text string) Event {
	return Event{Type: "message", Data: map[string]interface{}{
		"message": text,
	}}
}
