// Package protocol defines the JSON messages exchanged with game peers.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/rocketscienceinc/tictactoe-server/internal/entity"
)

const (
	TypeMove           = "move"
	TypeRematch        = "rematch"
	TypeInit           = "init"
	TypeGameState      = "game_state"
	TypeError          = "error"
	TypeRematchRequest = "rematch_request"
)

// wireEmptyCell is how an empty cell is rendered to peers.
const wireEmptyCell = " "

// Request is an inbound intent: either Move or Rematch.
type Request interface {
	requestType() string
}

type Move struct {
	Row int `mapstructure:"row"`
	Col int `mapstructure:"col"`
}

func (Move) requestType() string { return TypeMove }

type Rematch struct{}

func (Rematch) requestType() string { return TypeRematch }

type InitMessage struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol"`
}

// Grid is the board as rendered to peers: " ", "X" or "O" per cell.
type Grid [entity.BoardSize][entity.BoardSize]string

type GameStateMessage struct {
	Type          string  `json:"type"`
	Board         Grid    `json:"board"`
	CurrentPlayer int     `json:"current_player"`
	GameOver      bool    `json:"game_over"`
	Winner        *string `json:"winner"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type RematchRequestMessage struct {
	Type   string `json:"type"`
	Player int    `json:"player"`
}

func NewInit(role entity.Role) InitMessage {
	return InitMessage{Type: TypeInit, Symbol: string(role.Mark())}
}

// NewGameState - renders a snapshot the way peers expect it.
func NewGameState(snapshot entity.Snapshot) GameStateMessage {
	msg := GameStateMessage{
		Type:          TypeGameState,
		CurrentPlayer: int(snapshot.Turn),
		GameOver:      snapshot.GameOver,
	}

	for row := range snapshot.Board {
		for col, cell := range snapshot.Board[row] {
			if cell == entity.EmptyCell {
				msg.Board[row][col] = wireEmptyCell
				continue
			}
			msg.Board[row][col] = string(cell)
		}
	}

	if snapshot.Winner != nil {
		winner := string(snapshot.Winner.Mark())
		msg.Winner = &winner
	}

	return msg
}

func NewError(err error) ErrorMessage {
	return ErrorMessage{Type: TypeError, Message: err.Error()}
}

func NewRematchRequest(role entity.Role) RematchRequestMessage {
	return RematchRequestMessage{Type: TypeRematchRequest, Player: int(role)}
}

// Encode - serializes an outbound message into a single frame payload.
func Encode(msg interface{}) ([]byte, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	return payload, nil
}
