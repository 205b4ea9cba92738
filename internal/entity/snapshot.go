package entity

import "time"

const (
	StatusWaiting  = "waiting"
	StatusOngoing  = "ongoing"
	StatusFinished = "finished"
)

// Snapshot is the externally visible session state at one instant.
type Snapshot struct {
	Board    Board
	Turn     Role
	Status   string
	GameOver bool
	Winner   *Role
}

func (that *Snapshot) IsFinished() bool {
	return that.Status == StatusFinished
}

func (that *Snapshot) IsWaiting() bool {
	return that.Status == StatusWaiting
}

// Result describes one finished game.
type Result struct {
	ID         string    `json:"id"`
	Winner     Mark      `json:"winner,omitempty"`
	Tie        bool      `json:"tie"`
	Board      Board     `json:"board"`
	FinishedAt time.Time `json:"finished_at"`
}

type Scoreboard struct {
	X   int64 `json:"x" redis:"X"`
	O   int64 `json:"o" redis:"O"`
	Tie int64 `json:"tie" redis:"tie"`
}
