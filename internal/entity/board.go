package entity

import (
	"fmt"

	"github.com/rocketscienceinc/tictactoe-server/internal/apperror"
)

const BoardSize = 3

type Mark string

const (
	EmptyCell Mark = ""
	MarkX     Mark = "X"
	MarkO     Mark = "O"
)

// Verdict is the state of play a board is in.
type Verdict int

const (
	InProgress Verdict = iota
	Win
	Tie
)

// WinCombos holds every line as flat cell indexes, row-major.
var WinCombos = [][3]int{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

// Outcome is the verdict of Board.Evaluate. Winner is set only for Win.
type Outcome struct {
	Verdict Verdict
	Winner  Mark
}

// Board is a 3x3 grid indexed as [row][col]. The zero value is an empty board.
type Board [BoardSize][BoardSize]Mark

// Place - puts mark on an empty cell inside the board.
func (that *Board) Place(row, col int, mark Mark) error {
	if mark != MarkX && mark != MarkO {
		return fmt.Errorf("%w: unknown mark %q", apperror.ErrInvalidMove, mark)
	}

	if row < 0 || row >= BoardSize || col < 0 || col >= BoardSize {
		return fmt.Errorf("%w: cell (%d, %d) is out of range", apperror.ErrInvalidMove, row, col)
	}

	if that[row][col] != EmptyCell {
		return fmt.Errorf("%w: cell (%d, %d) is already occupied", apperror.ErrInvalidMove, row, col)
	}

	that[row][col] = mark

	return nil
}

// Evaluate - any completed line wins, even on a full board.
func (that *Board) Evaluate() Outcome {
	for _, combo := range WinCombos {
		a, b, c := that.cell(combo[0]), that.cell(combo[1]), that.cell(combo[2])
		if a != EmptyCell && a == b && b == c {
			return Outcome{Verdict: Win, Winner: a}
		}
	}

	// the game will continue until all the squares are full
	for row := range that {
		for _, cell := range that[row] {
			if cell == EmptyCell {
				return Outcome{Verdict: InProgress}
			}
		}
	}

	return Outcome{Verdict: Tie}
}

func (that Board) IsEmpty() bool {
	return that == Board{}
}

func (that *Board) cell(index int) Mark {
	return that[index/BoardSize][index%BoardSize]
}
