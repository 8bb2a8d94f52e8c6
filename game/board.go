// game/board.go
package game

import (
	"errors"
	"fmt"
)

// Cell holds one board position's mark. Empty cells render as spaces.
type Cell byte

const (
	Empty Cell = ' '
	MarkX Cell = 'X'
	MarkO Cell = 'O'
)

var (
	ErrOutOfRange = errors.New("position out of range")
	ErrOccupied   = errors.New("position already taken")
)

// winLines are the 8 three-in-a-row triples: rows, columns, diagonals.
var winLines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// Board is the 3x3 grid. Positions are 1-9 on the wire, 0-8 internally.
type Board [9]Cell

func NewBoard() Board {
	var b Board
	for i := range b {
		b[i] = Empty
	}
	return b
}

// Place writes mark at position (1-9). Cells are write-once: placing on an
// occupied cell fails and leaves the board unchanged.
func (b *Board) Place(position int, mark Cell) error {
	if position < 1 || position > 9 {
		return ErrOutOfRange
	}
	idx := position - 1
	if b[idx] != Empty {
		return ErrOccupied
	}
	b[idx] = mark
	return nil
}

// HasWin reports whether mark owns a complete line.
func (b *Board) HasWin(mark Cell) bool {
	for _, line := range winLines {
		if b[line[0]] == mark && b[line[1]] == mark && b[line[2]] == mark {
			return true
		}
	}
	return false
}

// Full reports whether every cell is occupied.
func (b *Board) Full() bool {
	for _, c := range b {
		if c == Empty {
			return false
		}
	}
	return true
}

// String renders the ASCII grid sent to clients.
func (b *Board) String() string {
	return fmt.Sprintf(" %c | %c | %c \n---+---+---\n %c | %c | %c \n---+---+---\n %c | %c | %c \n\n",
		b[0], b[1], b[2],
		b[3], b[4], b[5],
		b[6], b[7], b[8])
}
