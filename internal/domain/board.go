package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Size is the board edge length.
const Size = 8

// Cell represents a board cell state.
type Cell uint8

const (
	Empty Cell = iota
	PlayerOne
	PlayerTwo
)

// Player identifies a side. NoPlayer only appears in results.
type Player uint8

const (
	NoPlayer Player = iota
	One
	Two
)

// Coord is a zero-based (row, column) position.
type Coord struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Result summarizes the current board.
type Result struct {
	Finished  bool   `json:"finished"`
	Tied      bool   `json:"tied"`
	Winner    Player `json:"winner"`
	PlayerOne int    `json:"playerOne"`
	PlayerTwo int    `json:"playerTwo"`
}

// Errors returned by domain operations. ErrOutOfBounds and ErrInvalidPlayer
// both match ErrRange.
var (
	ErrRange         = errors.New("out of range")
	ErrOutOfBounds   = fmt.Errorf("%w: out of bounds", ErrRange)
	ErrInvalidPlayer = fmt.Errorf("%w: invalid player", ErrRange)
	ErrShape         = errors.New("grid must be 8x8")
	ErrInvalidState  = errors.New("invalid cell state")
)

var directions = [8][2]int{
	{-1, -1}, {-1, 0}, {-1, 1},
	{0, -1}, {0, 1},
	{1, -1}, {1, 0}, {1, 1},
}

// Board is a fixed 8x8 grid stored row-major. A Board is a snapshot: no
// method modifies it, so it can be shared between goroutines.
type Board struct {
	grid [Size][Size]Cell
}

// Standard returns the opening position.
func Standard() Board {
	var b Board
	mid := Size / 2
	b.grid[mid-1][mid-1], b.grid[mid][mid] = PlayerTwo, PlayerTwo
	b.grid[mid-1][mid], b.grid[mid][mid-1] = PlayerOne, PlayerOne
	return b
}

// Of wraps grid verbatim. Only the shape is checked; positions that cannot
// arise in play are accepted.
func Of(grid [][]Cell) (Board, error) {
	var b Board
	if len(grid) != Size {
		return Board{}, fmt.Errorf("%w: got %d rows", ErrShape, len(grid))
	}
	for r, row := range grid {
		if len(row) != Size {
			return Board{}, fmt.Errorf("%w: row %d has %d columns", ErrShape, r, len(row))
		}
		copy(b.grid[r][:], row)
	}
	return b, nil
}

// Valid reports whether p is One or Two.
func (p Player) Valid() bool { return p == One || p == Two }

// Opponent returns the other side. NoPlayer maps to itself.
func (p Player) Opponent() Player {
	switch p {
	case One:
		return Two
	case Two:
		return One
	default:
		return NoPlayer
	}
}

// Cell returns the cell state owned by p.
func (p Player) Cell() Cell {
	switch p {
	case One:
		return PlayerOne
	case Two:
		return PlayerTwo
	default:
		return Empty
	}
}

func (c Cell) valid() bool { return c <= PlayerTwo }

// MarshalJSON writes the numeric code, so a []Cell encodes as an array
// rather than a base64 string.
func (c Cell) MarshalJSON() ([]byte, error) {
	return strconv.AppendUint(nil, uint64(c), 10), nil
}

func (c Cell) symbol() byte {
	switch c {
	case PlayerOne:
		return 'X'
	case PlayerTwo:
		return 'O'
	default:
		return '.'
	}
}

// ParseCell parses the numeric code used on the wire ("0", "1" or "2").
func ParseCell(s string) (Cell, error) {
	switch strings.TrimSpace(s) {
	case "0":
		return Empty, nil
	case "1":
		return PlayerOne, nil
	case "2":
		return PlayerTwo, nil
	}
	return Empty, fmt.Errorf("%w: %q", ErrInvalidState, s)
}

// ParsePlayer parses "1" or "2".
func ParsePlayer(s string) (Player, error) {
	switch strings.TrimSpace(s) {
	case "1":
		return One, nil
	case "2":
		return Two, nil
	}
	return NoPlayer, fmt.Errorf("%w: %q", ErrInvalidPlayer, s)
}

func inBounds(r, c int) bool { return r >= 0 && r < Size && c >= 0 && c < Size }

// Cell returns the state at row r, column c.
func (b Board) Cell(r, c int) (Cell, error) {
	if !inBounds(r, c) {
		return Empty, ErrOutOfBounds
	}
	return b.grid[r][c], nil
}

// Grid returns a copy of the cells as nested slices.
func (b Board) Grid() [][]Cell {
	out := make([][]Cell, Size)
	for r := range out {
		out[r] = append([]Cell(nil), b.grid[r][:]...)
	}
	return out
}

// FieldsWithState lists the coordinates holding state in row-major order.
func (b Board) FieldsWithState(state Cell) ([]Coord, error) {
	if !state.valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidState, state)
	}
	var out []Coord
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			if b.grid[r][c] == state {
				out = append(out, Coord{Row: r, Col: c})
			}
		}
	}
	return out, nil
}

// IsValidMove reports whether p may place a disc at row r, column c.
// Bounds are checked before the player, so a call with both wrong yields
// ErrOutOfBounds.
func (b Board) IsValidMove(p Player, r, c int) (bool, error) {
	if !inBounds(r, c) {
		return false, fmt.Errorf("%w: (%d, %d)", ErrOutOfBounds, r, c)
	}
	if !p.Valid() {
		return false, fmt.Errorf("%w: %d", ErrInvalidPlayer, p)
	}
	if b.grid[r][c] != Empty {
		return false, nil
	}
	own, opp := p.Cell(), p.Opponent().Cell()
	for _, d := range directions {
		if b.captures(r, c, d[0], d[1], own, opp) {
			return true, nil
		}
	}
	return false, nil
}

// captures walks from (r, c) in direction (dr, dc) over a run of opp cells
// and reports whether the run is closed by an own cell.
func (b Board) captures(r, c, dr, dc int, own, opp Cell) bool {
	nr, nc := r+dr, c+dc
	run := 0
	for inBounds(nr, nc) && b.grid[nr][nc] == opp {
		run++
		nr += dr
		nc += dc
	}
	return run > 0 && inBounds(nr, nc) && b.grid[nr][nc] == own
}

// ValidMoves lists every legal target for p in row-major order.
func (b Board) ValidMoves(p Player) ([]Coord, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPlayer, p)
	}
	var out []Coord
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			ok, err := b.IsValidMove(p, r, c)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, Coord{Row: r, Col: c})
			}
		}
	}
	return out, nil
}

// Result tallies the board. The game counts as finished only once no empty
// cell remains; a position where neither side can move is still in progress.
func (b Board) Result() Result {
	var res Result
	empty := 0
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			switch b.grid[r][c] {
			case PlayerOne:
				res.PlayerOne++
			case PlayerTwo:
				res.PlayerTwo++
			case Empty:
				empty++
			}
		}
	}
	if empty > 0 {
		return res
	}
	res.Finished = true
	switch {
	case res.PlayerOne > res.PlayerTwo:
		res.Winner = One
	case res.PlayerTwo > res.PlayerOne:
		res.Winner = Two
	default:
		res.Tied = true
	}
	return res
}

// String draws the board one row per line.
func (b Board) String() string {
	var sb strings.Builder
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			sb.WriteByte(b.grid[r][c].symbol())
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
