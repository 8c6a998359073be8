// Package grid is the sparse 31x31 construction grid of a house. Cells that
// hold no entry are Empty.
package grid

import (
	"sort"

	"housevault/internal/sim/catalogs"
	"housevault/internal/sim/fault"
)

const (
	Size = 31
	Max  = Size - 1
)

type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

var (
	Door       = Cell{X: 0, Y: 15}
	VaultStart = Cell{X: 30, Y: 15}
)

func InBounds(c Cell) bool {
	return c.X >= 0 && c.X <= Max && c.Y >= 0 && c.Y <= Max
}

func IsDoor(c Cell) bool { return c == Door }

// Manhattan distance between two cells.
func Manhattan(a, b Cell) int {
	dx := a.X - b.X
	if dx < 0 {
		dx = -dx
	}
	dy := a.Y - b.Y
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}

type Entry struct {
	Cell Cell
	Kind catalogs.Kind
}

type Grid struct {
	cells map[Cell]catalogs.Kind
}

func New() *Grid {
	return &Grid{cells: make(map[Cell]catalogs.Kind, 16)}
}

// Get returns the kind at c, Empty when nothing is placed there.
func (g *Grid) Get(c Cell) (catalogs.Kind, error) {
	if !InBounds(c) {
		return catalogs.Empty, fault.ErrOutOfBounds
	}
	return g.cells[c], nil
}

// Place inserts or replaces the entry at c. Legality is the caller's concern.
// Placing Empty removes the entry.
func (g *Grid) Place(c Cell, k catalogs.Kind) {
	if k == catalogs.Empty {
		delete(g.cells, c)
		return
	}
	g.cells[c] = k
}

func (g *Grid) Remove(c Cell) (catalogs.Kind, bool) {
	k, ok := g.cells[c]
	if ok {
		delete(g.cells, c)
	}
	return k, ok
}

func (g *Grid) Len() int { return len(g.cells) }

// Entries returns a snapshot ordered by (x, y).
func (g *Grid) Entries() []Entry {
	out := make([]Entry, 0, len(g.cells))
	for c, k := range g.cells {
		out = append(out, Entry{Cell: c, Kind: k})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Cell.X != out[j].Cell.X {
			return out[i].Cell.X < out[j].Cell.X
		}
		return out[i].Cell.Y < out[j].Cell.Y
	})
	return out
}

func (g *Grid) Clone() *Grid {
	cp := &Grid{cells: make(map[Cell]catalogs.Kind, len(g.cells))}
	for c, k := range g.cells {
		cp.cells[c] = k
	}
	return cp
}

// VaultCell returns the first vault cell in (x, y) order.
func (g *Grid) VaultCell() (Cell, bool) {
	var (
		best  Cell
		found bool
	)
	for c, k := range g.cells {
		if k != catalogs.Vault {
			continue
		}
		if !found || c.X < best.X || (c.X == best.X && c.Y < best.Y) {
			best = c
			found = true
		}
	}
	return best, found
}

func (g *Grid) VaultCount() int {
	n := 0
	for _, k := range g.cells {
		if k == catalogs.Vault {
			n++
		}
	}
	return n
}
