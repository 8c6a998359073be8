// Package pathfind answers whether the vault of a house grid can be reached
// from the door.
package pathfind

import (
	"strconv"
	"strings"

	"housevault/internal/sim/grid"
)

// Fixed neighbor order keeps the returned path stable across runs.
var dirs = [4]grid.Cell{{X: 0, Y: -1}, {X: 0, Y: 1}, {X: 1, Y: 0}, {X: -1, Y: 0}}

// Path is an ordered door-to-vault walk, both ends included.
type Path []grid.Cell

// LuckyNumbers flattens the path into "x y x y ...", or "0" for no path.
func (p Path) LuckyNumbers() string {
	if len(p) == 0 {
		return "0"
	}
	var b strings.Builder
	for i, c := range p {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.Itoa(c.X))
		b.WriteByte(' ')
		b.WriteString(strconv.Itoa(c.Y))
	}
	return b.String()
}

// Solve runs A* from the door to the vault. Impassable cells block the walk
// except the vault cell itself. The bool is false when the grid has no vault
// or no walk exists.
func Solve(g *grid.Grid) (Path, bool) {
	goal, ok := g.VaultCell()
	if !ok {
		return nil, false
	}
	return SolveFrom(g, grid.Door, goal)
}

// SolveFrom is Solve with explicit endpoints. start is always enterable.
func SolveFrom(g *grid.Grid, start, goal grid.Cell) (Path, bool) {
	if !grid.InBounds(start) || !grid.InBounds(goal) {
		return nil, false
	}
	if start == goal {
		return Path{start}, true
	}

	open := newOpenSet()
	best := make(map[grid.Cell]int, grid.Size*grid.Size)
	parent := make(map[grid.Cell]grid.Cell, grid.Size*grid.Size)
	closed := make(map[grid.Cell]bool, grid.Size*grid.Size)

	best[start] = 0
	open.push(start, 0, grid.Manhattan(start, goal))

	for {
		cur, ok := open.pop()
		if !ok {
			return nil, false
		}
		if closed[cur.cell] {
			continue
		}
		if cur.cell == goal {
			return unwind(parent, start, goal), true
		}
		closed[cur.cell] = true

		for _, d := range dirs {
			np := grid.Cell{X: cur.cell.X + d.X, Y: cur.cell.Y + d.Y}
			if !grid.InBounds(np) || closed[np] {
				continue
			}
			if np != goal {
				k, _ := g.Get(np)
				if !k.Passable() {
					continue
				}
			}
			ng := cur.g + 1
			if old, seen := best[np]; seen && old <= ng {
				continue
			}
			best[np] = ng
			parent[np] = cur.cell
			open.push(np, ng, ng+grid.Manhattan(np, goal))
		}
	}
}

func unwind(parent map[grid.Cell]grid.Cell, start, goal grid.Cell) Path {
	var rev Path
	for c := goal; ; c = parent[c] {
		rev = append(rev, c)
		if c == start {
			break
		}
	}
	out := make(Path, len(rev))
	for i := range rev {
		out[i] = rev[len(rev)-1-i]
	}
	return out
}

// Connected reports whether Solve finds a path.
func Connected(g *grid.Grid) bool {
	_, ok := Solve(g)
	return ok
}
