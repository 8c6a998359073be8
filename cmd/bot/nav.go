package main

import (
	"housevault/internal/sim/render"
)

type cell struct{ X, Y int }

var steps = []struct {
	dir string
	d   cell
}{
	{"right", cell{1, 0}},
	{"up", cell{0, 1}},
	{"down", cell{0, -1}},
	{"left", cell{-1, 0}},
}

// walker remembers where the bot has been inside one house so it can prefer
// unexplored cells. The vault usually sits on the far side from the door, so
// with nothing better to go on it drifts right.
type walker struct {
	visits map[cell]int
	vault  *cell
}

func newWalker() *walker {
	return &walker{visits: map[cell]int{}}
}

// next picks a direction from pos given the explicit view around it. It
// returns "" when boxed in.
func (w *walker) next(pos cell, view []render.Record) string {
	w.visits[pos]++
	blocked := map[cell]bool{}
	for _, r := range view {
		c := cell{r.AbsoluteLocation[0], r.AbsoluteLocation[1]}
		if r.MaterialType == "Vault" {
			v := c
			w.vault = &v
			continue
		}
		if !r.Passable && r.MaterialType != "player" {
			blocked[c] = true
		}
	}

	best, bestScore := "", 0
	for _, s := range steps {
		to := cell{pos.X + s.d.X, pos.Y + s.d.Y}
		if blocked[to] || to.X < 0 || to.Y < 0 || to.X > 30 || to.Y > 30 {
			continue
		}
		score := w.visits[to] * 100
		if w.vault != nil {
			score += abs(w.vault.X-to.X) + abs(w.vault.Y-to.Y)
		} else {
			score += 30 - to.X
		}
		if best == "" || score < bestScore {
			best, bestScore = s.dir, score
		}
	}
	return best
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
