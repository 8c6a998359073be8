package pathfind

import (
	"container/heap"

	"housevault/internal/sim/grid"
)

type node struct {
	cell grid.Cell
	f    int
	g    int
	seq  int
}

// frontier is a min-heap on f; equal f pops in push order.
type frontier []node

func (h frontier) Len() int { return len(h) }
func (h frontier) Less(i, j int) bool {
	if h[i].f != h[j].f {
		return h[i].f < h[j].f
	}
	return h[i].seq < h[j].seq
}
func (h frontier) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *frontier) Push(x interface{}) {
	*h = append(*h, x.(node))
}

func (h *frontier) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

type openSet struct {
	h   *frontier
	seq int
}

func newOpenSet() *openSet {
	h := make(frontier, 0, 64)
	heap.Init(&h)
	return &openSet{h: &h}
}

func (o *openSet) push(c grid.Cell, g, f int) {
	o.seq++
	heap.Push(o.h, node{cell: c, g: g, f: f, seq: o.seq})
}

func (o *openSet) pop() (node, bool) {
	if o.h.Len() == 0 {
		return node{}, false
	}
	return heap.Pop(o.h).(node), true
}
