// Package spatial holds the per-run point index and disjoint-set structure
// used by clustering. Neither type is safe for concurrent mutation; each
// batch owns its own instances.
package spatial

import (
	"container/heap"
	"math"
	"math/bits"
	"slices"

	"github.com/samirrijal/geoagg/internal/core/domain"
)

// Item is an indexed point.
type Item struct {
	ID    uint64
	Point domain.Point
}

// Neighbor is a nearest-neighbour result.
type Neighbor struct {
	Item
	DistSq float64
}

type kdNode struct {
	item  int32 // index into Index.items
	left  int32
	right int32
	axis  uint8
}

// Index is a 2-d tree stored in flat slices. Nodes reference items by
// position so that rebuilding never reallocates item storage.
type Index struct {
	nodes    []kdNode
	items    []Item
	root     int32
	maxDepth int
}

// NewIndex returns an empty index ready for Insert.
func NewIndex() *Index {
	return &Index{root: -1}
}

// BuildIndex bulk-loads items with median splits. The resulting tree is
// balanced, which single inserts cannot guarantee.
func BuildIndex(items []Item) *Index {
	ix := &Index{items: append([]Item(nil), items...), root: -1}
	ix.rebuild()
	return ix
}

// Len returns the number of indexed items.
func (ix *Index) Len() int { return len(ix.items) }

func (ix *Index) rebuild() {
	ix.nodes = make([]kdNode, 0, len(ix.items))
	ix.maxDepth = 0
	order := make([]int32, len(ix.items))
	for i := range order {
		order[i] = int32(i)
	}
	ix.root = ix.buildNodes(order, 0)
}

func (ix *Index) buildNodes(order []int32, depth int) int32 {
	if len(order) == 0 {
		return -1
	}
	if depth+1 > ix.maxDepth {
		ix.maxDepth = depth + 1
	}
	axis := uint8(depth % 2)
	slices.SortFunc(order, func(a, b int32) int {
		return cmpAxis(ix.items[a].Point, ix.items[b].Point, axis)
	})
	median := len(order) / 2
	// Equal keys go right, matching Insert's descent rule.
	for median > 0 && coord(ix.items[order[median-1]].Point, axis) == coord(ix.items[order[median]].Point, axis) {
		median--
	}

	nodeIdx := int32(len(ix.nodes))
	ix.nodes = append(ix.nodes, kdNode{item: order[median], axis: axis})
	left := ix.buildNodes(order[:median], depth+1)
	right := ix.buildNodes(order[median+1:], depth+1)
	ix.nodes[nodeIdx].left = left
	ix.nodes[nodeIdx].right = right
	return nodeIdx
}

// Insert adds one point. When descent depth drifts well past the balanced
// bound the tree is rebuilt, keeping inserts amortized logarithmic.
func (ix *Index) Insert(id uint64, p domain.Point) {
	itemIdx := int32(len(ix.items))
	ix.items = append(ix.items, Item{ID: id, Point: p})

	if ix.root < 0 {
		ix.root = int32(len(ix.nodes))
		ix.nodes = append(ix.nodes, kdNode{item: itemIdx, left: -1, right: -1})
		ix.maxDepth = 1
		return
	}

	cur, depth := ix.root, 1
	for {
		node := &ix.nodes[cur]
		next := &node.right
		if coord(p, node.axis) < coord(ix.items[node.item].Point, node.axis) {
			next = &node.left
		}
		depth++
		if *next < 0 {
			*next = int32(len(ix.nodes))
			ix.nodes = append(ix.nodes, kdNode{item: itemIdx, left: -1, right: -1, axis: (node.axis + 1) % 2})
			break
		}
		cur = *next
	}
	if depth > ix.maxDepth {
		ix.maxDepth = depth
	}
	if ix.maxDepth > balancedDepth(len(ix.items)) {
		ix.rebuild()
	}
}

func balancedDepth(n int) int {
	return 2*bits.Len(uint(n)) + 8
}

// QueryWithin returns the IDs of every item whose distance to center is at
// most radius. Order is unspecified.
func (ix *Index) QueryWithin(center domain.Point, radius float64) []uint64 {
	if ix.root < 0 || radius < 0 || math.IsNaN(radius) {
		return nil
	}
	var out []uint64
	r2 := radius * radius
	stack := []int32{ix.root}
	for len(stack) > 0 {
		n := ix.nodes[stack[len(stack)-1]]
		stack = stack[:len(stack)-1]
		it := ix.items[n.item]
		if it.Point.DistSq(center) <= r2 {
			out = append(out, it.ID)
		}
		d := coord(center, n.axis) - coord(it.Point, n.axis)
		if n.left >= 0 && d-radius <= 0 {
			stack = append(stack, n.left)
		}
		if n.right >= 0 && d+radius >= 0 {
			stack = append(stack, n.right)
		}
	}
	return out
}

// Nearest returns up to k items closest to p, nearest first. Equal
// distances are ordered by ascending ID.
func (ix *Index) Nearest(p domain.Point, k int) []Neighbor {
	if ix.root < 0 || k <= 0 {
		return nil
	}
	h := &neighborHeap{}
	ix.nearest(ix.root, p, k, h)
	out := make([]Neighbor, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(Neighbor)
	}
	return out
}

func (ix *Index) nearest(nodeIdx int32, p domain.Point, k int, h *neighborHeap) {
	if nodeIdx < 0 {
		return
	}
	n := ix.nodes[nodeIdx]
	it := ix.items[n.item]
	cand := Neighbor{Item: it, DistSq: it.Point.DistSq(p)}
	if h.Len() < k {
		heap.Push(h, cand)
	} else if worse((*h)[0], cand) {
		(*h)[0] = cand
		heap.Fix(h, 0)
	}

	d := coord(p, n.axis) - coord(it.Point, n.axis)
	near, far := n.left, n.right
	if d >= 0 {
		near, far = n.right, n.left
	}
	ix.nearest(near, p, k, h)
	// A tie at the plane distance may still hold a smaller ID, so only
	// strictly farther planes are pruned.
	if h.Len() < k || d*d <= (*h)[0].DistSq {
		ix.nearest(far, p, k, h)
	}
}

// worse reports whether a ranks after b.
func worse(a, b Neighbor) bool {
	if a.DistSq != b.DistSq {
		return a.DistSq > b.DistSq
	}
	return a.ID > b.ID
}

// neighborHeap keeps the worst candidate at the top.
type neighborHeap []Neighbor

func (h neighborHeap) Len() int           { return len(h) }
func (h neighborHeap) Less(i, j int) bool { return worse(h[i], h[j]) }
func (h neighborHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *neighborHeap) Push(x any)        { *h = append(*h, x.(Neighbor)) }
func (h *neighborHeap) Pop() any {
	old := *h
	n := old[len(old)-1]
	*h = old[:len(old)-1]
	return n
}

func coord(p domain.Point, axis uint8) float64 {
	if axis == 0 {
		return p.X
	}
	return p.Y
}

func cmpAxis(a, b domain.Point, axis uint8) int {
	ca, cb := coord(a, axis), coord(b, axis)
	switch {
	case ca < cb:
		return -1
	case ca > cb:
		return 1
	}
	return 0
}
