package spatial

import "slices"

// UnionFind is a disjoint-set forest over arbitrary uint64 IDs. The
// representative of a set is always its smallest ID, so results do not
// depend on the order of Union calls.
type UnionFind struct {
	index  map[uint64]int32
	ids    []uint64
	parent []int32
	size   []int32
	min    []uint64 // smallest ID per root
}

// NewUnionFind returns an empty forest with room for n IDs.
func NewUnionFind(n int) *UnionFind {
	return &UnionFind{
		index:  make(map[uint64]int32, n),
		ids:    make([]uint64, 0, n),
		parent: make([]int32, 0, n),
		size:   make([]int32, 0, n),
		min:    make([]uint64, 0, n),
	}
}

// MakeSet adds id as a singleton. Adding a known ID is a no-op.
func (u *UnionFind) MakeSet(id uint64) {
	if _, ok := u.index[id]; ok {
		return
	}
	i := int32(len(u.ids))
	u.index[id] = i
	u.ids = append(u.ids, id)
	u.parent = append(u.parent, i)
	u.size = append(u.size, 1)
	u.min = append(u.min, id)
}

// Len returns the number of IDs known to the forest.
func (u *UnionFind) Len() int { return len(u.ids) }

func (u *UnionFind) root(i int32) int32 {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]] // path halving
		i = u.parent[i]
	}
	return i
}

// Find returns the representative of id's set. Unknown IDs are their own
// representative.
func (u *UnionFind) Find(id uint64) uint64 {
	i, ok := u.index[id]
	if !ok {
		return id
	}
	return u.min[u.root(i)]
}

// Union merges the sets holding a and b, adding either ID if unknown.
// It reports whether two distinct sets were merged.
func (u *UnionFind) Union(a, b uint64) bool {
	u.MakeSet(a)
	u.MakeSet(b)
	ra, rb := u.root(u.index[a]), u.root(u.index[b])
	if ra == rb {
		return false
	}
	if u.size[ra] < u.size[rb] {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
	u.size[ra] += u.size[rb]
	if u.min[rb] < u.min[ra] {
		u.min[ra] = u.min[rb]
	}
	return true
}

// Sets returns every set with members in ascending order. Sets are ordered
// by representative.
func (u *UnionFind) Sets() [][]uint64 {
	byRoot := make(map[int32][]uint64, len(u.ids))
	for i, id := range u.ids {
		r := u.root(int32(i))
		byRoot[r] = append(byRoot[r], id)
	}
	out := make([][]uint64, 0, len(byRoot))
	for _, members := range byRoot {
		slices.Sort(members)
		out = append(out, members)
	}
	slices.SortFunc(out, func(a, b []uint64) int {
		switch {
		case a[0] < b[0]:
			return -1
		case a[0] > b[0]:
			return 1
		}
		return 0
	})
	return out
}
