package clustering

import "sort"

// dsu is an arena-backed disjoint set: parent and rank live in two int
// slices sized once up front, and find compresses paths iteratively so
// deep chains cannot blow the stack.
type dsu struct {
	parent []int
	rank   []int
}

func newDSU(n int) *dsu {
	d := &dsu{parent: make([]int, n), rank: make([]int, n)}
	for i := range d.parent {
		d.parent[i] = i
	}
	return d
}

func (d *dsu) find(x int) int {
	root := x
	for d.parent[root] != root {
		root = d.parent[root]
	}
	for d.parent[x] != root {
		d.parent[x], x = root, d.parent[x]
	}
	return root
}

func (d *dsu) union(a, b int) {
	ra, rb := d.find(a), d.find(b)
	if ra == rb {
		return
	}
	switch {
	case d.rank[ra] < d.rank[rb]:
		d.parent[ra] = rb
	case d.rank[ra] > d.rank[rb]:
		d.parent[rb] = ra
	default:
		d.parent[rb] = ra
		d.rank[ra]++
	}
}

// clusterUnionFind links every pair at or above the similarity threshold
// and returns the resulting components, members ascending, groups ordered
// by their smallest member. Components are never split: oversized ones are
// tagged downstream instead.
func clusterUnionFind(m *simMatrix, threshold float64) [][]int {
	n := m.n
	d := newDSU(n)
	for i := 0; i < n-1; i++ {
		for j := i + 1; j < n; j++ {
			if m.at(i, j) >= threshold {
				d.union(i, j)
			}
		}
	}

	byRoot := make(map[int][]int, n)
	for i := 0; i < n; i++ {
		root := d.find(i)
		byRoot[root] = append(byRoot[root], i)
	}

	groups := make([][]int, 0, len(byRoot))
	for _, members := range byRoot {
		groups = append(groups, members)
	}
	sort.Slice(groups, func(a, b int) bool { return groups[a][0] < groups[b][0] })
	return groups
}
