package clustering

import "sort"

const (
	stateUnvisited = iota
	stateNoise
	stateClustered
)

// clusterDBSCAN runs density-based clustering over the similarity matrix.
// Neighbors are pairs with similarity >= eps; a point is core when it has
// at least minPts neighbors (the point itself does not count). Seeds are
// visited in ascending index order and expansion stops adding members once
// a cluster reaches maxSize, so runs are reproducible and bounded.
func clusterDBSCAN(m *simMatrix, eps float64, minPts, maxSize int) [][]int {
	n := m.n
	neigh := make([][]int, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			if m.at(i, j) >= eps {
				neigh[i] = append(neigh[i], j)
			}
		}
	}

	state := make([]int, n)
	var groups [][]int

	for i := 0; i < n; i++ {
		if state[i] != stateUnvisited {
			continue
		}
		if len(neigh[i]) < minPts {
			state[i] = stateNoise
			continue
		}

		cluster := []int{i}
		state[i] = stateClustered
		queue := append([]int{}, neigh[i]...)
		for len(queue) > 0 && len(cluster) < maxSize {
			j := queue[0]
			queue = queue[1:]

			if state[j] == stateNoise {
				// Border point reachable from a core: joins, never expands.
				state[j] = stateClustered
				cluster = append(cluster, j)
				continue
			}
			if state[j] != stateUnvisited {
				continue
			}
			state[j] = stateClustered
			cluster = append(cluster, j)
			if len(neigh[j]) >= minPts {
				queue = append(queue, neigh[j]...)
			}
		}

		sort.Ints(cluster)
		groups = append(groups, cluster)
	}
	return groups
}
