package clustering

import "sort"

// clusterComponents finds connected components of the thresholded
// similarity graph with an iterative breadth-first walk. Like union-find
// it never splits a component; the two methods always agree on
// memberships and exist so callers can pick the traversal they already
// operate elsewhere.
func clusterComponents(m *simMatrix, threshold float64) [][]int {
	n := m.n
	visited := make([]bool, n)
	var groups [][]int

	for i := 0; i < n; i++ {
		if visited[i] {
			continue
		}
		visited[i] = true
		component := []int{i}
		queue := []int{i}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for j := 0; j < n; j++ {
				if visited[j] || j == cur {
					continue
				}
				if m.at(cur, j) >= threshold {
					visited[j] = true
					component = append(component, j)
					queue = append(queue, j)
				}
			}
		}
		sort.Ints(component)
		groups = append(groups, component)
	}
	return groups
}
