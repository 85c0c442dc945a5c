package clustering

import "sort"

// clusterHierarchical runs agglomerative clustering with average linkage:
// repeatedly merge the most similar pair of clusters while the linkage
// stays at or above minSimilarity. Merges that would exceed maxSize are
// skipped, and linkage ties resolve to the earliest pair in scan order, so
// the merge sequence is deterministic. The pair scan is quadratic per
// merge; this method is for offline runs, not the hot path.
func clusterHierarchical(m *simMatrix, minSimilarity float64, maxSize int) [][]int {
	n := m.n
	clusters := make([][]int, n)
	for i := 0; i < n; i++ {
		clusters[i] = []int{i}
	}

	for len(clusters) > 1 {
		bestA, bestB := -1, -1
		bestLink := -1.0
		for a := 0; a < len(clusters)-1; a++ {
			for b := a + 1; b < len(clusters); b++ {
				if len(clusters[a])+len(clusters[b]) > maxSize {
					continue
				}
				link := averageLinkage(m, clusters[a], clusters[b])
				if link > bestLink {
					bestA, bestB, bestLink = a, b, link
				}
			}
		}
		if bestA < 0 || bestLink < minSimilarity {
			break
		}

		merged := append(append([]int{}, clusters[bestA]...), clusters[bestB]...)
		sort.Ints(merged)
		clusters[bestA] = merged
		clusters = append(clusters[:bestB], clusters[bestB+1:]...)
	}
	return clusters
}

// averageLinkage is the mean pairwise similarity across the two member
// sets.
func averageLinkage(m *simMatrix, a, b []int) float64 {
	sum := 0.0
	for _, i := range a {
		for _, j := range b {
			sum += m.at(i, j)
		}
	}
	return sum / float64(len(a)*len(b))
}
