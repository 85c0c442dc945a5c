package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := NewDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewRepository(db)
}

func TestSaveAndGetScoreRun(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	run := NewScoreRun("d41d8cd9", 3, 4, 12, true, 42*time.Millisecond)
	rows := []ScoreRow{
		{NodeID: "alice", GraphScore: 0.5, QualityScore: 0.8, StakeScore: 0.3, PaymentScore: 0.2, FinalScore: 0.47, Percentile: 100, SybilProbability: 0.1},
		{NodeID: "bob", GraphScore: 0.3, QualityScore: 0.4, StakeScore: 0.1, PaymentScore: 0.0, FinalScore: 0.25, Percentile: 50, SybilProbability: 0.6},
	}
	require.NoError(t, repo.SaveScoreRun(ctx, run, rows))

	got, err := repo.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunKindScore, got.Kind)
	assert.Equal(t, 3, got.NumNodes)
	assert.Equal(t, 4, got.NumEdges)
	assert.Equal(t, 12, got.Iterations)
	assert.True(t, got.Converged)

	scores, err := repo.GetScores(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.Equal(t, "alice", scores[0].NodeID, "highest final score first")
	assert.InDelta(t, 0.47, scores[0].FinalScore, 1e-9)
	assert.InDelta(t, 0.6, scores[1].SybilProbability, 1e-9)
}

func TestSaveAndGetClusterRun(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	run := NewClusterRun("abc123", "unionfind", 10, 2, 15*time.Millisecond)
	rows := []ClusterRow{
		{ClusterID: "cluster-1", AccountIDs: []string{"a", "b", "c"}, Size: 3, Density: 0.9, Cohesion: 0.8, AvgReputation: 0.1, RiskScore: 0.7, Patterns: []string{"dense_interconnection"}},
		{ClusterID: "cluster-2", AccountIDs: []string{"d", "e"}, Size: 2, Density: 0.5, Cohesion: 0.6, AvgReputation: 0.4, RiskScore: 0.9, Patterns: []string{"burst_creation", "low_reputation"}},
	}
	require.NoError(t, repo.SaveClusterRun(ctx, run, rows))

	clusters, err := repo.GetClusters(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, clusters, 2)
	assert.Equal(t, "cluster-2", clusters[0].ClusterID, "riskiest first")
	assert.Equal(t, []string{"d", "e"}, clusters[0].AccountIDs)
	assert.Equal(t, []string{"burst_creation", "low_reputation"}, clusters[0].Patterns)
	assert.Equal(t, []string{"a", "b", "c"}, clusters[1].AccountIDs)
}

func TestListRunsFiltersByKind(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	score := NewScoreRun("x", 1, 0, 1, true, time.Millisecond)
	require.NoError(t, repo.SaveScoreRun(ctx, score, nil))
	cluster := NewClusterRun("y", "dbscan", 5, 1, time.Millisecond)
	require.NoError(t, repo.SaveClusterRun(ctx, cluster, nil))

	all, err := repo.ListRuns(ctx, "", 50)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	scores, err := repo.ListRuns(ctx, RunKindScore, 50)
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, score.ID, scores[0].ID)

	clusters, err := repo.ListRuns(ctx, RunKindCluster, 50)
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	assert.Equal(t, "dbscan", clusters[0].Method)
}

func TestLatestRun(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first := NewScoreRun("a", 1, 0, 1, true, time.Millisecond)
	first.CreatedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, repo.SaveScoreRun(ctx, first, nil))

	second := NewScoreRun("b", 2, 1, 3, false, time.Millisecond)
	require.NoError(t, repo.SaveScoreRun(ctx, second, nil))

	latest, err := repo.LatestRun(ctx, RunKindScore)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
	assert.False(t, latest.Converged)
}

func TestDeleteRunCascades(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	run := NewScoreRun("z", 1, 0, 1, true, time.Millisecond)
	require.NoError(t, repo.SaveScoreRun(ctx, run, []ScoreRow{{NodeID: "n1", Percentile: 100}}))

	deleted, err := repo.DeleteRun(ctx, run.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = repo.GetRun(ctx, run.ID)
	assert.True(t, IsNotFound(err))

	scores, err := repo.GetScores(ctx, run.ID)
	require.NoError(t, err)
	assert.Empty(t, scores)

	deleted, err = repo.DeleteRun(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestPruneOldRuns(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	old := NewScoreRun("old", 1, 0, 1, true, time.Millisecond)
	old.CreatedAt = time.Now().UTC().AddDate(0, 0, -120)
	require.NoError(t, repo.SaveScoreRun(ctx, old, nil))

	fresh := NewScoreRun("fresh", 1, 0, 1, true, time.Millisecond)
	require.NoError(t, repo.SaveScoreRun(ctx, fresh, nil))

	pruned, err := repo.PruneOldRuns(ctx, 90)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	remaining, err := repo.ListRuns(ctx, "", 50)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, fresh.ID, remaining[0].ID)
}
