package rankings

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sybilwatch/trustgraph/internal/database"
)

func newTestService(t *testing.T) (*Service, *database.Repository) {
	t.Helper()
	db, err := database.NewDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	repo := database.NewRepository(db)
	return NewServiceWithTTL(repo, time.Minute), repo
}

func seedScoreRun(t *testing.T, repo *database.Repository) *database.Run {
	t.Helper()
	run := database.NewScoreRun("digest", 3, 2, 10, true, time.Millisecond)
	rows := []database.ScoreRow{
		{NodeID: "alice", FinalScore: 0.9, Percentile: 100, SybilProbability: 0.05},
		{NodeID: "bob", FinalScore: 0.5, Percentile: 66.7, SybilProbability: 0.2},
		{NodeID: "carol", FinalScore: 0.1, Percentile: 33.3, SybilProbability: 0.8},
	}
	require.NoError(t, repo.SaveScoreRun(context.Background(), run, rows))
	return run
}

func TestTopScoresNoRuns(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.TopScores(context.Background(), 10)
	assert.ErrorIs(t, err, ErrNoRuns)
}

func TestTopScoresRanksByFinalScore(t *testing.T) {
	svc, repo := newTestService(t)
	run := seedScoreRun(t, repo)

	resp, err := svc.TopScores(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, run.ID, resp.RunID)
	assert.Equal(t, 3, resp.Total)
	require.Len(t, resp.Entries, 2)
	assert.Equal(t, 1, resp.Entries[0].Rank)
	assert.Equal(t, "alice", resp.Entries[0].NodeID)
	assert.Equal(t, "bob", resp.Entries[1].NodeID)
}

func TestTopScoresUsesNewestRun(t *testing.T) {
	svc, repo := newTestService(t)
	seedScoreRun(t, repo)

	newer := database.NewScoreRun("digest2", 1, 0, 3, true, time.Millisecond)
	newer.CreatedAt = time.Now().UTC().Add(time.Second)
	require.NoError(t, repo.SaveScoreRun(context.Background(), newer,
		[]database.ScoreRow{{NodeID: "dave", FinalScore: 1.0, Percentile: 100}}))

	resp, err := svc.TopScores(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, resp.RunID)
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, "dave", resp.Entries[0].NodeID)
}

func TestTopScoresCacheInvalidation(t *testing.T) {
	svc, repo := newTestService(t)
	first := seedScoreRun(t, repo)

	resp, err := svc.TopScores(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, first.ID, resp.RunID)

	second := database.NewScoreRun("digest2", 1, 0, 3, true, time.Millisecond)
	second.CreatedAt = time.Now().UTC().Add(time.Second)
	require.NoError(t, repo.SaveScoreRun(context.Background(), second,
		[]database.ScoreRow{{NodeID: "dave", FinalScore: 1.0, Percentile: 100}}))

	// Cached view still serves the first run until invalidated.
	resp, err = svc.TopScores(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, first.ID, resp.RunID)

	svc.Invalidate()
	resp, err = svc.TopScores(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, second.ID, resp.RunID)
}

func TestRiskyClustersRanksByRisk(t *testing.T) {
	svc, repo := newTestService(t)

	run := database.NewClusterRun("digest", "unionfind", 6, 2, time.Millisecond)
	rows := []database.ClusterRow{
		{ClusterID: "c1", AccountIDs: []string{"a", "b"}, Size: 2, Density: 0.4, RiskScore: 0.3, Patterns: []string{}},
		{ClusterID: "c2", AccountIDs: []string{"c", "d", "e"}, Size: 3, Density: 0.9, RiskScore: 0.95, Patterns: []string{"dense_interconnection"}},
	}
	require.NoError(t, repo.SaveClusterRun(context.Background(), run, rows))

	resp, err := svc.RiskyClusters(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, "unionfind", resp.Method)
	require.Len(t, resp.Entries, 2)
	assert.Equal(t, "c2", resp.Entries[0].ClusterID)
	assert.Equal(t, 1, resp.Entries[0].Rank)
	assert.Equal(t, []string{"dense_interconnection"}, resp.Entries[0].Patterns)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 50, clampLimit(0))
	assert.Equal(t, 50, clampLimit(-3))
	assert.Equal(t, 100, clampLimit(500))
	assert.Equal(t, 25, clampLimit(25))
}
