package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sybilwatch/trustgraph/internal/adapters"
	"github.com/sybilwatch/trustgraph/internal/cache"
	"github.com/sybilwatch/trustgraph/internal/clustering"
	"github.com/sybilwatch/trustgraph/internal/config"
	"github.com/sybilwatch/trustgraph/internal/database"
	"github.com/sybilwatch/trustgraph/internal/encoding"
	"github.com/sybilwatch/trustgraph/internal/errors"
	"github.com/sybilwatch/trustgraph/internal/graph"
	"github.com/sybilwatch/trustgraph/internal/monitoring"
	"github.com/sybilwatch/trustgraph/internal/rankings"
	"github.com/sybilwatch/trustgraph/internal/reputation"
	"github.com/sybilwatch/trustgraph/internal/types"
)

// server bundles the services the v1 handlers need. source is the live
// graph store, nil when the deployment is body-only.
type server struct {
	profile  config.Profile
	repo     *database.Repository
	rankings *rankings.Service
	metrics  *monitoring.Metrics
	logger   *monitoring.Logger
	source   adapters.SnapshotSource
}

// loadSnapshot resolves a request's graph: the inline payload, or the
// configured live source when the request names one.
func (s *server) loadSnapshot(c *gin.Context, source string, payload types.SnapshotPayload) (*graph.Snapshot, error) {
	if source == "" {
		return graph.NewSnapshot(payload.Nodes, payload.Edges)
	}
	if s.source == nil || s.source.Name() != source {
		return nil, errors.NewValidationErrorWithMap(map[string]string{
			"source": "unknown snapshot source: " + source,
		})
	}

	start := time.Now()
	snapshot, err := s.source.LoadSnapshot(c.Request.Context())
	s.metrics.RecordAdapterCall(s.source.Name(), err == nil)
	if err != nil {
		s.logger.AdapterLogger(s.source.Name(), 0, 0, time.Since(start), err)
		return nil, errors.NewNetworkError("failed to load snapshot from "+s.source.Name(), err)
	}
	s.logger.AdapterLogger(s.source.Name(), snapshot.Len(), snapshot.NumEdges(), time.Since(start), nil)
	return snapshot, nil
}

// loadAccountsFromSource pulls the live graph, scores it with the profile
// configuration and derives the clustering account set from the result.
func (s *server) loadAccountsFromSource(c *gin.Context, source string) (*clustering.AccountSet, error) {
	snapshot, err := s.loadSnapshot(c, source, types.SnapshotPayload{})
	if err != nil {
		return nil, err
	}
	scores, err := reputation.ComputeScores(c.Request.Context(), snapshot, s.profile.Reputation)
	if err != nil {
		return nil, err
	}
	reputationByID := make(map[string]float64, len(scores.Scores))
	for _, score := range scores.Scores {
		reputationByID[score.NodeID] = score.FinalScore
	}
	return adapters.AccountsFromSnapshot(snapshot, reputationByID)
}

// bind reads the raw body, returns its cache digest and parses it into v.
func bind(c *gin.Context, v interface{}) (string, error) {
	body, err := c.GetRawData()
	if err != nil {
		return "", errors.NewValidationError("failed to read request body", err)
	}
	if err := encoding.Unmarshal(body, v); err != nil {
		return "", errors.NewValidationError("invalid JSON body", err)
	}
	return cache.Key(body), nil
}

func (s *server) handleScore(c *gin.Context) {
	var req types.ScoreRequest
	digest, err := bind(c, &req)
	if err != nil {
		errors.Respond(c, err)
		return
	}

	snapshot, err := s.loadSnapshot(c, req.Source, req.Snapshot)
	if err != nil {
		errors.Respond(c, err)
		return
	}

	cfg := s.profile.Reputation
	if req.Config != nil {
		cfg = *req.Config
	}

	start := time.Now()
	set, err := reputation.ComputeScores(c.Request.Context(), snapshot, cfg)
	if err != nil {
		errors.Respond(c, err)
		return
	}
	if req.AdjustBias > 0 {
		set, err = reputation.AdjustForBias(snapshot, set, req.AdjustBias)
		if err != nil {
			errors.Respond(c, err)
			return
		}
	}
	duration := time.Since(start)

	run := database.NewScoreRun(digest, snapshot.Len(), snapshot.NumEdges(),
		set.Iterations, set.Converged, duration)
	s.persistScoreRun(c, run, set)

	s.metrics.ObserveScoreRun(snapshot.Len(), snapshot.NumEdges(), set.Converged, duration)
	s.logger.ScoreRunLogger(run.ID, snapshot.Len(), snapshot.NumEdges(),
		set.Iterations, set.Converged, duration)
	if !set.Converged {
		s.logger.ConvergenceWarning(run.ID, set.Iterations, cfg.Tolerance)
	}

	c.JSON(http.StatusOK, types.ScoreResponse{
		RunID:       run.ID,
		Scores:      set.Scores,
		Converged:   set.Converged,
		Iterations:  set.Iterations,
		Fairness:    set.Fairness,
		Config:      set.Config,
		NumNodes:    snapshot.Len(),
		NumEdges:    snapshot.NumEdges(),
		DurationMS:  duration.Milliseconds(),
		GeneratedAt: run.CreatedAt,
	})
}

func (s *server) persistScoreRun(c *gin.Context, run *database.Run, set *reputation.ScoreSet) {
	rows := make([]database.ScoreRow, len(set.Scores))
	for i, row := range set.Scores {
		rows[i] = database.ScoreRow{
			NodeID:           row.NodeID,
			GraphScore:       row.GraphScore,
			QualityScore:     row.QualityScore,
			StakeScore:       row.StakeScore,
			PaymentScore:     row.PaymentScore,
			FinalScore:       row.FinalScore,
			Percentile:       row.Percentile,
			SybilProbability: row.SybilProbability,
		}
	}

	err := s.repo.SaveScoreRun(c.Request.Context(), run, rows)
	s.logger.StoreLogger("save_score_run", run.ID, len(rows), err)
	if err != nil {
		s.metrics.IncrementStoreError()
		return
	}
	s.rankings.Invalidate()
}

func (s *server) handleCluster(c *gin.Context) {
	var req types.ClusterRequest
	digest, err := bind(c, &req)
	if err != nil {
		errors.Respond(c, err)
		return
	}

	var set *clustering.AccountSet
	if req.Source != "" {
		set, err = s.loadAccountsFromSource(c, req.Source)
	} else {
		set, err = clustering.NewAccountSet(req.Accounts)
	}
	if err != nil {
		errors.Respond(c, err)
		return
	}

	cfg := s.profile.Clustering
	if req.Config != nil {
		cfg = *req.Config
	}

	start := time.Now()
	result, err := clustering.Detect(c.Request.Context(), set, cfg)
	if err != nil {
		errors.Respond(c, err)
		return
	}
	duration := time.Since(start)

	run := database.NewClusterRun(digest, result.Method, result.NumAccounts,
		len(result.Clusters), duration)
	s.persistClusterRun(c, run, result)

	s.metrics.ObserveClusterRun(result.Method, duration)
	s.logger.ClusterRunLogger(run.ID, result.Method, result.NumAccounts,
		len(result.Clusters), result.NumClustered, duration)

	c.JSON(http.StatusOK, types.ClusterResponse{
		RunID:        run.ID,
		Clusters:     result.Clusters,
		Method:       result.Method,
		NumAccounts:  result.NumAccounts,
		NumClustered: result.NumClustered,
		Config:       result.Config,
		DurationMS:   duration.Milliseconds(),
		GeneratedAt:  run.CreatedAt,
	})
}

func (s *server) persistClusterRun(c *gin.Context, run *database.Run, result *clustering.Result) {
	rows := make([]database.ClusterRow, len(result.Clusters))
	for i, cl := range result.Clusters {
		rows[i] = database.ClusterRow{
			ClusterID:     cl.ID,
			AccountIDs:    cl.AccountIDs,
			Size:          cl.Size,
			Density:       cl.Density,
			Cohesion:      cl.Cohesion,
			AvgReputation: cl.AvgReputation,
			RiskScore:     cl.RiskScore,
			Patterns:      cl.Patterns,
		}
	}

	err := s.repo.SaveClusterRun(c.Request.Context(), run, rows)
	s.logger.StoreLogger("save_cluster_run", run.ID, len(rows), err)
	if err != nil {
		s.metrics.IncrementStoreError()
		return
	}
	s.rankings.Invalidate()
}

func (s *server) handleSimilarity(c *gin.Context) {
	var req types.SimilarityRequest
	if _, err := bind(c, &req); err != nil {
		errors.Respond(c, err)
		return
	}

	// Pair inputs may reference third accounts in their connection lists,
	// so only the pair itself is validated here.
	if req.A.ID == "" || req.B.ID == "" {
		errors.Respond(c, errors.NewValidationError("both accounts need an id", nil))
		return
	}
	if req.A.ID == req.B.ID {
		errors.Respond(c, errors.NewValidationError("accounts must be distinct", nil))
		return
	}

	weights := s.profile.Clustering.FeatureWeights
	if req.Weights != nil {
		weights = *req.Weights
	}

	c.JSON(http.StatusOK, types.SimilarityResponse{
		Similarity: clustering.Similarity(req.A, req.B, weights),
		Weights:    weights,
	})
}

func (s *server) handleAudit(c *gin.Context) {
	var req types.AuditRequest
	if _, err := bind(c, &req); err != nil {
		errors.Respond(c, err)
		return
	}
	if req.NodeID == "" {
		errors.Respond(c, errors.NewValidationError("nodeId is required", nil))
		return
	}

	snapshot, err := graph.NewSnapshot(req.Snapshot.Nodes, req.Snapshot.Edges)
	if err != nil {
		errors.Respond(c, err)
		return
	}

	cfg := s.profile.Reputation
	if req.Config != nil {
		cfg = *req.Config
	}
	topK := req.TopK
	if topK <= 0 {
		topK = s.profile.AuditTopK
	}

	start := time.Now()
	impacts, err := reputation.AuditEdges(c.Request.Context(), snapshot, cfg, req.NodeID, topK)
	if err != nil {
		errors.Respond(c, err)
		return
	}
	duration := time.Since(start)
	s.metrics.ObserveAuditRun(duration)

	c.JSON(http.StatusOK, types.AuditResponse{
		NodeID:      req.NodeID,
		Impacts:     impacts,
		NumNodes:    snapshot.Len(),
		NumEdges:    snapshot.NumEdges(),
		DurationMS:  duration.Milliseconds(),
		GeneratedAt: time.Now().UTC(),
	})
}

func (s *server) handleTune(c *gin.Context) {
	var req types.TuneRequest
	if _, err := bind(c, &req); err != nil {
		errors.Respond(c, err)
		return
	}

	set, err := clustering.NewAccountSet(req.Accounts)
	if err != nil {
		errors.Respond(c, err)
		return
	}

	cfg := s.profile.Clustering
	if req.Config != nil {
		cfg = *req.Config
	}

	start := time.Now()
	result, err := clustering.Tune(c.Request.Context(), set, cfg, req.Thresholds)
	if err != nil {
		errors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, types.TuneResponse{
		Steps:       result.Steps,
		Best:        result.Best,
		DurationMS:  time.Since(start).Milliseconds(),
		GeneratedAt: time.Now().UTC(),
	})
}

func (s *server) handleListRuns(c *gin.Context) {
	kind := c.Query("kind")
	if kind != "" && kind != database.RunKindScore && kind != database.RunKindCluster {
		errors.Respond(c, errors.NewValidationError("kind must be score or cluster", nil))
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	runs, err := s.repo.ListRuns(c.Request.Context(), kind, limit)
	if err != nil {
		errors.Respond(c, errors.NewDatabaseError("failed to list runs", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "total": len(runs)})
}

func (s *server) handleGetRun(c *gin.Context) {
	id := c.Param("id")

	run, err := s.repo.GetRun(c.Request.Context(), id)
	if err != nil {
		if database.IsNotFound(err) {
			errors.Respond(c, errors.NewNotFoundError("run", id))
			return
		}
		errors.Respond(c, errors.NewDatabaseError("failed to load run", err))
		return
	}

	response := gin.H{"run": run}
	switch run.Kind {
	case database.RunKindScore:
		scores, err := s.repo.GetScores(c.Request.Context(), id)
		if err != nil {
			errors.Respond(c, errors.NewDatabaseError("failed to load scores", err))
			return
		}
		response["scores"] = scores
	case database.RunKindCluster:
		clusters, err := s.repo.GetClusters(c.Request.Context(), id)
		if err != nil {
			errors.Respond(c, errors.NewDatabaseError("failed to load clusters", err))
			return
		}
		response["clusters"] = clusters
	}
	c.JSON(http.StatusOK, response)
}

func (s *server) handleDeleteRun(c *gin.Context) {
	id := c.Param("id")

	deleted, err := s.repo.DeleteRun(c.Request.Context(), id)
	if err != nil {
		errors.Respond(c, errors.NewDatabaseError("failed to delete run", err))
		return
	}
	if !deleted {
		errors.Respond(c, errors.NewNotFoundError("run", id))
		return
	}
	s.rankings.Invalidate()
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

func (s *server) handleTopScores(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	response, err := s.rankings.TopScores(c.Request.Context(), limit)
	if err != nil {
		if err == rankings.ErrNoRuns {
			errors.Respond(c, errors.NewNotFoundError("score run", "latest"))
			return
		}
		errors.Respond(c, errors.NewDatabaseError("failed to build top scores", err))
		return
	}
	c.JSON(http.StatusOK, response)
}

func (s *server) handleRiskyClusters(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	response, err := s.rankings.RiskyClusters(c.Request.Context(), limit)
	if err != nil {
		if err == rankings.ErrNoRuns {
			errors.Respond(c, errors.NewNotFoundError("cluster run", "latest"))
			return
		}
		errors.Respond(c, errors.NewDatabaseError("failed to build risky clusters", err))
		return
	}
	c.JSON(http.StatusOK, response)
}

func (s *server) handleProfile(c *gin.Context) {
	c.JSON(http.StatusOK, s.profile)
}
