package database

import (
	"context"
	"log/slog"
	"time"
)

// RetentionService periodically prunes runs past the retention window.
type RetentionService struct {
	repo          *Repository
	retentionDays int
	interval      time.Duration
	stop          chan struct{}
	done          chan struct{}
}

// NewRetentionService creates a pruning service. A retentionDays of zero
// or less disables pruning.
func NewRetentionService(repo *Repository, retentionDays int) *RetentionService {
	return &RetentionService{
		repo:          repo,
		retentionDays: retentionDays,
		interval:      6 * time.Hour,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Start begins the background sweep. It runs one sweep immediately.
func (s *RetentionService) Start() {
	go func() {
		defer close(s.done)
		if s.retentionDays <= 0 {
			slog.Info("run retention disabled")
			return
		}

		s.sweep()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.sweep()
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop halts the background sweep and waits for it to finish.
func (s *RetentionService) Stop() {
	close(s.stop)
	<-s.done
}

func (s *RetentionService) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pruned, err := s.repo.PruneOldRuns(ctx, s.retentionDays)
	if err != nil {
		slog.Error("run retention sweep failed", "error", err)
		return
	}
	if pruned > 0 {
		slog.Info("pruned old runs", "count", pruned, "retention_days", s.retentionDays)
	}
}
