package core

import (
	"context"
	"fmt"
)

// WorkerRuntime is the opaque capacity provider the pool controller drives.
type WorkerRuntime interface {
	RunningCount(ctx context.Context) (int, error)
	LaunchWorkers(ctx context.Context, n int) error
	TerminateWorkers(ctx context.Context, n int) error
}

// WorkerPoolService keeps the running worker count aligned with
// outstanding work. It is a proportional control loop, not a scheduler:
// an over-provisioned worker idles, an under-provisioned pool only delays
// claims because pending transfers persist until claimed.
type WorkerPoolService struct {
	db         DB
	runtime    WorkerRuntime
	minWorkers int
	maxWorkers int
}

func NewWorkerPoolService(db DB, runtime WorkerRuntime, minWorkers, maxWorkers int) *WorkerPoolService {
	return &WorkerPoolService{db: db, runtime: runtime, minWorkers: minWorkers, maxWorkers: maxWorkers}
}

// CheckWorkers computes demand as pending plus in-progress transfers,
// clamps it to the configured pool bounds, and launches or terminates
// workers to close the gap. Returns the signed adjustment it requested.
func (s *WorkerPoolService) CheckWorkers(ctx context.Context) (int, error) {
	var pending, inProgress int
	err := s.db.QueryRow(ctx,
		`SELECT count(*) FILTER (WHERE started_at IS NULL AND finished_at IS NULL),
		        count(*) FILTER (WHERE started_at IS NOT NULL AND finished_at IS NULL)
		 FROM transfers WHERE deleted_at IS NULL`).Scan(&pending, &inProgress)
	if err != nil {
		return 0, fmt.Errorf("count outstanding transfers: %w", err)
	}

	desired := pending + inProgress
	if desired > s.maxWorkers {
		desired = s.maxWorkers
	}
	if desired < s.minWorkers {
		desired = s.minWorkers
	}

	running, err := s.runtime.RunningCount(ctx)
	if err != nil {
		return 0, fmt.Errorf("count running workers: %w", err)
	}

	switch {
	case running < desired:
		n := desired - running
		if err := s.runtime.LaunchWorkers(ctx, n); err != nil {
			return 0, fmt.Errorf("launch %d workers: %w", n, err)
		}
		return n, nil
	case running > desired:
		n := running - desired
		if err := s.runtime.TerminateWorkers(ctx, n); err != nil {
			return 0, fmt.Errorf("terminate %d workers: %w", n, err)
		}
		return -n, nil
	default:
		return 0, nil
	}
}
