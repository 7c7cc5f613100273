package backtest

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"
)

// BatchResult summarises a multi-member batch.
type BatchResult struct {
	Succeeded []string
	Failed    map[string]error
	// Halted is set when a batch-wide ceiling stopped further work. Members
	// already finished keep their reports; members in flight keep paused
	// checkpoints.
	Halted    bool
	HaltCause error
}

// ExitCode maps the batch outcome to a process exit code: 0 all succeeded,
// 2 some members failed, 3 a hard limit halted the batch.
func (r *BatchResult) ExitCode() int {
	switch {
	case r.Halted:
		return 3
	case len(r.Failed) > 0:
		return 2
	default:
		return 0
	}
}

// Batch evaluates many members with bounded concurrency. One member's
// failure never stops the others; only a batch-wide hard limit does.
type Batch struct {
	Runner        *Runner
	MaxConcurrent int
	// MaxMembers caps members per batch. Requests beyond it are not
	// evaluated and the batch reports a halt.
	MaxMembers int
	Logger     *slog.Logger
}

// Run evaluates every member in memberIDs. The returned error is reserved
// for orchestration faults; per-member and limit outcomes live in the result.
func (b *Batch) Run(ctx context.Context, memberIDs []string, opts RunOptions) (*BatchResult, error) {
	logger := b.Logger
	if logger == nil {
		logger = slog.Default()
	}

	result := &BatchResult{Failed: make(map[string]error)}

	if b.MaxMembers > 0 && len(memberIDs) > b.MaxMembers {
		result.Halted = true
		result.HaltCause = &HardLimitError{Kind: LimitMembers, Limit: strconv.Itoa(b.MaxMembers) + " members"}
		logger.Warn("member ceiling reached, truncating batch",
			"requested", len(memberIDs), "max", b.MaxMembers)
		memberIDs = memberIDs[:b.MaxMembers]
	}

	batchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var mu sync.Mutex
	g := new(errgroup.Group)
	if b.MaxConcurrent > 0 {
		g.SetLimit(b.MaxConcurrent)
	}

	for _, id := range memberIDs {
		id := id
		g.Go(func() error {
			_, err := b.Runner.EvaluateMember(batchCtx, id, opts)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				result.Succeeded = append(result.Succeeded, id)
			case IsHardLimit(err):
				// A batch-wide ceiling. Stop handing out new work; runs in
				// flight pause themselves at their next trial boundary.
				if !result.Halted {
					result.Halted = true
					result.HaltCause = err
				}
				cancel()
			case errors.Is(err, context.Canceled) && result.Halted:
				// Paused by the halt, not failed. The checkpoint carries on.
			default:
				logger.Warn("member backtest failed", "member", id, "error", err)
				result.Failed[id] = err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Strings(result.Succeeded)
	return result, nil
}
