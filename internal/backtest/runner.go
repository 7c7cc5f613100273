// Package backtest replays a member's historical votes against the predictor
// under temporal isolation, with a persistent checkpoint after every trial so
// interrupted runs resume where they stopped instead of re-spending calls.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/voteradar/voteradar/internal/database"
	"github.com/voteradar/voteradar/internal/history"
	"github.com/voteradar/voteradar/internal/llm"
	"github.com/voteradar/voteradar/internal/metrics"
	"github.com/voteradar/voteradar/internal/predict"
)

// Store is the persistence surface the runner needs. *database.DB satisfies
// it; tests use in-memory fakes.
type Store interface {
	GetMember(ctx context.Context, id string) (*database.Member, error)
	ListVotes(ctx context.Context, memberID string) ([]database.Vote, error)
	GetRun(ctx context.Context, memberID string) (*database.BacktestRun, error)
	SaveRun(ctx context.Context, r *database.BacktestRun) error
	DeleteRun(ctx context.Context, memberID string) error
	SaveReport(ctx context.Context, memberID string, report metrics.Report) error
}

// VotePredictor produces one prediction per trial. *predict.Predictor
// satisfies it.
type VotePredictor interface {
	Predict(ctx context.Context, member *database.Member, bill predict.Bill, hc *history.Context) (*predict.Prediction, error)
}

// RunnerConfig wires a Runner. Store, History, Predictor and Sampler are
// required; the rest default to off or no-op.
type RunnerConfig struct {
	Store     Store
	History   *history.Builder
	Predictor VotePredictor
	Sampler   *Sampler

	// Shortcut, when non-nil, answers high-loyalty trials without an
	// external call.
	Shortcut *predict.Shortcut
	// Limiter paces outbound calls. nil means no pacing.
	Limiter *rate.Limiter
	// InFlight caps concurrent outbound calls across all runners sharing it.
	InFlight *semaphore.Weighted
	// Budget is the batch-wide call and duration ceiling. nil means
	// unbounded.
	Budget *Budget
	// EarlyStop, when non-nil, is consulted after every trial if the run
	// opts in.
	EarlyStop *EarlyStop

	Logger *slog.Logger
	Now    func() time.Time
}

// Runner evaluates one member at a time.
type Runner struct {
	cfg RunnerConfig
}

// NewRunner creates a Runner from cfg, filling in logger and clock defaults.
func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Runner{cfg: cfg}
}

// RunOptions selects per-run behaviour.
type RunOptions struct {
	// Samples is the requested trial count, clamped by the sampler cap and
	// the eligible pool.
	Samples int
	// Stratified draws the sample proportionally to the decision mix instead
	// of sequentially from the oldest eligible vote.
	Stratified bool
	// EarlyStop lets the run finish once rolling accuracy converges.
	EarlyStop bool
}

// EvaluateMember runs or resumes a backtest for one member and returns the
// stored report. The checkpoint is persisted after every trial; on any
// run-level failure the checkpoint is flipped to paused with the cause
// recorded before the error propagates.
func (r *Runner) EvaluateMember(ctx context.Context, memberID string, opts RunOptions) (*metrics.Report, error) {
	member, err := r.cfg.Store.GetMember(ctx, memberID)
	if err != nil {
		return nil, err
	}

	pool, err := r.cfg.Store.ListVotes(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to load vote pool for %s: %w", memberID, err)
	}

	run, err := r.cfg.Store.GetRun(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if run != nil {
		// Resume. The stored index list is replayed as-is so a randomly
		// drawn sample stays the same sample across interruptions.
		r.cfg.Logger.Info("resuming backtest",
			"member", memberID, "cursor", run.Cursor, "target", run.TargetCount)
		run.Status = database.RunStatusRunning
		run.LastError = nil
	} else {
		var indexes []int
		if opts.Stratified {
			indexes = r.cfg.Sampler.Stratified(pool, opts.Samples)
		} else {
			indexes = r.cfg.Sampler.Sequential(pool, opts.Samples)
		}
		run = &database.BacktestRun{
			MemberID:      memberID,
			RunID:         uuid.New(),
			Status:        database.RunStatusRunning,
			TargetCount:   len(indexes),
			SampleIndexes: indexes,
			StartedAt:     r.cfg.Now(),
		}
		r.cfg.Logger.Info("starting backtest",
			"member", memberID, "target", run.TargetCount, "stratified", opts.Stratified)
	}
	if err := r.cfg.Store.SaveRun(ctx, run); err != nil {
		return nil, err
	}

	for run.Cursor < len(run.SampleIndexes) {
		// Cancellation takes effect between trials. A trial already past
		// this point finishes and is recorded before the pause.
		if err := ctx.Err(); err != nil {
			r.pause(ctx, run, err)
			return nil, err
		}

		idx := run.SampleIndexes[run.Cursor]
		if idx >= len(pool) {
			err := fmt.Errorf("checkpoint index %d outside vote pool of %d", idx, len(pool))
			r.pause(ctx, run, err)
			return nil, err
		}
		vote := pool[idx]

		result, err := r.trial(ctx, member, vote)
		if err != nil {
			if errors.Is(err, history.ErrInsufficientHistory) {
				// Not enough pre-cutoff context. Skip the trial but still
				// advance and persist the cursor so a resume does not
				// revisit it.
				run.Cursor++
				if err := r.cfg.Store.SaveRun(checkpointCtx(ctx), run); err != nil {
					return nil, err
				}
				continue
			}
			r.pause(ctx, run, err)
			return nil, err
		}

		run.Results = append(run.Results, *result)
		run.Cursor++
		if err := r.cfg.Store.SaveRun(checkpointCtx(ctx), run); err != nil {
			return nil, err
		}

		if opts.EarlyStop && r.cfg.EarlyStop != nil && r.cfg.EarlyStop.ShouldStop(corrects(run.Results)) {
			r.cfg.Logger.Info("early stop: rolling accuracy converged",
				"member", memberID, "trials", len(run.Results))
			break
		}
	}

	report := metrics.Compute(run.Results, database.Decisions)
	report.RanAt = r.cfg.Now()

	// Report before checkpoint delete. A crash between the two re-runs the
	// last trial at worst; the inverse order could lose the whole run.
	if err := r.cfg.Store.SaveReport(ctx, memberID, report); err != nil {
		r.pause(ctx, run, err)
		return nil, err
	}
	if err := r.cfg.Store.DeleteRun(ctx, memberID); err != nil {
		return nil, err
	}

	r.cfg.Logger.Info("backtest completed",
		"member", memberID, "trials", report.SampleSize, "overall", report.Overall)
	return &report, nil
}

// trial evaluates one vote. A MalformedResponseError becomes a failed trial
// result; every other error is run-level and returned as-is.
func (r *Runner) trial(ctx context.Context, member *database.Member, vote database.Vote) (*metrics.TrialResult, error) {
	hc, err := r.cfg.History.Build(ctx, member.ID, vote.VotingTime)
	if err != nil {
		return nil, err
	}

	bill := predict.Bill{ID: vote.ID, Title: vote.Title}

	var pred *predict.Prediction
	if r.cfg.Shortcut != nil {
		if p, ok := r.cfg.Shortcut.Try(member, hc); ok {
			pred = p
		}
	}

	if pred == nil {
		if r.cfg.Budget != nil {
			if err := r.cfg.Budget.Take(); err != nil {
				return nil, err
			}
		}
		if r.cfg.Limiter != nil {
			if err := r.cfg.Limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		if r.cfg.InFlight != nil {
			if err := r.cfg.InFlight.Acquire(ctx, 1); err != nil {
				return nil, err
			}
		}
		// The call itself runs on a detached context so an in-flight
		// request completes and gets recorded even if the run is being
		// cancelled.
		pred, err = r.cfg.Predictor.Predict(context.WithoutCancel(ctx), member, bill, hc)
		if r.cfg.InFlight != nil {
			r.cfg.InFlight.Release(1)
		}
		if err != nil {
			var malformed *predict.MalformedResponseError
			if errors.As(err, &malformed) {
				r.cfg.Logger.Warn("malformed model response",
					"member", member.ID, "vote", vote.ID, "reason", malformed.Reason)
				return &metrics.TrialResult{
					VoteID:     vote.ID,
					Title:      vote.Title,
					VotingTime: vote.VotingTime,
					Party:      vote.Party,
					Actual:     vote.Decision,
					Provenance: string(predict.ProvenanceModel),
				}, nil
			}
			return nil, err
		}
	}

	return &metrics.TrialResult{
		VoteID:     vote.ID,
		Title:      vote.Title,
		VotingTime: vote.VotingTime,
		Party:      vote.Party,
		Predicted:  pred.Decision,
		Actual:     vote.Decision,
		Confidence: pred.Confidence,
		Correct:    pred.Decision == vote.Decision,
		Provenance: string(pred.Provenance),
	}, nil
}

// pause flips the checkpoint to paused with the cause recorded. Uses a
// detached context so the write survives the cancellation that triggered it.
func (r *Runner) pause(ctx context.Context, run *database.BacktestRun, cause error) {
	msg := cause.Error()
	run.Status = database.RunStatusPaused
	run.LastError = &msg
	if err := r.cfg.Store.SaveRun(checkpointCtx(ctx), run); err != nil {
		r.cfg.Logger.Error("failed to persist paused checkpoint",
			"member", run.MemberID, "cause", msg, "error", err)
	}
	if errors.Is(cause, llm.ErrNoBackendAvailable) || IsHardLimit(cause) {
		r.cfg.Logger.Warn("backtest paused", "member", run.MemberID, "cause", msg)
	}
}

// checkpointCtx detaches checkpoint writes from run cancellation. Progress
// already paid for must reach the database.
func checkpointCtx(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

func corrects(results []metrics.TrialResult) []bool {
	out := make([]bool, len(results))
	for i, t := range results {
		out[i] = t.Correct
	}
	return out
}
