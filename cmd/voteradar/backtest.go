package voteradar

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"sort"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/voteradar/voteradar/internal/backtest"
	"github.com/voteradar/voteradar/internal/history"
	"github.com/voteradar/voteradar/internal/predict"
)

var (
	backtestSamples    int
	backtestStratified bool
	backtestSeed       int64
	backtestAll        bool
	backtestResumeOnly bool
	backtestNoEarly    bool
)

var backtestCmd = &cobra.Command{
	Use:   "backtest [member-id...]",
	Short: "Backtest vote predictions against recorded history",
	Long: `Backtest replays each member's historical votes against the predictor.
Every trial sees only votes cast strictly before the vote under test.

Progress is checkpointed after every trial. Interrupting with Ctrl-C
pauses cleanly; running the same command again resumes. Hard cost
limits (calls, wall clock, members) pause runs rather than discarding
them.

Examples:
  voteradar backtest mp-303 --samples 50
  voteradar backtest --all --stratified --samples 100
  voteradar backtest --resume-only`,
	RunE: runBacktest,
}

func init() {
	backtestCmd.Flags().IntVarP(&backtestSamples, "samples", "n", 50, "Trials per member (clamped by the sample cap)")
	backtestCmd.Flags().BoolVar(&backtestStratified, "stratified", false, "Sample proportionally to the decision mix instead of sequentially")
	backtestCmd.Flags().Int64Var(&backtestSeed, "seed", 0, "Random seed for stratified sampling (0 = time-based)")
	backtestCmd.Flags().BoolVar(&backtestAll, "all", false, "Backtest every member")
	backtestCmd.Flags().BoolVar(&backtestResumeOnly, "resume-only", false, "Only resume paused runs, start nothing new")
	backtestCmd.Flags().BoolVar(&backtestNoEarly, "no-early-stop", false, "Disable early stopping even if enabled in config")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger()

	// Ctrl-C pauses the batch; checkpoints make the interruption cheap.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	memberIDs, err := selectMembers(ctx, db, args)
	if err != nil {
		return err
	}
	if len(memberIDs) == 0 {
		fmt.Println("Nothing to do.")
		return nil
	}

	registry, err := newRegistry(cfg, logger)
	if err != nil {
		return err
	}

	seed := backtestSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	var shortcut *predict.Shortcut
	if cfg.Shortcut.Enabled {
		shortcut = &predict.Shortcut{LoyaltyThreshold: cfg.Shortcut.LoyaltyThreshold}
	}

	var earlyStop *backtest.EarlyStop
	if cfg.Backtest.EarlyStop.Enabled && !backtestNoEarly {
		earlyStop = &backtest.EarlyStop{
			MinTrials: cfg.Backtest.EarlyStop.MinTrials,
			Window:    cfg.Backtest.EarlyStop.Window,
			Epsilon:   cfg.Backtest.EarlyStop.Epsilon,
		}
	}

	budget := backtest.NewBudget(cfg.Backtest.Limits.MaxCalls, cfg.Backtest.Limits.MaxDuration, nil)

	runner := backtest.NewRunner(backtest.RunnerConfig{
		Store:     db,
		History:   history.NewBuilder(db, cfg.Backtest.MinHistory, cfg.Backtest.RecentVotes),
		Predictor: predict.NewPredictor(registry, nil),
		Sampler: &backtest.Sampler{
			MinTraining: cfg.Backtest.MinHistory,
			Cap:         cfg.Backtest.SampleCap,
			Rand:        rand.New(rand.NewSource(seed)),
		},
		Shortcut:  shortcut,
		Limiter:   rate.NewLimiter(rate.Every(cfg.Backtest.CallInterval), 1),
		InFlight:  semaphore.NewWeighted(cfg.Backtest.MaxInFlight),
		Budget:    budget,
		EarlyStop: earlyStop,
		Logger:    logger,
	})

	batch := &backtest.Batch{
		Runner:        runner,
		MaxConcurrent: cfg.Backtest.MaxConcurrent,
		MaxMembers:    cfg.Backtest.Limits.MaxMembers,
		Logger:        logger,
	}

	var spin *spinner.Spinner
	if stdoutIsTTY() && !verbose {
		spin = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
		spin.Suffix = fmt.Sprintf(" Backtesting %d member(s)...", len(memberIDs))
		spin.Start()
	}

	opts := backtest.RunOptions{
		Samples:    backtestSamples,
		Stratified: backtestStratified,
		EarlyStop:  earlyStop != nil,
	}
	result, err := batch.Run(ctx, memberIDs, opts)

	if spin != nil {
		spin.Stop()
	}
	if err != nil {
		return err
	}

	printBatchSummary(result, budget)

	if code := result.ExitCode(); code != 0 {
		return &exitError{code: code}
	}
	return nil
}

// selectMembers resolves the target list from args and flags.
func selectMembers(ctx context.Context, db memberLister, args []string) ([]string, error) {
	switch {
	case backtestResumeOnly:
		return db.ListPausedRuns(ctx)
	case backtestAll:
		members, err := db.ListMembers(ctx)
		if err != nil {
			return nil, err
		}
		ids := make([]string, len(members))
		for i, m := range members {
			ids[i] = m.ID
		}
		return ids, nil
	case len(args) > 0:
		return args, nil
	default:
		return nil, fmt.Errorf("specify member ids, --all, or --resume-only")
	}
}

func printBatchSummary(result *backtest.BatchResult, budget *backtest.Budget) {
	fmt.Println()
	fmt.Printf("%s %d member(s) completed\n", color.GreenString("✓"), len(result.Succeeded))

	if len(result.Failed) > 0 {
		fmt.Printf("%s %d member(s) failed:\n", color.RedString("✗"), len(result.Failed))
		ids := make([]string, 0, len(result.Failed))
		for id := range result.Failed {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Printf("    %s: %v\n", id, result.Failed[id])
		}
	}

	if result.Halted {
		fmt.Printf("%s batch halted: %v\n", color.YellowString("!"), result.HaltCause)
		fmt.Println("  Paused runs resume with: voteradar backtest --resume-only")
	}

	fmt.Printf("  Outbound calls used: %d\n", budget.Used())
}
