package voteradar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/voteradar/voteradar/internal/database"
	"github.com/voteradar/voteradar/internal/history"
	"github.com/voteradar/voteradar/internal/predict"
)

var (
	predictTitle   string
	predictSummary string
	predictAllFlag bool
	predictNoCache bool
	predictFormat  string
)

var predictCmd = &cobra.Command{
	Use:   "predict [member-id...]",
	Short: "Predict votes on a proposed bill",
	Long: `Predict how members would vote on a bill described by --title and
--summary. Cached predictions for the same bill text are reused within
the cache TTL; reformatted copies of the same text hit the same entry.

Examples:
  voteradar predict mp-303 --title "Riigieelarve 2027"
  voteradar predict --all --title "Riigieelarve 2027" --summary "State budget for 2027"`,
	RunE: runPredict,
}

func init() {
	predictCmd.Flags().StringVarP(&predictTitle, "title", "t", "", "Bill title (required)")
	predictCmd.Flags().StringVarP(&predictSummary, "summary", "s", "", "Bill summary")
	predictCmd.Flags().BoolVar(&predictAllFlag, "all", false, "Predict for every member")
	predictCmd.Flags().BoolVar(&predictNoCache, "no-cache", false, "Bypass the prediction cache")
	predictCmd.Flags().StringVarP(&predictFormat, "format", "f", "text", "Output format (text, json)")
	_ = predictCmd.MarkFlagRequired("title")
}

type predictionRow struct {
	MemberID   string  `json:"memberId"`
	Name       string  `json:"name"`
	Party      string  `json:"party"`
	Decision   string  `json:"decision"`
	Confidence float64 `json:"confidence"`
	Provenance string  `json:"provenance"`
	Cached     bool    `json:"cached"`
	Skipped    string  `json:"skipped,omitempty"` // reason, when no prediction was possible
}

func runPredict(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger()
	ctx := context.Background()

	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	var members []database.Member
	if predictAllFlag {
		members, err = db.ListMembers(ctx)
		if err != nil {
			return err
		}
	} else {
		if len(args) == 0 {
			return fmt.Errorf("specify member ids or --all")
		}
		for _, id := range args {
			m, err := db.GetMember(ctx, id)
			if err != nil {
				return err
			}
			members = append(members, *m)
		}
	}

	bill := predict.Bill{Title: predictTitle, Summary: predictSummary}
	hash := predict.ScenarioHash(bill)

	cache, err := openCache(cfg)
	if err != nil {
		return err
	}

	cached := map[string]*predict.Prediction{}
	if cache != nil && !predictNoCache {
		ids := make([]string, len(members))
		for i, m := range members {
			ids[i] = m.ID
		}
		cached, err = cache.GetBatch(ctx, ids, hash)
		if err != nil {
			// A broken cache degrades to computing everything.
			logger.Warn("cache lookup failed", "error", err)
			cached = map[string]*predict.Prediction{}
		}
	}

	registry, err := newRegistry(cfg, logger)
	if err != nil {
		return err
	}
	predictor := predict.NewPredictor(registry, nil)
	builder := history.NewBuilder(db, cfg.Backtest.MinHistory, cfg.Backtest.RecentVotes)

	var shortcut *predict.Shortcut
	if cfg.Shortcut.Enabled {
		shortcut = &predict.Shortcut{LoyaltyThreshold: cfg.Shortcut.LoyaltyThreshold}
	}

	rows := make([]predictionRow, 0, len(members))
	for _, m := range members {
		row := predictionRow{MemberID: m.ID, Name: m.Name, Party: m.Party}

		if pred, ok := cached[m.ID]; ok {
			fillRow(&row, pred, true)
			rows = append(rows, row)
			continue
		}

		pred, err := predictOne(ctx, builder, shortcut, predictor, &m, bill)
		if err != nil {
			if errors.Is(err, history.ErrInsufficientHistory) {
				row.Skipped = "insufficient voting history"
				rows = append(rows, row)
				continue
			}
			return err
		}

		if cache != nil && !predictNoCache {
			if err := cache.Set(ctx, m.ID, hash, pred); err != nil {
				logger.Warn("cache write failed", "member", m.ID, "error", err)
			}
		}
		fillRow(&row, pred, false)
		rows = append(rows, row)
	}

	if predictFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}
	printPredictions(bill, rows)
	return nil
}

// predictOne computes a single live prediction: shortcut first, then the
// backend. Live predictions see all history up to now.
func predictOne(ctx context.Context, builder *history.Builder, shortcut *predict.Shortcut, predictor *predict.Predictor, m *database.Member, bill predict.Bill) (*predict.Prediction, error) {
	hc, err := builder.Build(ctx, m.ID, time.Now())
	if err != nil {
		return nil, err
	}

	if shortcut != nil {
		if pred, ok := shortcut.Try(m, hc); ok {
			return pred, nil
		}
	}
	return predictor.Predict(ctx, m, bill, hc)
}

func fillRow(row *predictionRow, pred *predict.Prediction, fromCache bool) {
	row.Decision = pred.Decision
	row.Confidence = pred.Confidence
	row.Provenance = string(pred.Provenance)
	row.Cached = fromCache
}

func printPredictions(bill predict.Bill, rows []predictionRow) {
	fmt.Printf("Bill: %s\n\n", bill.Title)
	for _, r := range rows {
		if r.Skipped != "" {
			fmt.Printf("  %-12s %-24s %-6s skipped (%s)\n", r.MemberID, r.Name, r.Party, r.Skipped)
			continue
		}
		marker := ""
		if r.Cached {
			marker = " (cached)"
		}
		fmt.Printf("  %-12s %-24s %-6s %s  %.0f%% [%s]%s\n",
			r.MemberID, r.Name, r.Party, colorDecision(r.Decision),
			r.Confidence*100, r.Provenance, marker)
	}
}
