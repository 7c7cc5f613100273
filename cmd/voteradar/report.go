package voteradar

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/voteradar/voteradar/internal/database"
)

var reportFormat string

var reportCmd = &cobra.Command{
	Use:   "report <member-id>",
	Short: "Show the stored accuracy report for a member",
	Args:  cobra.ExactArgs(1),
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().StringVarP(&reportFormat, "format", "f", "text", "Output format (text, json)")
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()

	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	memberID := args[0]
	report, err := db.GetReport(ctx, memberID)
	if err != nil {
		return err
	}
	if report == nil {
		return fmt.Errorf("no completed backtest for %s", memberID)
	}

	if reportFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	member, err := db.GetMember(ctx, memberID)
	if err != nil {
		return err
	}
	printReport(member, report)
	return nil
}

func printReport(member *database.Member, r *database.AccuracyReport) {
	fmt.Printf("Accuracy report: %s (%s)\n", member.Name, member.Party)
	fmt.Printf("Run at: %s\n\n", r.RanAt.Format("2006-01-02 15:04"))

	fmt.Printf("Overall: %s  (%d trials, %d skipped)\n",
		color.New(color.Bold).Sprintf("%.0f%%", r.Report.Overall),
		r.Report.SampleSize, r.Report.Skipped)

	fmt.Println("\nPrecision by decision:")
	for _, d := range database.Decisions {
		fmt.Printf("  %-8s %5.1f%%\n", d, r.Report.ByDecision[d])
	}

	if len(r.Report.ByParty) > 0 {
		fmt.Println("\nAccuracy by party:")
		for party, acc := range r.Report.ByParty {
			fmt.Printf("  %-8s %5.1f%%\n", party, acc)
		}
	}

	fmt.Println("\nConfusion (predicted -> actual):")
	header := fmt.Sprintf("  %-10s", "")
	for _, a := range database.Decisions {
		header += fmt.Sprintf("%10s", a)
	}
	fmt.Println(header)
	for _, p := range database.Decisions {
		line := fmt.Sprintf("  %-10s", p)
		for _, a := range database.Decisions {
			line += fmt.Sprintf("%10d", r.Report.Confusion[p][a])
		}
		fmt.Println(line)
	}

	if len(r.Trend) > 1 {
		fmt.Println("\nTrend (most recent last):")
		tail := r.Trend
		if len(tail) > 10 {
			tail = tail[len(tail)-10:]
		}
		var points []string
		for _, p := range tail {
			points = append(points, fmt.Sprintf("%s %.0f%%", p.Date, p.Overall))
		}
		fmt.Printf("  %s\n", strings.Join(points, "  "))
	}
}
