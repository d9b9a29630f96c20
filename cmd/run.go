package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rankline/seo-cli/internal/model"
)

var (
	runURL      string
	runIdentity string
	runQuiet    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full content pipeline for a website",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, "run")
		if err != nil {
			return err
		}
		defer env.Close()

		observer := progressObserver(os.Stderr)
		if runQuiet {
			observer = nil
		}

		run, err := env.Pipeline.Run(ctx, runURL, runIdentity, observer)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		zap.L().Info("pipeline complete",
			zap.String("url", run.URL),
			zap.Int("queries", len(run.Queries)),
			zap.Int("competitor_results", len(run.CompetitorResults)),
			zap.Int("content_pieces", len(run.QueryContent)),
			zap.Float64("estimated_cost_usd", run.EstimatedCost),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

// progressObserver prints a one-line status for every stage transition and
// per-query loop step.
func progressObserver(w io.Writer) func(*model.Run) {
	last := ""
	return func(r *model.Run) {
		line := ""
		for _, stage := range model.StageOrder {
			if r.StageStatus[stage] != model.StageProcessing {
				continue
			}
			if r.CurrentQuery >= 0 {
				line = fmt.Sprintf("%s: query %d", stage, r.CurrentQuery+1)
			} else {
				line = fmt.Sprintf("%s: processing", stage)
			}
			break
		}
		if line == "" || line == last {
			return
		}
		last = line
		fmt.Fprintln(w, line)
	}
}

func init() {
	runCmd.Flags().StringVar(&runURL, "url", "", "target website URL (required)")
	runCmd.Flags().StringVar(&runIdentity, "identity", "", "caller identity for quota accounting (empty bypasses quota)")
	runCmd.Flags().BoolVar(&runQuiet, "quiet", false, "suppress per-stage progress output")
	_ = runCmd.MarkFlagRequired("url")
	rootCmd.AddCommand(runCmd)
}
