package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rankline/seo-cli/internal/model"
)

var compareJSON bool

var compareCmd = &cobra.Command{
	Use:   "compare <query>",
	Short: "Ask every configured model the same query and compare answers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, "compare")
		if err != nil {
			return err
		}
		defer env.Close()

		cmp := env.Pipeline.CompareAcrossModels(ctx, args[0])

		if compareJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(cmp)
		}

		formatComparison(os.Stdout, cmp)
		return nil
	},
}

func formatComparison(w *os.File, cmp *model.Comparison) {
	fmt.Fprintf(w, "Query: %s\n\n", cmp.Query)
	for _, res := range cmp.Results {
		fmt.Fprintf(w, "== %s ==\n", res.ProviderName)
		if !res.Available {
			fmt.Fprintf(w, "unavailable: %s\n\n", res.Error)
			continue
		}
		fmt.Fprintln(w, res.Response)
		if len(res.KeyTopics) > 0 {
			fmt.Fprintf(w, "key topics: %v\n", res.KeyTopics)
		}
		fmt.Fprintln(w)
	}
}

func init() {
	compareCmd.Flags().BoolVar(&compareJSON, "json", false, "print raw JSON instead of formatted output")
	rootCmd.AddCommand(compareCmd)
}
