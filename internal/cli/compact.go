package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mnemo-run/mnemo/internal/compaction"
	"github.com/mnemo-run/mnemo/internal/memory"
)

func newCompactCmd() *cobra.Command {
	var asJSON bool
	var tierFlag string
	cmd := &cobra.Command{
		Use:   "compact",
		Short: "Run age/weight-gated content compaction",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAppErr(func(app *App) error {
				tiers := []memory.Tier{memory.Hot, memory.Warm, memory.Cold}
				if tierFlag != "" {
					t := memory.Tier(tierFlag)
					if !t.IsValid() {
						return fmt.Errorf("invalid tier %q", tierFlag)
					}
					tiers = []memory.Tier{t}
				}

				cfg := compaction.Config{
					MinWeightToPreserve: app.Config.Capacity.MinWeightToPreserve,
					SummaryAgeDays:      app.Config.Capacity.SummaryAgeDays,
					KeywordsAgeDays:     app.Config.Capacity.KeywordsAgeDays,
				}

				results := make(map[memory.Tier]compaction.Result)
				for _, t := range tiers {
					r, err := app.Compactor.Compact(t, cfg)
					if err != nil {
						return err
					}
					results[t] = r
				}

				if asJSON {
					return printJSON(results)
				}
				for _, t := range tiers {
					r := results[t]
					fmt.Printf("%s: compacted=%d skipped_high_weight=%d already_compressed=%d\n", t, r.Compacted, r.SkippedHighWeight, r.AlreadyCompressed)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	cmd.Flags().StringVar(&tierFlag, "tier", "", "restrict to a single tier: hot, warm, cold")
	return cmd
}
