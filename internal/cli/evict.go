package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mnemo-run/mnemo/internal/memory"
)

func newEvictCmd() *cobra.Command {
	var asJSON bool
	var tierFlag string
	cmd := &cobra.Command{
		Use:   "evict",
		Short: "Tombstone lowest-priority memories in tiers under storage pressure",
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

				evicted := make(map[memory.Tier][]string)
				for _, t := range tiers {
					ids, err := app.Evictor.EvictIfNeeded(t)
					if err != nil {
						return err
					}
					evicted[t] = ids
				}

				if asJSON {
					return printJSON(evicted)
				}
				for _, t := range tiers {
					fmt.Printf("%s: evicted=%d\n", t, len(evicted[t]))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	cmd.Flags().StringVar(&tierFlag, "tier", "", "restrict to a single tier: hot, warm, cold")
	return cmd
}
