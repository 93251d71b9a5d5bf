package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mnemo-run/mnemo/internal/eviction"
	"github.com/mnemo-run/mnemo/internal/memory"
)

type tierStats struct {
	Tier   memory.Tier     `json:"tier"`
	Count  int             `json:"count"`
	Status eviction.Status `json:"status"`
}

type statsReport struct {
	Total      int         `json:"total"`
	ByTier     []tierStats `json:"by_tier"`
	Tombstones int         `json:"tombstones"`
}

func newStatsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show memory storage statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAppErr(func(app *App) error {
				report := statsReport{}
				total, err := app.Store.TotalCount()
				if err != nil {
					return err
				}
				report.Total = total

				for _, t := range []memory.Tier{memory.Hot, memory.Warm, memory.Cold} {
					count, err := app.Store.CountByTier(t)
					if err != nil {
						return err
					}
					status := eviction.CapacityStatus(count, app.Config.Capacity.MaxMemoriesPerTier, app.Config.Capacity)
					report.ByTier = append(report.ByTier, tierStats{Tier: t, Count: count, Status: status})
				}

				tombstones, err := app.Store.ListAllTombstones()
				if err != nil {
					return err
				}
				report.Tombstones = len(tombstones)

				if asJSON {
					return printJSON(report)
				}
				fmt.Printf("Total memories: %d\n", report.Total)
				for _, ts := range report.ByTier {
					fmt.Printf("  %s: %d (%s)\n", ts.Tier, ts.Count, ts.Status)
				}
				fmt.Printf("Tombstones: %d\n", report.Tombstones)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}
