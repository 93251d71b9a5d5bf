package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/mnemo-run/mnemo/internal/memory"
)

func newMemoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect and manage stored memories",
	}
	cmd.AddCommand(newMemoryListCmd())
	cmd.AddCommand(newMemoryShowCmd())
	cmd.AddCommand(newMemoryAddCmd())
	cmd.AddCommand(newMemoryDeleteCmd())
	return cmd
}

func newMemoryListCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all stored memories, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAppErr(func(app *App) error {
				var all []*memory.Memory
				for _, t := range []memory.Tier{memory.Hot, memory.Warm, memory.Cold} {
					tierMemories, err := app.Store.ListByTier(t)
					if err != nil {
						return fmt.Errorf("list tier %s: %w", t, err)
					}
					all = append(all, tierMemories...)
				}
				sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

				if asJSON {
					return printJSON(all)
				}
				for _, m := range all {
					fmt.Printf("%s  [%s/%s/%s]  w=%.2f  %s\n", m.ID, m.MemoryType, m.Tier, m.Compression, m.Weight, truncate(m.Content, 60))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func newMemoryShowCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a single memory in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAppErr(func(app *App) error {
				m, ok, err := app.Store.Get(args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("no memory with id %s", args[0])
				}
				if asJSON {
					return printJSON(m)
				}
				fmt.Printf("ID:           %s\n", m.ID)
				fmt.Printf("Type:         %s\n", m.MemoryType)
				fmt.Printf("Source:       %s\n", m.Source)
				fmt.Printf("Tier:         %s\n", m.Tier)
				fmt.Printf("Compression:  %s\n", m.Compression)
				fmt.Printf("Weight:       %.4f\n", m.Weight)
				fmt.Printf("Created:      %s\n", m.CreatedAt)
				fmt.Printf("LastAccessed: %s\n", m.LastAccessed)
				fmt.Printf("AccessCount:  %d\n", m.AccessCount)
				fmt.Printf("Entities:     %v\n", m.Entities)
				fmt.Printf("Content:\n%s\n", m.Content)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func newMemoryAddCmd() *cobra.Command {
	var asJSON bool
	var source string
	var conversationID string
	cmd := &cobra.Command{
		Use:   "add <content>",
		Short: "Manually ingest a new memory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAppErr(func(app *App) error {
				src := memory.Source(source)
				if !src.IsValid() {
					return fmt.Errorf("invalid source %q", source)
				}
				m, err := app.Ingestor.Ingest(args[0], src, conversationID)
				if err != nil {
					return err
				}
				if m == nil {
					return fmt.Errorf("content was filtered out (too short)")
				}
				if asJSON {
					return printJSON(m)
				}
				fmt.Printf("stored memory %s\n", m.ID)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	cmd.Flags().StringVar(&source, "source", string(memory.SourceManual), "source: conversation, file, web, manual")
	cmd.Flags().StringVar(&conversationID, "conversation-id", "", "optional conversation id")
	return cmd
}

func newMemoryDeleteCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Manually delete a memory (no tombstone is created)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAppErr(func(app *App) error {
				existed, err := app.Store.Delete(args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(map[string]bool{"deleted": existed})
				}
				if existed {
					fmt.Printf("deleted %s\n", args[0])
				} else {
					fmt.Printf("no memory with id %s\n", args[0])
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

// withAppErr is withApp's error-returning counterpart for RunE-style commands.
func withAppErr(fn func(*App) error) error {
	app, err := NewApp(configPath)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
