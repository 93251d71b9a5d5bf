package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

// NewRootCommand builds the mnemo cobra command tree, grounded on
// daverage-tinyMem/cmd/tinymem/main.go's rootCmd/AddCommand wiring style.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "mnemo",
		Short: "Mnemo - persistent associative memory for LLM clients",
		Long:  "Mnemo proxies LLM API traffic and gives clients persistent, associative long-term memory.",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to mnemo.toml (defaults are used if unset or missing)")

	root.AddCommand(newProxyCmd())
	root.AddCommand(newMemoryCmd())
	root.AddCommand(newStatsCmd())
	root.AddCommand(newCompactCmd())
	root.AddCommand(newEvictCmd())
	root.AddCommand(newConfigCmd())

	return root
}

func withApp(fn func(*App, *cobra.Command, []string) error) func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		app, err := NewApp(configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer app.Close()

		if err := fn(app, cmd, args); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
}
