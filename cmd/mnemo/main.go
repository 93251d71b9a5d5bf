// Command mnemo runs the memory-injecting HTTP proxy and its management CLI.
package main

import (
	"fmt"
	"os"

	"github.com/mnemo-run/mnemo/internal/cli"
)

func main() {
	root := cli.NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
