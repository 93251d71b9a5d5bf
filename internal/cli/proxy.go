package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mnemo-run/mnemo/internal/proxyserver"
)

func newProxyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "proxy",
		Short: "Start the memory-injecting HTTP proxy",
		Run: withApp(func(app *App, cmd *cobra.Command, args []string) error {
			srv := proxyserver.New(app.Config, app.Retriever, app.Ingestor, app.Log)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				app.Log.Info("shutting down proxy")
				return srv.Stop(context.Background())
			}
		}),
	}
}
