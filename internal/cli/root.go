// Package cli - komendy woo2mag (cobra).
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// wersję możesz nadpisać przez: -ldflags "-X 'github.com/bartek5186/woo2mag/internal/cli.Version=1.0.1'"
var Version = "1.0.0"

type appKey struct{}

// NewRootCmd - świeże drzewo komend (testy tworzą własne)
func NewRootCmd() *cobra.Command {
	var opts Options

	root := &cobra.Command{
		Use:           AppName,
		Short:         "WooCommerce -> local physical inventory sync",
		Long:          "woo2mag pulls the WooCommerce catalog page by page into a local inventory.\nStock levels are owned locally and never overwritten by a sync.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "version" {
				return nil
			}
			app, err := Open(opts)
			if err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, app))
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.Dir, "dir", DefaultDir(), "application data directory (config, logs, database)")
	pf.StringVar(&opts.ConfigPath, "config", "", "config file (default <dir>/config.json)")
	pf.StringVar(&opts.LogLevel, "log-level", "", "log level override (debug|info|warn|error)")
	pf.BoolVar(&opts.Console, "console", false, "also log to stderr")

	root.AddCommand(
		newServeCmd(),
		newSyncCmd(),
		newProgressCmd(),
		newResetCmd(),
		newCheckCmd(),
		newLogsCmd(),
		newImportCmd(),
		newExportCmd(),
	)
	return root
}

// withApp - RunE z gotowym App, zamykanym po komendzie (także przy błędzie)
func withApp(run func(cmd *cobra.Command, app *App, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, _ := cmd.Context().Value(appKey{}).(*App)
		if app == nil {
			return fmt.Errorf("%s: application not initialised", cmd.Name())
		}
		defer app.Close()
		return run(cmd, app, args)
	}
}

// Execute - wejście z main
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		cancel()
		os.Exit(1)
	}
}
