package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/bartek5186/woo2mag/internal/api"
	"github.com/bartek5186/woo2mag/internal/export"
	"github.com/bartek5186/woo2mag/internal/integrations/importer"
	"github.com/bartek5186/woo2mag/internal/logs"
	"github.com/bartek5186/woo2mag/internal/syncer"
	"github.com/spf13/cobra"
)

// sesje checkpointów per front-end
const (
	SessionCLI  = "cli"
	SessionAuto = "auto"
)

func newServeCmd() *cobra.Command {
	var autoSync bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (optionally with periodic auto-sync)",
		RunE: withApp(func(cmd *cobra.Command, app *App, _ []string) error {
			ctx := cmd.Context()
			srv := api.NewServer(logs.Component(app.Log, "http"), app.Engine, app.Store, app.Issues)

			if autoSync || app.Cfg.AutoStart {
				if _, err := app.Catalog(); err != nil {
					return err
				}
				runner := syncer.New(logs.Component(app.Log, "runner"), app.Engine, SessionAuto, "auto")
				runner.SetInterval(time.Duration(app.Cfg.SyncIntervalSeconds) * time.Second)
				if err := runner.Start(ctx, false); err != nil {
					return err
				}
				defer runner.Stop()
			}

			fmt.Fprintf(cmd.OutOrStdout(), "woo2mag %s listening on %s\n", Version, app.Cfg.HTTP.Addr)
			return srv.Serve(ctx, app.Cfg.HTTP)
		}),
	}
	cmd.Flags().BoolVar(&autoSync, "auto-sync", false, "run an incremental sync now and every sync_interval_seconds")
	return cmd
}

func newSyncCmd() *cobra.Command {
	var (
		full    bool
		session string
	)
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run a sync to completion (resumes an interrupted run)",
		RunE: withApp(func(cmd *cobra.Command, app *App, _ []string) error {
			if _, err := app.Catalog(); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			runner := syncer.New(logs.Component(app.Log, "runner"), app.Engine, session, "cli")
			runner.OnStep(func(r *syncer.StepResult) {
				fmt.Fprintf(out, "page %-4d processed %d/%d (%d%%) added %d updated %d\n",
					r.Page, r.ProcessedCount, r.TotalCount, r.ProgressPercent, r.AddedCount, r.UpdatedCount)
			})

			res, err := runner.RunToCompletion(cmd.Context(), full)
			if res != nil {
				printErrors(out, res.Errors)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "done: added %d, updated %d, processed %d\n", res.AddedCount, res.UpdatedCount, res.ProcessedCount)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&full, "full", false, "also refresh details of existing items (stock is never touched)")
	cmd.Flags().StringVar(&session, "session", SessionCLI, "checkpoint session key")
	return cmd
}

func newProgressCmd() *cobra.Command {
	var session string
	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Show the progress of the current run",
		RunE: withApp(func(cmd *cobra.Command, app *App, _ []string) error {
			p, err := app.Engine.Progress(cmd.Context(), session)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !p.InProgress {
				fmt.Fprintln(out, "no sync in progress")
				return nil
			}
			fmt.Fprintf(out, "run %s: page %d, processed %d/%d (%d%%), added %d, updated %d, errors %d\n",
				p.RunID, p.Page, p.Processed, p.Total, p.Percent, p.Added, p.Updated, p.Errors)
			return nil
		}),
	}
	cmd.Flags().StringVar(&session, "session", SessionCLI, "checkpoint session key")
	return cmd
}

func newResetCmd() *cobra.Command {
	var session string
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Cancel the current run and drop its checkpoint",
		RunE: withApp(func(cmd *cobra.Command, app *App, _ []string) error {
			if err := app.Engine.Reset(cmd.Context(), session); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "sync state reset")
			return nil
		}),
	}
	cmd.Flags().StringVar(&session, "session", SessionCLI, "checkpoint session key")
	return cmd
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Test the connection to the catalog",
		RunE: withApp(func(cmd *cobra.Command, app *App, _ []string) error {
			cat, err := app.Catalog()
			if err != nil {
				return err
			}
			if err := cat.TestConnectivity(cmd.Context()); err != nil {
				return fmt.Errorf("%w: %v", syncer.ErrConnectivity, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: connection OK\n", cat.Name())
			return nil
		}),
	}
}

func newLogsCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent sync history",
		RunE: withApp(func(cmd *cobra.Command, app *App, _ []string) error {
			entries, err := app.Engine.Recent(cmd.Context(), n)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "no sync has run yet")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tSTATUS\tSOURCE\tFULL\tADDED\tUPDATED\tDETAILS")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%d\t%d\t%s\n",
					e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.Status, e.Source, e.FullSync,
					e.ProductsAdded, e.ProductsUpdated, e.Details)
			}
			return tw.Flush()
		}),
	}
	cmd.Flags().IntVarP(&n, "number", "n", 10, "number of entries")
	return cmd
}

func newImportCmd() *cobra.Command {
	var (
		dryRun    bool
		mode      string
		productID int64
	)
	cmd := &cobra.Command{
		Use:   "import-variations",
		Short: "Import variable products with their variations in one pass",
		RunE: withApp(func(cmd *cobra.Command, app *App, _ []string) error {
			m, err := importer.ParseMode(mode)
			if err != nil {
				return err
			}
			cat, err := app.Catalog()
			if err != nil {
				return err
			}
			imp := importer.New(logs.Component(app.Log, "importer"), cat, app.Store, app.History, app.Issues, app.Engine.Policy().LowStockThreshold)
			rep, err := imp.Run(cmd.Context(), importer.Options{Mode: m, DryRun: dryRun, ProductID: productID})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			verb := "imported"
			if dryRun {
				verb = "would import"
			}
			for _, it := range rep.Plan {
				if it.ParentID == 0 {
					fmt.Fprintf(out, "%s parent    %d %s\n", verb, it.ExternalID, it.Title)
				} else {
					fmt.Fprintf(out, "%s variation %d %s (parent %d)\n", verb, it.ExternalID, it.Title, it.ParentID)
				}
			}
			printErrors(out, rep.Errors)
			fmt.Fprintf(out, "%d variable products, parents %d, variations %d, skipped %d, duplicates %d, ghosts %d, collisions %d (mode %s)\n",
				rep.VariableProducts, rep.ParentsAdded, rep.VariationsAdded, rep.Skipped,
				rep.Dedup.DuplicatesDropped, rep.Dedup.GhostsDropped, rep.Dedup.Collisions, rep.Mode)
			return nil
		}),
	}
	f := cmd.Flags()
	f.BoolVar(&dryRun, "dry-run", false, "only print what would be imported")
	f.StringVar(&mode, "mode", string(importer.ModeStrict), "variation filter: basic|status-aware|strict")
	f.Int64Var(&productID, "product-id", 0, "import a single variable product")
	return cmd
}

func newExportCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the inventory to an .xlsx workbook",
		RunE: withApp(func(cmd *cobra.Command, app *App, _ []string) error {
			items, err := app.Store.All(cmd.Context())
			if err != nil {
				return err
			}
			if !strings.HasSuffix(strings.ToLower(output), ".xlsx") {
				return errors.New("output file must have the .xlsx extension")
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := export.WriteInventory(f, items); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d items to %s\n", len(items), output)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&output, "output", "o", "inventory.xlsx", "output file")
	return cmd
}

func printErrors(out io.Writer, errs []string) {
	const maxShown = 10
	for i, e := range errs {
		if i == maxShown {
			fmt.Fprintf(out, "... and %d more errors\n", len(errs)-maxShown)
			return
		}
		fmt.Fprintln(out, "error:", e)
	}
}
