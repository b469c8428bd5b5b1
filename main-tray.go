//go:build tray

// Wersja z ikoną w zasobniku: go build -tags tray
package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/bartek5186/woo2mag/internal/cli"
	"github.com/bartek5186/woo2mag/internal/export"
	"github.com/bartek5186/woo2mag/internal/logs"
	"github.com/bartek5186/woo2mag/internal/syncer"
	"github.com/getlantern/systray"
)

const sessionTray = "tray"

func main() {
	app, err := cli.Open(cli.Options{})
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	defer app.Close()
	log := app.Log

	// kontekst sterujący życiem procesu (CTRL+C / zamknięcie sesji)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	s := syncer.New(logs.Component(log, "runner"), app.Engine, sessionTray, "tray")
	s.SetInterval(time.Duration(app.Cfg.SyncIntervalSeconds) * time.Second)

	title := fmt.Sprintf("woo2mag %s", cli.Version)
	s.OnStep(func(r *syncer.StepResult) {
		if r.IsComplete {
			systray.SetTooltip(fmt.Sprintf("%s: +%d / ~%d", title, r.AddedCount, r.UpdatedCount))
			return
		}
		systray.SetTooltip(fmt.Sprintf("%s: %d%% (%d/%d)", title, r.ProgressPercent, r.ProcessedCount, r.TotalCount))
	})

	go func() {
		<-ctx.Done()
		s.Stop()
		systray.Quit()
	}()

	systray.Run(func() {
		systray.SetTitle("woo2mag")
		systray.SetTooltip(title)

		mStart := systray.AddMenuItem("Start synchronizacji", "Synchronizuj cyklicznie")
		mStop := systray.AddMenuItem("Stop synchronizacji", "Zatrzymaj harmonogram")
		mStop.Disable()
		mFull := systray.AddMenuItem("Pełna synchronizacja", "Odśwież szczegóły wszystkich pozycji")
		mReset := systray.AddMenuItem("Reset stanu", "Porzuć przerwaną synchronizację")

		systray.AddSeparator()
		mExport := systray.AddMenuItem("Eksport magazynu (xlsx)", "Zapisz inventory.xlsx w katalogu aplikacji")
		mOpenLogs := systray.AddMenuItem("Otwórz logi", "Pokaż plik log")
		mOpenCfg := systray.AddMenuItem("Ustawienia (config.json)", "Otwórz plik konfiguracyjny")
		systray.AddSeparator()
		mQuit := systray.AddMenuItem("Wyjście", "Zamknij aplikację")

		start := func() {
			if _, err := app.Catalog(); err != nil {
				log.Error().Err(err).Msg("tray: catalog not configured")
				systray.SetTooltip(title + ": brak konfiguracji sklepu")
				return
			}
			if err := s.Start(ctx, false); err != nil {
				log.Error().Err(err).Msg("tray: start failed")
				return
			}
			mStart.Disable()
			mStop.Enable()
		}
		if app.Cfg.AutoStart {
			start()
		}

		go func() {
			for {
				select {
				case <-mStart.ClickedCh:
					start()

				case <-mStop.ClickedCh:
					s.Stop()
					mStop.Disable()
					mStart.Enable()
					systray.SetTooltip(title + ": zatrzymane")

				case <-mFull.ClickedCh:
					if s.IsRunning() {
						continue
					}
					mFull.Disable()
					go func() {
						defer mFull.Enable()
						if _, err := s.RunToCompletion(ctx, true); err != nil {
							log.Error().Err(err).Msg("tray: full sync failed")
						}
					}()

				case <-mReset.ClickedCh:
					if err := app.Engine.Reset(ctx, sessionTray); err != nil {
						log.Error().Err(err).Msg("tray: reset failed")
					}

				case <-mExport.ClickedCh:
					path := filepath.Join(app.Dir, "inventory.xlsx")
					if err := exportTo(ctx, app, path); err != nil {
						log.Error().Err(err).Msg("tray: export failed")
						continue
					}
					openInExplorer(path)

				case <-mOpenLogs.ClickedCh:
					openInExplorer(filepath.Join(app.Dir, "app.log"))

				case <-mOpenCfg.ClickedCh:
					openInExplorer(app.CfgPath)

				case <-mQuit.ClickedCh:
					cancel()
					s.Stop()
					systray.Quit()
					return
				}
			}
		}()
	}, func() {
		// daj chwilę loggerowi na flush
		time.Sleep(50 * time.Millisecond)
	})
}

func exportTo(ctx context.Context, app *cli.App, path string) error {
	items, err := app.Store.All(ctx)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.WriteInventory(f, items); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// przenośne otwieranie plików/katalogów w domyślnej aplikacji
func openInExplorer(path string) {
	switch runtime.GOOS {
	case "windows":
		// "start" przez cmd /C, z pustym tytułem okna ""
		_ = exec.Command("cmd", "/C", "start", "", path).Start()
	case "darwin":
		_ = exec.Command("open", path).Start()
	default:
		_ = exec.Command("xdg-open", path).Start()
	}
}
