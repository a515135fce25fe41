package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lu-zhengda/launchdeck/internal/apps"
	"github.com/lu-zhengda/launchdeck/internal/scancache"
)

var (
	scanForce      bool
	scanClearCache bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Discover installed apps",
	Long:  "Discover installed apps for the configured platform.\nA cached result is reused unless --force is given.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := openApp(ctx, false, nil)
		if err != nil {
			return err
		}
		defer closeApp(app)

		prev, hadPrev := app.Cache.Get(ctx, app.Pipeline.Bucket())

		if scanClearCache {
			if err := app.ClearCache(ctx); err != nil {
				return err
			}
		}

		var progress func(apps.ScanProgress)
		if !jsonFlag {
			progress = func(ev apps.ScanProgress) {
				fmt.Fprintf(os.Stderr, "\r  %3.0f%%  %-60s", ev.Percent, truncateText(ev.Message, 60))
			}
		}

		start := time.Now()
		res, err := app.Session.Load(ctx, scanForce || scanClearCache, progress)
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}
		elapsed := time.Since(start)
		layout := app.Session.LayoutFor("")

		var diff *scancache.DiffResult
		if hadPrev && !res.FromCache && !res.Fallback {
			d := scancache.Diff(prev, res.Apps)
			diff = &d
		}

		if jsonFlag {
			return printJSON(buildScanJSON(res, layout, elapsed, diff))
		}

		fmt.Fprintln(os.Stderr)
		source := "scanned"
		if res.FromCache {
			source = "from cache"
		}
		fmt.Printf("Found %d apps (%s, %s)\n", len(res.Apps), source, elapsed.Round(time.Millisecond))
		if res.Fallback {
			fmt.Println("Live discovery failed; showing the built-in app list.")
		}
		for _, g := range apps.Groups {
			fmt.Printf("  %-12s %d\n", g.Label(), layout.Counts[string(g)])
		}
		if n := len(layout.Pinned); n > 0 {
			fmt.Printf("  %-12s %d\n", "Pinned", n)
		}
		if diff != nil && (len(diff.Added) > 0 || len(diff.Removed) > 0) {
			fmt.Printf("Since last scan: %d added, %d removed\n", len(diff.Added), len(diff.Removed))
			for _, id := range diff.Added {
				fmt.Printf("  + %s\n", id)
			}
			for _, id := range diff.Removed {
				fmt.Printf("  - %s\n", id)
			}
		}
		return nil
	},
}

func init() {
	scanCmd.Flags().BoolVar(&scanForce, "force", false, "Ignore the scan cache")
	scanCmd.Flags().BoolVar(&scanClearCache, "clear-cache", false, "Drop the scan cache before scanning")
}
