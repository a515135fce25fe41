package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lu-zhengda/launchdeck/internal/config"
	"github.com/lu-zhengda/launchdeck/internal/launcher"
	"github.com/lu-zhengda/launchdeck/internal/reconcile"
)

var (
	statusWatch    bool
	statusInterval time.Duration
	statusAll      bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show running apps and resource use",
	Long:  "Poll the process list once and show which apps are running.\nWith --watch, keep polling at --interval until interrupted.\nWith --json, every poll prints one JSON document.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := openLoaded(ctx)
		if err != nil {
			return err
		}
		defer closeApp(app)

		if !statusWatch {
			return reportStatus(ctx, app.Session)
		}

		interval := watchInterval(statusInterval, app.Config)
		if !jsonFlag {
			fmt.Printf("Watching running apps (interval: %s, Ctrl+C to stop)\n", interval)
		}
		return watchStatus(ctx, app.Session, interval)
	},
}

// watchInterval is the --interval flag when set, else the configured
// poll interval.
func watchInterval(flag time.Duration, cfg *config.Config) time.Duration {
	if flag > 0 {
		return flag
	}
	if cfg != nil && cfg.Runtime.PollInterval > 0 {
		return cfg.Runtime.PollInterval
	}
	return reconcile.DefaultPollInterval
}

// watchStatus reports once per interval until ctx is cancelled.
func watchStatus(ctx context.Context, session *launcher.Session, interval time.Duration) error {
	if interval <= 0 {
		interval = reconcile.DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := reportStatus(ctx, session); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if !jsonFlag {
			fmt.Println()
		}
	}
}

func reportStatus(ctx context.Context, session *launcher.Session) error {
	polling := session.Loop().Active()
	if polling {
		if err := session.Loop().PollOnce(ctx); err != nil {
			return fmt.Errorf("failed to inspect processes: %w", err)
		}
	}

	summary := session.Summary()
	entries := session.RuntimeView()
	if jsonFlag {
		return printJSON(buildStatusJSON(polling, summary, entries, statusAll))
	}
	if statusWatch {
		fmt.Printf("  %s\n", time.Now().Format("15:04:05"))
	}
	printRuntime(polling, summary, entries, statusAll)
	return nil
}

func init() {
	statusCmd.Flags().BoolVarP(&statusWatch, "watch", "w", false, "Keep polling until interrupted")
	statusCmd.Flags().DurationVar(&statusInterval, "interval", 0, "Poll interval for --watch (default: runtime.poll_interval from config)")
	statusCmd.Flags().BoolVarP(&statusAll, "all", "a", false, "Include stopped apps")
}
