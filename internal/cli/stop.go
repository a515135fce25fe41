package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lu-zhengda/launchdeck/internal/apps"
)

var (
	stopRecommended bool
	stopYes         bool
)

var stopCmd = &cobra.Command{
	Use:   "stop [app...]",
	Short: "Force-stop running apps",
	Long:  "Force-stop desktop apps by id or name.\nWith --recommended, stop every app the close policy flags.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 && !stopRecommended {
			return fmt.Errorf("name at least one app, or pass --recommended")
		}

		ctx := cmd.Context()
		app, err := openLoaded(ctx)
		if err != nil {
			return err
		}
		defer closeApp(app)

		session := app.Session
		if !session.Loop().Active() {
			return fmt.Errorf("stopping apps is only supported on desktop platforms")
		}
		// The process list is needed before anything can be stopped.
		if err := session.Loop().PollOnce(ctx); err != nil {
			return fmt.Errorf("failed to inspect processes: %w", err)
		}

		var targets []apps.InstalledApp
		if stopRecommended {
			targets = session.Recommended()
		}
		for _, ref := range args {
			target, err := findApp(session, ref)
			if err != nil {
				return err
			}
			targets = append(targets, target)
		}
		targets = dedupeApps(targets)

		if len(targets) == 0 {
			if jsonFlag {
				return printJSON(buildStopJSON(session.Stop(ctx, nil), ""))
			}
			fmt.Println("Nothing to stop.")
			return nil
		}

		if !jsonFlag && !stopYes {
			fmt.Printf("Will force-stop %d app(s):\n", len(targets))
			for _, t := range targets {
				line := "  " + t.Name
				if reason := session.Runtime(t).RecommendationReason; reason != "" {
					line += " (" + reason + ")"
				}
				fmt.Println(line)
			}
			if !confirmAction("Proceed?") {
				fmt.Println("Cancelled.")
				return nil
			}
		}

		report := session.Stop(ctx, apps.IDs(targets))
		title, message := session.StopNotice(report)
		if jsonFlag {
			return printJSON(buildStopJSON(report, message))
		}
		printStopReport(report, title, message)
		return nil
	},
}

func dedupeApps(items []apps.InstalledApp) []apps.InstalledApp {
	seen := make(map[string]bool, len(items))
	out := items[:0:0]
	for _, a := range items {
		if !seen[a.ID] {
			seen[a.ID] = true
			out = append(out, a)
		}
	}
	return out
}

func init() {
	stopCmd.Flags().BoolVar(&stopRecommended, "recommended", false, "Stop every app recommended for closing")
	stopCmd.Flags().BoolVarP(&stopYes, "yes", "y", false, "Skip the confirmation prompt")
}
