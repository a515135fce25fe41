package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lu-zhengda/launchdeck/internal/apps"
	"github.com/lu-zhengda/launchdeck/internal/launcher"
)

var launchWait time.Duration

const launchWaitStep = 500 * time.Millisecond

var launchCmd = &cobra.Command{
	Use:   "launch <app>",
	Short: "Launch an app by id or name",
	Long:  "Launch an app by id, exact name, or unique name prefix.\nOn desktop, --wait polls until the app shows as running.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := openLoaded(ctx)
		if err != nil {
			return err
		}
		defer closeApp(app)

		// A one-shot command has no second activation to confirm with.
		app.Session.SetMode(apps.ModeNormal)

		target, err := findApp(app.Session, args[0])
		if err != nil {
			return err
		}

		out, launchErr := app.Session.Launch(ctx, target)
		status := ""
		if launchErr == nil && launchWait > 0 && app.Session.Loop().Active() {
			status = string(waitRunning(ctx, app.Session, target, launchWait))
		}

		if jsonFlag {
			if err := printJSON(launchJSON{
				Version:   version,
				Timestamp: time.Now().UTC(),
				AppID:     target.ID,
				Name:      target.Name,
				Launched:  out.Launched,
				Status:    status,
				Message:   out.Message,
			}); err != nil {
				return err
			}
			return launchErr
		}

		if launchErr != nil {
			return launchErr
		}
		fmt.Printf("Opened %s\n", target.Name)
		if status != "" {
			fmt.Printf("Status: %s\n", status)
		}
		return nil
	},
}

// waitRunning polls until target runs, its starting marker expires, or
// wait elapses, and returns the last status seen.
func waitRunning(ctx context.Context, session *launcher.Session, target apps.InstalledApp, wait time.Duration) apps.Status {
	deadline := time.NewTimer(wait)
	defer deadline.Stop()
	tick := time.NewTicker(launchWaitStep)
	defer tick.Stop()

	for {
		_ = session.Loop().PollOnce(ctx)
		status := session.Runtime(target).Status
		if status != apps.StatusStarting {
			return status
		}
		select {
		case <-ctx.Done():
			return status
		case <-deadline.C:
			return status
		case <-tick.C:
		}
	}
}

func init() {
	launchCmd.Flags().DurationVar(&launchWait, "wait", 0, "Wait up to this long for the app to show as running (desktop only)")
}
