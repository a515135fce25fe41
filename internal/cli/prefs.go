package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lu-zhengda/launchdeck/internal/apps"
	"github.com/lu-zhengda/launchdeck/internal/launcher"
	"github.com/lu-zhengda/launchdeck/internal/prefs"
)

var groupClear bool

var pinCmd = &cobra.Command{
	Use:   "pin <app>",
	Short: "Pin or unpin an app",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openLoaded(cmd.Context())
		if err != nil {
			return err
		}
		defer closeApp(app)

		target, err := findApp(app.Session, args[0])
		if err != nil {
			return err
		}
		pinned, err := app.Session.TogglePin(target.ID)
		if err != nil {
			return err
		}
		if jsonFlag {
			return printJSON(pinJSON{Version: version, AppID: target.ID, Pinned: pinned})
		}
		if pinned {
			fmt.Printf("Pinned %s\n", target.Name)
		} else {
			fmt.Printf("Unpinned %s\n", target.Name)
		}
		return nil
	},
}

var groupCmd = &cobra.Command{
	Use:   "group <app> [group]",
	Short: "Move an app to another group",
	Long:  "Move an app to office, development, system or other.\nWith --clear, go back to the detected group.",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !groupClear && len(args) != 2 {
			return fmt.Errorf("name a group, or pass --clear")
		}
		var group apps.GroupKey
		if !groupClear {
			g, err := apps.ParseGroup(args[1])
			if err != nil {
				return err
			}
			group = g
		}

		app, err := openLoaded(cmd.Context())
		if err != nil {
			return err
		}
		defer closeApp(app)

		target, err := findApp(app.Session, args[0])
		if err != nil {
			return err
		}
		if groupClear {
			app.Session.ClearGroup(target.ID)
			group = app.Session.GroupOf(target)
		} else if err := app.Session.SetGroup(target.ID, group); err != nil {
			return err
		}

		if jsonFlag {
			return printJSON(groupChangeJSON{Version: version, AppID: target.ID, Group: group, Cleared: groupClear})
		}
		fmt.Printf("%s is in %s\n", target.Name, group.Label())
		return nil
	},
}

var orderCmd = &cobra.Command{
	Use:   "order",
	Short: "Change the app order",
}

var orderMoveCmd = &cobra.Command{
	Use:   "move <app> <before-app>",
	Short: "Move an app to the position of another",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openLoaded(cmd.Context())
		if err != nil {
			return err
		}
		defer closeApp(app)

		from, err := findApp(app.Session, args[0])
		if err != nil {
			return err
		}
		to, err := findApp(app.Session, args[1])
		if err != nil {
			return err
		}
		moved := app.Session.Move(from.ID, to.ID)
		return printOrder(app.Session, moved, fmt.Sprintf("Moved %s to %s's position", from.Name, to.Name))
	},
}

var orderResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore discovery order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openLoaded(cmd.Context())
		if err != nil {
			return err
		}
		defer closeApp(app)

		app.Session.ResetOrder()
		return printOrder(app.Session, true, "Order reset")
	},
}

func printOrder(session *launcher.Session, moved bool, msg string) error {
	ordered := session.LayoutFor("").Ordered(prefs.AllGroups)
	if jsonFlag {
		return printJSON(orderJSON{Version: version, Moved: moved, Order: apps.IDs(ordered)})
	}
	if !moved {
		fmt.Println("Order unchanged.")
		return nil
	}
	fmt.Println(msg)
	return nil
}

func init() {
	groupCmd.Flags().BoolVar(&groupClear, "clear", false, "Use the detected group again")
	orderCmd.AddCommand(orderMoveCmd)
	orderCmd.AddCommand(orderResetCmd)
}
