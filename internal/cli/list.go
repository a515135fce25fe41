package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lu-zhengda/launchdeck/internal/apps"
	"github.com/lu-zhengda/launchdeck/internal/prefs"
)

var (
	listGroup string
	listQuery string
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List apps by group",
	Long:    "List apps in launcher order: pinned apps first, then each group.\n--query filters by name or package; fuzzy matching kicks in when nothing matches literally.",
	RunE: func(cmd *cobra.Command, args []string) error {
		active := prefs.AllGroups
		if listGroup != "" && listGroup != prefs.AllGroups {
			g, err := apps.ParseGroup(listGroup)
			if err != nil {
				return err
			}
			active = string(g)
		}

		app, err := openLoaded(cmd.Context())
		if err != nil {
			return err
		}
		defer closeApp(app)

		layout := app.Session.LayoutFor(listQuery)
		if jsonFlag {
			return printJSON(buildAppsJSON(app.Session.Result(), layout, active))
		}
		if app.Session.Result().Fallback {
			fmt.Println("Live discovery failed; showing the built-in app list.")
		}
		printAppList(layout, active)
		return nil
	},
}

func init() {
	listCmd.Flags().StringVarP(&listGroup, "group", "g", "", "Only show one group (office, development, system, other)")
	listCmd.Flags().StringVarP(&listQuery, "query", "q", "", "Filter by name or package")
}
