package cli

import (
	"github.com/spf13/cobra"

	"github.com/lu-zhengda/launchdeck/internal/news"
)

var newsCmd = &cobra.Command{
	Use:       "news [category]",
	Short:     "Show headlines",
	Long:      "Show headlines for national, technology or lifestyle news.\nWithout an API key or network, bundled headlines are shown.",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{string(news.National), string(news.Technology), string(news.Lifestyle)},
	RunE: func(cmd *cobra.Command, args []string) error {
		var raw string
		if len(args) == 1 {
			raw = args[0]
		}
		category, err := news.ParseCategory(raw)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		app, err := openApp(ctx, false, nil)
		if err != nil {
			return err
		}
		defer closeApp(app)

		res, err := app.Session.News(ctx, category)
		notice := app.Session.NewsNotice(res, err)
		if err != nil && ctx.Err() != nil {
			return err
		}
		if jsonFlag {
			return printJSON(buildNewsJSON(res, notice))
		}
		printNews(res, notice)
		return nil
	},
}
