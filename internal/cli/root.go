package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lu-zhengda/launchdeck/internal/apps"
	"github.com/lu-zhengda/launchdeck/internal/config"
	"github.com/lu-zhengda/launchdeck/internal/launcher"
	"github.com/lu-zhengda/launchdeck/internal/logging"
	"github.com/lu-zhengda/launchdeck/internal/metrics"
	"github.com/lu-zhengda/launchdeck/internal/tui"
)

var (
	jsonFlag     bool
	configPath   string
	logLevelFlag string
	localeFlag   string
	modeFlag     string
	appConfig    *config.Config

	// appDeps lets tests swap the platform, storage and news collaborators.
	appDeps launcher.Deps

	// Set via ldflags at build time.
	version = "dev"
)

var rootCmd = &cobra.Command{
	Use:     "launchdeck",
	Short:   "A cross-platform app launcher",
	Long:    "launchdeck discovers installed apps, groups and orders them, launches them and keeps an eye on what is running.\nLaunch without subcommands for interactive TUI mode.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Flags().Changed("version") {
			appConfig = config.Default()
			return nil
		}

		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if logLevelFlag != "" {
			cfg.Logging.Level = logLevelFlag
		}
		if localeFlag != "" {
			cfg.UI.Locale = localeFlag
		}
		if modeFlag != "" {
			cfg.UI.Mode = modeFlag
		}
		appConfig = cfg

		for _, w := range appConfig.Validate() {
			fmt.Fprintf(os.Stderr, "warning: %s\n", w.Message)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if shell, _ := cmd.Flags().GetString("generate-completion"); shell != "" {
			switch shell {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			default:
				return fmt.Errorf("unsupported shell: %s (use bash, zsh, or fish)", shell)
			}
		}
		return runTUI(cmd.Context())
	},
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command
// context so watchers and the server shut down cleanly.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("launchdeck %s\n", version))
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default ~/.config/launchdeck/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&localeFlag, "locale", "", "Message language (en, zh-CN)")
	rootCmd.PersistentFlags().StringVar(&modeFlag, "mode", "", "Accessibility mode (normal, elderly, blind)")
	rootCmd.Flags().String("generate-completion", "", "Generate shell completion (bash, zsh, fish)")
	rootCmd.Flags().MarkHidden("generate-completion")
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(launchCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(pinCmd)
	rootCmd.AddCommand(groupCmd)
	rootCmd.AddCommand(orderCmd)
	rootCmd.AddCommand(newsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
}

// RootCmd returns the root cobra command for documentation generation.
func RootCmd() *cobra.Command {
	return rootCmd
}

func currentConfig() *config.Config {
	if appConfig == nil {
		appConfig = config.Default()
	}
	return appConfig
}

// newLogger logs to stderr for commands, or to the log file when stdout
// belongs to the TUI.
func newLogger(toFile bool) (*zap.Logger, error) {
	cfg := currentConfig()
	lc := logging.DefaultConfig()
	if toFile || cfg.Logging.File != "" {
		lc = logging.FileConfig(cfg.Logging.Level, cfg.LogFile())
	}
	lc.Level = cfg.Logging.Level
	lc.Development = cfg.Logging.Development
	return logging.New(lc)
}

// openApp builds a launcher from the loaded config.
func openApp(ctx context.Context, logToFile bool, m *metrics.Metrics) (*launcher.App, error) {
	logger, err := newLogger(logToFile)
	if err != nil {
		return nil, err
	}
	deps := appDeps
	if m != nil {
		deps.Metrics = m
	}
	if deps.Announcer == nil {
		deps.Announcer = launcher.AnnouncerFunc(func(text string) {
			fmt.Fprintln(os.Stderr, text)
		})
	}
	app, err := launcher.Build(ctx, currentConfig(), logger, deps)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return app, nil
}

func closeApp(app *launcher.App) {
	if err := app.Close(); err != nil {
		app.Logger.Warn("failed to close launcher", zap.Error(err))
	}
	_ = app.Logger.Sync()
}

// openLoaded opens the launcher and loads the app list, from cache when
// possible.
func openLoaded(ctx context.Context) (*launcher.App, error) {
	app, err := openApp(ctx, false, nil)
	if err != nil {
		return nil, err
	}
	if _, err := app.Session.Load(ctx, false, nil); err != nil {
		closeApp(app)
		return nil, err
	}
	return app, nil
}

func runTUI(ctx context.Context) error {
	app, err := openApp(ctx, true, nil)
	if err != nil {
		return err
	}
	defer closeApp(app)

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		_ = app.Session.Loop().Run(loopCtx)
	}()

	cfg := currentConfig()
	p := tea.NewProgram(tui.New(ctx, app.Session, tui.Options{
		Columns:     cfg.UI.Columns,
		NewsVisible: cfg.News.APIKey != "",
	}), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

// findApp resolves an id or name against the loaded session.
func findApp(session *launcher.Session, ref string) (apps.InstalledApp, error) {
	app, err := session.Find(ref)
	if err != nil {
		return apps.InstalledApp{}, fmt.Errorf("failed to find app: %w", err)
	}
	return app, nil
}
