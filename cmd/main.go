package main

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/jturner86/lzm/internal/app"
	"github.com/jturner86/lzm/internal/config"
	"github.com/jturner86/lzm/internal/engine"
	"github.com/jturner86/lzm/internal/gitprobe"
	"github.com/jturner86/lzm/internal/logging"
	"github.com/jturner86/lzm/internal/scan"
	"github.com/jturner86/lzm/internal/store"
	"github.com/jturner86/lzm/internal/watch"
)

// Build-time variables injected via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := buildRootCmd()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "lzm",
		Short: "Browse your git repositories and jump into lazygit",
		Long: `lzm scans a base directory for git working copies, shows each one's
branch, working-tree state, and ahead/behind counts in a sortable table,
and launches lazygit in the selected repository.

Metadata is probed concurrently in the background and cached across
restarts, so the table is useful immediately even for hundreds of repos.`,
		RunE:          runApp,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"lzm %s\n  commit:  %s\n  built:   %s\n  go:      %s\n  os/arch: %s/%s\n",
		version, commit, date, runtime.Version(), runtime.GOOS, runtime.GOARCH,
	))

	rootCmd.AddCommand(buildVersionCmd())
	rootCmd.AddCommand(buildCompletionCmd())

	rootCmd.Flags().StringP("path", "p", "", "Base directory to scan (overrides config)")

	return rootCmd
}

func runApp(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if basePath, _ := cmd.Flags().GetString("path"); basePath != "" {
		cfg.BaseDir = basePath
	}

	dir, err := store.Dir()
	if err != nil {
		return err
	}
	log := logging.New(dir, cfg.LogLevel)
	log.Info().Str("version", version).Str("base", cfg.BaseDir).Msg("starting lzm")

	st := store.Open(dir, log)
	repos := scan.Scan(cfg.BaseDir, st, log)
	log.Info().Int("repos", len(repos)).Msg("scan complete")

	// Probe hard errors flow through this channel into the update loop's
	// error console. Buffered so a burst of failing repos cannot stall
	// the probe workers behind a slow repaint.
	errCh := make(chan string, 64)
	prober := gitprobe.New(log,
		gitprobe.WithTimeout(cfg.ProbeTimeout),
		gitprobe.WithReporter(func(msg string) { errCh <- msg }),
	)
	eng := engine.New(prober, st, log, cfg.MaxConcurrent)

	// The watcher is best-effort: metadata stays refreshable by hand even
	// when inotify is unavailable.
	var watcher *watch.Watcher
	if w, watchErr := watch.New(cfg.Debounce, log); watchErr == nil {
		for _, r := range repos {
			if addErr := w.Add(r.Path); addErr != nil {
				log.Warn().Str("repo", r.Name).Err(addErr).Msg("cannot watch repository")
			}
		}
		w.Start()
		defer w.Close()
		watcher = w
	} else {
		log.Warn().Err(watchErr).Msg("filesystem watcher unavailable")
	}

	model := app.New(cfg, log, st, eng, watcher, errCh, repos)

	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err = p.Run()
	return err
}

// buildVersionCmd creates the `lzm version` subcommand supporting --json.
func buildVersionCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(_ *cobra.Command, _ []string) error {
			info := map[string]string{
				"version": version,
				"commit":  commit,
				"date":    date,
				"go":      runtime.Version(),
				"os":      runtime.GOOS,
				"arch":    runtime.GOARCH,
			}
			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}
			fmt.Printf("lzm %s\n", version)
			fmt.Printf("  commit:  %s\n", commit)
			fmt.Printf("  built:   %s\n", date)
			fmt.Printf("  go:      %s\n", runtime.Version())
			fmt.Printf("  os/arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	return cmd
}

// buildCompletionCmd creates the `lzm completion` subcommand.
func buildCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:                   "completion [bash|zsh|fish|powershell]",
		Short:                 "Generate shell completion scripts",
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
			default:
				return fmt.Errorf("unsupported shell: %s", args[0])
			}
		},
	}
}
