package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Digital-Shane/episode-tidy/internal/config"
	"github.com/Digital-Shane/episode-tidy/internal/engine"
	"github.com/Digital-Shane/episode-tidy/internal/log"
	"github.com/Digital-Shane/episode-tidy/internal/tui"
	"github.com/Digital-Shane/episode-tidy/internal/tui/theme"
	"github.com/Digital-Shane/episode-tidy/internal/tvdb"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Rename episode files in a directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRename()
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRename() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.HasCredentials() {
		return fmt.Errorf("no TVDB credentials configured; set tvdb_api_key in the config file")
	}

	log.Initialize(cfg.EnableLogging, cfg.LogRetentionDays)
	if err := log.StartSession("run", os.Args[2:]); err != nil {
		return err
	}
	defer func() {
		if err := log.EndSession(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to save session log: %v\n", err)
		}
	}()

	client := tvdb.NewClient(cfg.Credentials(), tvdb.Options{
		RequestsPerSec: cfg.RequestsPerSec,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Nothing proceeds without a valid session; surface auth failures
	// before any file is touched.
	if err := client.Login(ctx); err != nil {
		return err
	}

	eng := engine.New(engine.Config{
		Client:       client,
		Dir:          dir,
		WorkerCount:  workerCount(cfg, client),
		Blacklist:    cfg.BlacklistExtensions,
		Template:     cfg.EpisodeTemplate,
		PreserveTags: cfg.PreserveTags,
	})

	if instant {
		return runInstant(ctx, eng)
	}

	model := tui.NewRunProgressModel(eng, theme.Default())
	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		return err
	}
	if err := model.FatalErr(); err != nil {
		return err
	}
	summary := model.Summary()
	if summary.Failed > 0 {
		return fmt.Errorf("%d files failed", summary.Failed)
	}
	return nil
}

func runInstant(ctx context.Context, eng *engine.Engine) error {
	result := eng.RunToCompletion(ctx)
	for _, outcome := range result.Outcomes {
		fmt.Println(outcome.Describe())
	}
	if result.FatalErr != nil {
		return result.FatalErr
	}
	if count := result.ErrorCount(); count > 0 {
		return fmt.Errorf("%d errors occurred during renaming", count)
	}
	return nil
}

// workerCount keeps resolution concurrency below the client's rate limit so
// the limiter stays the single throttling point.
func workerCount(cfg *config.Config, client *tvdb.Client) int {
	count := cfg.WorkerCount
	if workers > 0 {
		count = workers
	}
	if limit := int(client.Limit()); limit > 1 && count >= limit {
		count = limit - 1
	}
	if count < 1 {
		count = 1
	}
	return count
}
