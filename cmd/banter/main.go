package main

import (
	"BanterStudio/internal/config"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = newRootCommand(cfg).ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// newRootCommand собирает CLI. Флаги пишут прямо в cfg поверх значений из .env и окружения.
func newRootCommand(cfg *config.Config) *cobra.Command {
	a := &app{cfg: cfg}

	cmd := &cobra.Command{
		Use:           "banter",
		Short:         "Two-speaker dialogue projects: script, synthesize, play back, export",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.Context())
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			a.close()
		},
	}

	f := cmd.PersistentFlags()
	f.BoolVar(&cfg.DebugMode, "debug", cfg.DebugMode, "Enable debug logging")
	f.StringVar(&cfg.ProjectsDir, "projects-dir", cfg.ProjectsDir, "Directory with project documents and generated audio")
	f.StringVar(&cfg.StorageBackend, "storage", cfg.StorageBackend, "Project storage backend: files|sqlite")
	f.StringVar(&cfg.SQLitePath, "sqlite-path", cfg.SQLitePath, "SQLite database path (storage=sqlite)")
	f.StringVar(&cfg.TTSService, "tts", cfg.TTSService, "Synthesis service: backend|google|yandex|gemini")
	f.StringVar(&cfg.Backend.URL, "backend-url", cfg.Backend.URL, "Local synthesis/export backend URL")
	f.DurationVar(&cfg.BatchCooldown, "cooldown", cfg.BatchCooldown, "Pause between batch generation requests")
	f.StringVarP(&a.projectName, "project", "p", "", "Project to open (display name or storage key); default is the most recent")

	cmd.AddCommand(
		newProjectsCommand(a),
		newImportCommand(a),
		newUtterancesCommand(a),
		newSpeakerCommand(a),
		newVoiceCommand(a),
		newListVoicesCommand(a),
		newGenerateCommand(a),
		newPlayCommand(a),
		newExportCommand(a),
		newServeCommand(a),
		newCleanAudioCommand(a),
	)
	return cmd
}
