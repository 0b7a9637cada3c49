package main

import (
	"BanterStudio/internal/app/exporter"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newExportCommand(a *app) *cobra.Command {
	var (
		output   string
		planOnly bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Merge generated utterances into one audio file",
		Long: "Merge generated utterances into one file with a pause between them.\n" +
			"A .wav output is merged locally, anything else is sent to the backend.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := a.requireProject(ctx); err != nil {
				return err
			}
			ex := a.exporter()
			plan := ex.Plan()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d clips, %.1fs of speech", len(plan.Files), plan.Duration)
			if plan.Skipped > 0 {
				fmt.Fprintf(out, ", %d of %d utterances without audio will be skipped", plan.Skipped, plan.Total)
			}
			fmt.Fprintln(out)
			if planOnly {
				return nil
			}

			dest := output
			if dest == "" {
				dest = exporter.DefaultFileName(a.store.Project())
			}
			abs, err := filepath.Abs(dest)
			if err != nil {
				return err
			}
			path, err := ex.Export(ctx, abs)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Exported to %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default <project>_Full.mp3 in the current directory)")
	cmd.Flags().BoolVar(&planOnly, "plan", false, "Only print what would be exported")
	return cmd
}
