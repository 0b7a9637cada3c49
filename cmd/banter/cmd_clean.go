package main

import (
	"BanterStudio/internal/service/audio"
	"BanterStudio/internal/service/tts"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newCleanAudioCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean-audio",
		Short: "Remove generated clips that no project references",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			refs, err := audio.Referenced(cmd.Context(), a.gw)
			if err != nil {
				return err
			}
			dir := filepath.Join(a.cfg.ProjectsDir, tts.AudioDir)
			removed := audio.NewCleaner(a.logger).Clean(dir, a.cfg.AudioTTL, a.cfg.DebugMode, refs)
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d clips from %s\n", removed, dir)
			return nil
		},
	}
	cmd.Flags().DurationVar(&a.cfg.AudioTTL, "ttl", a.cfg.AudioTTL, "Only remove clips older than this")
	return cmd
}
