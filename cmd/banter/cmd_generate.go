package main

import (
	"BanterStudio/internal/service/notify"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newGenerateCommand(a *app) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "generate [id...]",
		Short: "Synthesize utterances",
		Long: "Synthesize the given utterances, or with --all (or no ids) every utterance\n" +
			"that is not generated yet, one at a time with a cooldown between requests.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.requireProject(ctx); err != nil {
				return err
			}
			p, err := a.pipeline()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if all || len(args) == 0 {
				res, err := p.GenerateAll(ctx)
				fmt.Fprintf(out, "Generated %d of %d (failed %d, no speech %d, skipped %d)\n",
					res.Succeeded, res.Total, res.Failed, res.Rejected, res.Skipped)
				if res.Total > 0 && a.cfg.NotificationSoundPath != "" {
					_ = notify.NewSoundNotifier(a.logger, a.cfg.NotificationSoundPath).PlayDone(ctx)
				}
				return err
			}

			var failed []error
			for _, id := range args {
				if err := p.GenerateOne(ctx, id); err != nil {
					fmt.Fprintf(out, "%s: %v\n", id, err)
					failed = append(failed, err)
					continue
				}
				u, _ := a.store.Utterance(id)
				fmt.Fprintf(out, "%s: %s (%.1fs)\n", id, u.AudioLocation, u.Duration)
			}
			return errors.Join(failed...)
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Generate every pending utterance")
	return cmd
}
