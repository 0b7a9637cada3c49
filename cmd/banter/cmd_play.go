package main

import (
	"BanterStudio/internal/app/playback"
	"fmt"
	"sync"

	"github.com/spf13/cobra"
)

func newPlayCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "play",
		Short: "Play generated utterances in order (Ctrl+C stops)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := a.requireProject(ctx); err != nil {
				return err
			}
			seq := a.sequencer()
			out := cmd.OutOrStdout()
			p := a.store.Project()

			done := make(chan struct{})
			var (
				once sync.Once
				mu   sync.Mutex
				last string
			)
			seq.OnChange(func(st playback.State) {
				mu.Lock()
				defer mu.Unlock()
				if st.CurrentID != "" && st.CurrentID != last {
					last = st.CurrentID
					if i := p.Index(st.CurrentID); i >= 0 {
						u := p.Utterances[i]
						fmt.Fprintf(out, "[%d/%d] %s: %s\n", st.Index+1, st.Total, u.SpeakerName, truncate(u.Text, 70))
					}
				}
				if !st.Playing && st.CurrentID == "" {
					once.Do(func() { close(done) })
				}
			})

			if err := seq.Toggle(); err != nil {
				return err
			}
			select {
			case <-done:
			case <-ctx.Done():
				seq.Stop()
			}
			return nil
		},
	}
}
