package main

import (
	"BanterStudio/internal/service/tts/google"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// newListVoicesCommand печатает голоса Google TTS для языка из конфигурации или --lang.
func newListVoicesCommand(a *app) *cobra.Command {
	var lang string
	cmd := &cobra.Command{
		Use:   "list-voices",
		Short: "List Google Text-to-Speech voices for a language",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Если ENV пуст, но в конфиге указан путь — используем его для ADC.
			if os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" && a.cfg.GoogleTTS.CredentialsPath != "" {
				_ = os.Setenv("GOOGLE_APPLICATION_CREDENTIALS", a.cfg.GoogleTTS.CredentialsPath)
			}
			ctx, cancel := context.WithTimeoutCause(cmd.Context(), 15*time.Second, errors.New("google tts voices request timeout"))
			defer cancel()

			voices, err := google.New(a.cfg.GoogleTTS, a.logger).Voices(ctx, lang)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tLANGUAGES\tGENDER\tRATE")
			for _, v := range voices {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", v.Name, strings.Join(v.Languages, ","), v.Gender, v.SampleRate)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&lang, "lang", "", "Language code (default GOOGLE_TTS_LANGUAGE)")
	return cmd
}
