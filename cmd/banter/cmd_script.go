package main

import (
	"BanterStudio/internal/project"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newImportCommand(a *app) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "import <script.json>",
		Short: "Import a dialogue_list script",
		Long: "Import a {\"dialogue_list\": [...]} script. Without --project a new project is created;\n" +
			"with --project the utterances of that project are replaced.",
		Example: `banter import episode.json --name "Episode 1"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if a.projectName != "" {
				if err := a.requireProject(ctx); err != nil {
					return err
				}
			}
			if err := a.store.ImportScript(ctx, data, name); err != nil {
				return err
			}
			p := a.store.Project()
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d utterances into %q (%s)\n", len(p.Utterances), p.DisplayName, p.Key())
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "Project name (default Import_<digits>)")
	return cmd
}

func newUtterancesCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "utterances",
		Aliases: []string{"u"},
		Short:   "Edit utterances of the project (add, set, rm)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	var role, text string
	add := &cobra.Command{
		Use:   "add",
		Short: "Append an utterance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := a.requireProject(ctx); err != nil {
				return err
			}
			r, err := parseRole(role)
			if err != nil {
				return err
			}
			u, err := a.store.AddUtterance(r)
			if err != nil {
				return err
			}
			if text != "" {
				if err := a.store.UpdateContent(u.ID, text); err != nil {
					return err
				}
			}
			if err := a.store.SaveProject(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), u.ID)
			return nil
		},
	}
	add.Flags().StringVarP(&role, "role", "r", string(project.RoleHost), "Speaker role: host|guest")
	add.Flags().StringVarP(&text, "text", "t", "", "Utterance text")

	set := &cobra.Command{
		Use:   "set <id> <text>",
		Short: "Replace the text of an utterance; its audio is discarded",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.requireProject(ctx); err != nil {
				return err
			}
			if err := a.store.UpdateContent(args[0], args[1]); err != nil {
				return err
			}
			return a.store.SaveProject(ctx)
		},
	}

	rm := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete an utterance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.requireProject(ctx); err != nil {
				return err
			}
			if err := a.store.DeleteUtterance(args[0]); err != nil {
				return err
			}
			return a.store.SaveProject(ctx)
		},
	}

	cmd.AddCommand(add, set, rm)
	return cmd
}

func parseRole(s string) (project.Role, error) {
	r := project.Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q (host|guest)", s)
	}
	return r, nil
}

func newVoiceCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "voice <host|guest> <voice id>",
		Short:   "Assign a voice to a speaker role",
		Example: `banter voice guest zh_male_huolijieshuo`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := parseRole(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := a.requireProject(ctx); err != nil {
				return err
			}
			if err := a.store.SetVoice(ctx, role, args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recent voices: %v\n", a.store.Project().RecentVoiceIDs)
			return nil
		},
	}
}

func newSpeakerCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "speaker <host|guest> <name>",
		Short: "Rename a speaker in all of its utterances",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := parseRole(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := a.requireProject(ctx); err != nil {
				return err
			}
			if role == project.RoleHost {
				return a.store.SetHostName(ctx, args[1])
			}
			return a.store.SetGuestName(ctx, args[1])
		},
	}
}
