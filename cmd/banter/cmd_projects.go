package main

import (
	"BanterStudio/internal/project"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newProjectsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "projects",
		Aliases: []string{"p"},
		Short:   "Manage projects (list, new, show, rename, delete)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(
		newProjectsListCommand(a),
		newProjectsNewCommand(a),
		newProjectsShowCommand(a),
		newProjectsRenameCommand(a),
		newProjectsDeleteCommand(a),
	)
	return cmd
}

func newProjectsListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects, most recently modified first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sums, err := a.store.RefreshSummaries(cmd.Context())
			if err != nil {
				return err
			}
			printSummaries(cmd.OutOrStdout(), sums)
			return nil
		},
	}
}

func newProjectsNewCommand(a *app) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create a project with default speakers and voices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if _, err := a.store.CreateProject(ctx); err != nil {
				return err
			}
			if name != "" {
				if err := a.store.RenameProject(ctx, name); err != nil {
					return err
				}
			}
			p := a.store.Project()
			fmt.Fprintf(cmd.OutOrStdout(), "Created %q (%s)\n", p.DisplayName, p.Key())
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "Project name (default New_Project_<digits>)")
	return cmd
}

func newProjectsShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the utterances of the project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireProject(cmd.Context()); err != nil {
				return err
			}
			printProject(cmd.OutOrStdout(), a.store.Project())
			return nil
		},
	}
}

func newProjectsRenameCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <new name>",
		Short: "Rename the project and move its document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireProject(cmd.Context()); err != nil {
				return err
			}
			old := a.store.Project().DisplayName
			if err := a.store.RenameProject(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Renamed %q to %q (%s)\n", old, args[0], a.store.Project().Key())
			return nil
		},
	}
}

func newProjectsDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name or key>",
		Short: "Delete a project document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.open(ctx); err != nil {
				return err
			}
			key := storageKey(args[0])
			if err := a.store.DeleteProject(ctx, key); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", key)
			return nil
		},
	}
}

func storageKey(nameOrKey string) string {
	if strings.HasSuffix(nameOrKey, project.Extension) {
		return nameOrKey
	}
	return project.Key(nameOrKey)
}

func printSummaries(w io.Writer, sums []project.Summary) {
	if len(sums) == 0 {
		fmt.Fprintln(w, "No projects")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKEY\tMODIFIED")
	for _, s := range sums {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.DisplayName, s.StorageKey, s.LastModified.Local().Format(time.DateTime))
	}
	_ = tw.Flush()
}

func printProject(w io.Writer, p project.Project) {
	fmt.Fprintf(w, "%s\n  host:  %s [%s]\n  guest: %s [%s]\n\n", p.DisplayName, p.HostName, p.HostVoiceID, p.GuestName, p.GuestVoiceID)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tID\tROLE\tSTATUS\tTEXT")
	for i, u := range p.Utterances {
		status := string(u.Status)
		if u.ErrorMessage != "" {
			status += " (" + u.ErrorMessage + ")"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i+1, u.ID, u.Role, status, truncate(u.Text, 60))
	}
	_ = tw.Flush()
}

func truncate(s string, n int) string {
	r := []rune(strings.ReplaceAll(s, "\n", " "))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-1]) + "…"
}
