package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func (a *app) workspaceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "ws",
		Aliases: []string{"workspace"},
		Short:   "Manage workspaces",
	}
	var owner string
	newCmd := &cobra.Command{
		Use:   "new <name>",
		Short: "Create a workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.run(ctx, false, func(s *session) error {
				if owner == "" {
					owner = userName()
				}
				w, err := s.CreateWorkspace(ctx, args[0], owner)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), w.ID)
				return err
			})
		},
	}
	newCmd.Flags().StringVar(&owner, "owner", "", "Owner; defaults to $USER")
	cmd.AddCommand(
		&cobra.Command{
			Use:   "ls",
			Short: "List workspaces",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()
				return a.run(ctx, false, func(s *session) error {
					ws, err := s.LoadWorkspaces(ctx)
					if err != nil {
						return err
					}
					tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
					for _, w := range ws {
						fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", w.ID, w.Name, w.OwnerID, w.CreatedAt.Format("2006-01-02"))
					}
					return tw.Flush()
				})
			},
		},
		newCmd,
		&cobra.Command{
			Use:   "rename <workspace> <name>",
			Short: "Rename a workspace",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()
				return a.run(ctx, false, func(s *session) error {
					ws, err := s.LoadWorkspaces(ctx)
					if err != nil {
						return err
					}
					w, err := pickWorkspace(ws, args[0])
					if err != nil {
						return err
					}
					return s.RenameWorkspace(ctx, w.ID, args[1])
				})
			},
		},
		&cobra.Command{
			Use:   "rm <workspace>",
			Short: "Delete a workspace with all its pages",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()
				return a.run(ctx, false, func(s *session) error {
					ws, err := s.LoadWorkspaces(ctx)
					if err != nil {
						return err
					}
					w, err := pickWorkspace(ws, args[0])
					if err != nil {
						return err
					}
					return s.DeleteWorkspace(ctx, w.ID)
				})
			},
		},
	)
	return cmd
}
