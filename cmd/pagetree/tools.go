package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/maruel/pagetree/internal/config"
	"github.com/maruel/pagetree/internal/gateway/filegw"
	"github.com/maruel/pagetree/internal/model"
	"github.com/maruel/pagetree/internal/server"
)

var errNeedsFile = errors.New("only available with the file backend")

func (a *app) schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of the data model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(model.JSONSchema())
		},
	}
}

func (a *app) tokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <subject>",
		Short: "Mint a bearer token signed with server.jwt_secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Server.JWTSecret == "" {
				return errors.New("server.jwt_secret is not set")
			}
			tok, err := server.NewToken([]byte(a.cfg.Server.JWTSecret), args[0], ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Validity of the token")
	return cmd
}

func (a *app) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print the page tree each time another process changes it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if a.cfg.Backend != config.BackendFile {
				return errNeedsFile
			}
			return a.run(ctx, true, func(s *session) error {
				g, ok := s.gw.(*filegw.Gateway)
				if !ok {
					return errNeedsFile
				}
				w := cmd.OutOrStdout()
				if err := printTree(w, s.Store); err != nil {
					return err
				}
				err := g.Watch(ctx, func() {
					if err := s.LoadPages(ctx, s.CurrentWorkspaceID()); err != nil {
						slog.ErrorContext(ctx, "Failed to reload pages", "err", err)
						return
					}
					fmt.Fprintln(w, "---")
					_ = printTree(w, s.Store)
				})
				if err != nil {
					return err
				}
				<-ctx.Done()
				return nil
			})
		},
	}
}

func (a *app) historyCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "history <page>",
		Short: "List the commits touching a page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Backend != config.BackendFile {
				return errNeedsFile
			}
			return a.run(cmd.Context(), true, func(s *session) error {
				g, ok := s.gw.(*filegw.Gateway)
				if !ok {
					return errNeedsFile
				}
				p, err := resolvePage(s.Store, args[0])
				if err != nil {
					return err
				}
				commits, err := g.History(p.ID, n)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				for _, c := range commits {
					h := c.Hash
					if len(h) > 10 {
						h = h[:10]
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", h, c.When.Format(time.DateTime), c.Author, c.Message)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().IntVarP(&n, "limit", "n", 20, "Maximum number of commits")
	return cmd
}

func (a *app) snapshotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot <file>",
		Short: "Write the loaded workspace state as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), true, func(s *session) error {
				return s.SaveState(args[0])
			})
		},
	}
}
