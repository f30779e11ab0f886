package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/maruel/pagetree/internal/model"
	"github.com/maruel/pagetree/internal/workspace"
)

func (a *app) lsCmd() *cobra.Command {
	var archived, favourites bool
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "Print the page tree of the workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.run(ctx, true, func(s *session) error {
				w := cmd.OutOrStdout()
				switch {
				case favourites:
					for _, p := range s.Favourites() {
						fmt.Fprintln(w, pageLine(p))
					}
					return nil
				case archived:
					for _, p := range s.Archived() {
						fmt.Fprintln(w, pageLine(p))
					}
					return nil
				}
				return printTree(w, s.Store)
			})
		},
	}
	cmd.Flags().BoolVar(&archived, "archived", false, "Only list archived pages")
	cmd.Flags().BoolVar(&favourites, "favourites", false, "Only list favourite pages")
	return cmd
}

// printTree writes the page tree, one indented page per line. Archived pages
// are listed with their subtree.
func printTree(w io.Writer, s *workspace.Store) error {
	var err error
	s.Walk(func(p *model.Page, depth int) bool {
		_, err = fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", depth), pageLine(p))
		return err == nil
	})
	return err
}

func pageLine(p *model.Page) string {
	var b strings.Builder
	if p.Icon != "" {
		b.WriteString(p.Icon)
		b.WriteByte(' ')
	}
	b.WriteString(p.Title)
	if p.IsDatabase {
		b.WriteString(" [db]")
	}
	if p.IsFavourite {
		b.WriteString(" *")
	}
	if p.IsArchived {
		b.WriteString(" (archived)")
	}
	b.WriteString("  ")
	b.WriteString(p.ID)
	return b.String()
}

func (a *app) newPageCmd() *cobra.Command {
	var parent string
	cmd := &cobra.Command{
		Use:   "new [title]",
		Short: "Create a page",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.run(ctx, true, func(s *session) error {
				parentID, err := resolveParent(s.Store, parent)
				if err != nil {
					return err
				}
				title := ""
				if len(args) == 1 {
					title = args[0]
				}
				p, err := s.CreatePage(ctx, parentID, title)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), p.ID)
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&parent, "parent", "p", "", "Parent page ID or title")
	return cmd
}

func (a *app) mvCmd() *cobra.Command {
	var parent string
	var index int
	cmd := &cobra.Command{
		Use:   "mv <page>",
		Short: "Move a page and its subtree",
		Long:  "Moves a page under --parent (the workspace root when empty) at --index among its new siblings. A negative index appends.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.run(ctx, true, func(s *session) error {
				p, err := resolvePage(s.Store, args[0])
				if err != nil {
					return err
				}
				parentID, err := resolveParent(s.Store, parent)
				if err != nil {
					return err
				}
				return s.MovePage(ctx, p.ID, parentID, index)
			})
		},
	}
	cmd.Flags().StringVarP(&parent, "parent", "p", "", "New parent page ID or title")
	cmd.Flags().IntVarP(&index, "index", "i", -1, "Position among the new siblings")
	return cmd
}

// pageCmd builds a command acting on one page.
func (a *app) pageCmd(use, short string, fn func(cmd *cobra.Command, s *session, p *model.Page) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <page>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), true, func(s *session) error {
				p, err := resolvePage(s.Store, args[0])
				if err != nil {
					return err
				}
				return fn(cmd, s, p)
			})
		},
	}
}

func (a *app) rmCmd() *cobra.Command {
	return a.pageCmd("rm", "Delete a page and its subtree", func(cmd *cobra.Command, s *session, p *model.Page) error {
		return s.DeletePage(cmd.Context(), p.ID)
	})
}

func (a *app) dupCmd() *cobra.Command {
	return a.pageCmd("dup", "Duplicate a page next to it", func(cmd *cobra.Command, s *session, p *model.Page) error {
		c, err := s.DuplicatePage(cmd.Context(), p.ID)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), c.ID)
		return err
	})
}

func (a *app) favCmd() *cobra.Command {
	return a.pageCmd("fav", "Toggle the favourite flag of a page", func(cmd *cobra.Command, s *session, p *model.Page) error {
		if err := s.ToggleFavourite(cmd.Context(), p.ID); err != nil {
			return err
		}
		if q, ok := s.Page(p.ID); ok && q.IsFavourite == p.IsFavourite {
			return fmt.Errorf("failed to toggle favourite of %s", p.ID)
		}
		return nil
	})
}

func (a *app) archiveCmd() *cobra.Command {
	return a.pageCmd("archive", "Move a page to the trash", func(cmd *cobra.Command, s *session, p *model.Page) error {
		return s.ArchivePage(cmd.Context(), p.ID)
	})
}

func (a *app) restoreCmd() *cobra.Command {
	return a.pageCmd("restore", "Take a page out of the trash", func(cmd *cobra.Command, s *session, p *model.Page) error {
		return s.RestorePage(cmd.Context(), p.ID)
	})
}

func (a *app) findCmd() *cobra.Command {
	var opts workspace.SearchOptions
	cmd := &cobra.Command{
		Use:   "find <query>",
		Short: "Search titles, opened content and row values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Query = args[0]
			return a.run(cmd.Context(), true, func(s *session) error {
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				for _, r := range s.Search(opts) {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.PageID, r.Kind, r.Title, r.Preview)
				}
				return tw.Flush()
			})
		},
	}
	f := cmd.Flags()
	f.IntVarP(&opts.Limit, "limit", "n", 0, "Maximum number of results")
	f.BoolVar(&opts.MatchTitle, "title", false, "Match titles")
	f.BoolVar(&opts.MatchFields, "fields", false, "Match row values")
	f.BoolVar(&opts.Archived, "archived", false, "Include archived pages")
	return cmd
}
