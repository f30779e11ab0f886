package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/maruel/pagetree/internal/gateway/filegw"
	"github.com/maruel/pagetree/internal/model"
)

func (a *app) blocksCmd() *cobra.Command {
	var markdown bool
	cmd := &cobra.Command{
		Use:   "blocks <page>",
		Short: "Print the content of a page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.run(ctx, true, func(s *session) error {
				p, err := resolvePage(s.Store, args[0])
				if err != nil {
					return err
				}
				if markdown {
					flat, err := s.gw.GetBlocks(ctx, p.ID)
					if err != nil {
						return err
					}
					md, err := filegw.RenderPage(p, flat)
					if err != nil {
						return err
					}
					_, err = cmd.OutOrStdout().Write(md)
					return err
				}
				e, err := s.OpenPage(ctx, p.ID)
				if err != nil {
					return err
				}
				err = printBlocks(cmd.OutOrStdout(), e.Blocks(), 0)
				if err2 := e.Close(ctx); err == nil {
					err = err2
				}
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&markdown, "markdown", false, "Render as markdown with front matter")
	return cmd
}

func printBlocks(w io.Writer, blocks []*model.Block, depth int) error {
	for _, b := range blocks {
		if _, err := fmt.Fprintf(w, "%s%-14s %s  %s\n", strings.Repeat("  ", depth), b.Type, b.Content, b.ID); err != nil {
			return err
		}
		if err := printBlocks(w, b.Children, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) addBlockCmd() *cobra.Command {
	var parent string
	var index int
	cmd := &cobra.Command{
		Use:   "add-block <page> <type> [content]",
		Short: "Append a block to a page",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			typ := model.BlockType(args[1])
			if !typ.IsValid() {
				return fmt.Errorf("unknown block type %q", args[1])
			}
			content := ""
			if len(args) == 3 {
				content = args[2]
			}
			return a.run(ctx, true, func(s *session) error {
				p, err := resolvePage(s.Store, args[0])
				if err != nil {
					return err
				}
				e, err := s.OpenPage(ctx, p.ID)
				if err != nil {
					return err
				}
				b, err := e.CreateBlock(ctx, typ, content, parent, index)
				if err == nil {
					_, err = fmt.Fprintln(cmd.OutOrStdout(), b.ID)
				}
				if err2 := e.Close(ctx); err == nil {
					err = err2
				}
				return err
			})
		},
	}
	cmd.Flags().StringVar(&parent, "parent", "", "Parent block ID")
	cmd.Flags().IntVarP(&index, "index", "i", -1, "Position among the siblings; negative appends")
	return cmd
}
