package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/maruel/pagetree/internal/model"
	"github.com/maruel/pagetree/internal/workspace"
)

func (a *app) databaseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "db",
		Aliases: []string{"database"},
		Short:   "Manage databases",
	}
	var parent string
	newCmd := &cobra.Command{
		Use:   "new [title]",
		Short: "Create a database page with the default schema",
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
				p, err := s.CreateDatabase(ctx, parentID, title)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), p.ID)
				return err
			})
		},
	}
	newCmd.Flags().StringVarP(&parent, "parent", "p", "", "Parent page ID or title")

	var options []string
	propCmd := &cobra.Command{
		Use:   "prop <database> <name> <type>",
		Short: "Add a column to a database",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			typ := model.PropertyType(args[2])
			if !typ.IsValid() {
				return fmt.Errorf("unknown property type %q", args[2])
			}
			prop := model.DatabaseProperty{Name: args[1], Type: typ, IsVisible: true}
			for _, o := range options {
				prop.Options = append(prop.Options, model.SelectOption{ID: o, Name: o})
			}
			return a.run(ctx, true, func(s *session) error {
				db, err := resolvePage(s.Store, args[0])
				if err != nil {
					return err
				}
				p, err := s.AddDatabaseProperty(ctx, db.ID, prop)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), p.ID)
				return err
			})
		},
	}
	propCmd.Flags().StringSliceVar(&options, "option", nil, "Choice of a select, status or tags column; repeatable")
	cmd.AddCommand(newCmd, propCmd)
	return cmd
}

func (a *app) rowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "row",
		Short: "Manage the rows of a database",
	}
	var view string
	lsCmd := &cobra.Command{
		Use:   "ls <database>",
		Short: "List rows as shown by a view",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), true, func(s *session) error {
				db, err := resolvePage(s.Store, args[0])
				if err != nil {
					return err
				}
				rows, err := s.QueryRows(db.ID, view)
				if err != nil {
					return err
				}
				return printRows(cmd, db, rows)
			})
		},
	}
	lsCmd.Flags().StringVar(&view, "view", "", "View ID; defaults to the default view")

	cmd.AddCommand(
		lsCmd,
		&cobra.Command{
			Use:   "add <database> [column=value...]",
			Short: "Append a row",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()
				return a.run(ctx, true, func(s *session) error {
					db, err := resolvePage(s.Store, args[0])
					if err != nil {
						return err
					}
					props, err := parseValues(db, args[1:])
					if err != nil {
						return err
					}
					r, err := s.CreateDatabaseRow(ctx, db.ID, props)
					if err != nil {
						return err
					}
					_, err = fmt.Fprintln(cmd.OutOrStdout(), r.ID)
					return err
				})
			},
		},
		&cobra.Command{
			Use:   "set <database> <row> column=value...",
			Short: "Update values of a row",
			Args:  cobra.MinimumNArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()
				return a.run(ctx, true, func(s *session) error {
					db, err := resolvePage(s.Store, args[0])
					if err != nil {
						return err
					}
					row, err := resolvePage(s.Store, args[1])
					if err != nil {
						return err
					}
					props, err := parseValues(db, args[2:])
					if err != nil {
						return err
					}
					return s.UpdateDatabaseRow(ctx, db.ID, row.ID, &model.PageUpdate{Properties: props})
				})
			},
		},
		&cobra.Command{
			Use:   "rm <database> <row>...",
			Short: "Delete rows",
			Args:  cobra.MinimumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()
				return a.run(ctx, true, func(s *session) error {
					db, err := resolvePage(s.Store, args[0])
					if err != nil {
						return err
					}
					ids := make([]string, 0, len(args)-1)
					for _, ref := range args[1:] {
						row, err := resolvePage(s.Store, ref)
						if err != nil {
							return err
						}
						ids = append(ids, row.ID)
					}
					if len(ids) == 1 {
						return s.DeleteDatabaseRow(ctx, db.ID, ids[0])
					}
					return s.BulkDeleteDatabaseRows(ctx, db.ID, ids)
				})
			},
		},
	)
	return cmd
}

// parseValues parses column=value arguments. Columns are matched by ID, then
// by name; values are JSON when they parse as such, strings otherwise.
func parseValues(db *model.Page, args []string) (map[string]any, error) {
	if !db.IsDatabase || db.DatabaseConfig == nil {
		return nil, fmt.Errorf("%w: %s", workspace.ErrNotDatabase, db.ID)
	}
	props := make(map[string]any, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("expected column=value, got %q", arg)
		}
		id, err := columnID(db.DatabaseConfig, k)
		if err != nil {
			return nil, err
		}
		props[id] = parseValue(v)
	}
	return props, nil
}

func columnID(cfg *model.DatabaseConfig, ref string) (string, error) {
	if ref == model.TitlePropertyID {
		return ref, nil
	}
	if _, ok := cfg.Property(ref); ok {
		return ref, nil
	}
	for i := range cfg.Properties {
		if strings.EqualFold(cfg.Properties[i].Name, ref) {
			return cfg.Properties[i].ID, nil
		}
	}
	return "", fmt.Errorf("unknown column %q", ref)
}

func parseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v
	}
	return s
}

func printRows(cmd *cobra.Command, db *model.Page, rows []*model.DatabaseRow) error {
	if db.DatabaseConfig == nil {
		return errors.New("database without schema")
	}
	var cols []*model.DatabaseProperty
	for i := range db.DatabaseConfig.Properties {
		p := &db.DatabaseConfig.Properties[i]
		if p.IsVisible && p.ID != model.TitlePropertyID {
			cols = append(cols, p)
		}
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprint(tw, "ID\tTITLE")
	for _, c := range cols {
		fmt.Fprintf(tw, "\t%s", strings.ToUpper(c.Name))
	}
	fmt.Fprintln(tw)
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%v", r.ID, r.Properties[model.TitlePropertyID])
		for _, c := range cols {
			fmt.Fprintf(tw, "\t%s", formatValue(r.Properties[c.ID]))
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []any:
		parts := make([]string, len(t))
		for i := range t {
			parts[i] = formatValue(t[i])
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(t)
	}
}
