package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-record-cache/entity"
	"github.com/goliatone/go-record-cache/record"
)

func (a *app) getCmd() *cobra.Command {
	var (
		fresh bool
		slim  bool
	)
	cmd := &cobra.Command{
		Use:   "get <table> <id>",
		Short: "Print one row, reading through the cache",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.model(args[0])
			if err != nil {
				return err
			}
			r, err := m.GetInstance(cmd.Context(), parseValue(args[1]), fresh)
			if err != nil {
				return err
			}
			if slim {
				return a.print(m.Slim(r.Entity()))
			}
			return a.print(r.Entity())
		},
	}
	cmd.Flags().BoolVar(&fresh, "fresh", false, "skip the cache and read the database")
	cmd.Flags().BoolVar(&slim, "slim", false, "print only the table's slim fields")
	return cmd
}

func (a *app) listCmd() *cobra.Command {
	var (
		where   []string
		order   string
		limit   int
		offset  int
		cached  bool
		explain bool
	)
	cmd := &cobra.Command{
		Use:   "list <table>",
		Short: "Print the rows matching --where filters",
		Example: `  recordctl list tasks --where team=ops --order "id DESC" --limit 20
  recordctl list tasks --where status=null --cached`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := parseWhere(where)
			if err != nil {
				return err
			}
			m, err := a.model(args[0])
			if err != nil {
				return err
			}

			opts := record.FetchOptions{Order: order, Limit: limit, Offset: offset}
			r := m.New()
			if explain {
				sql, err := r.Statement(c, opts)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(a.out, sql)
				return err
			}

			var idx *entity.Index
			if cached {
				idx, err = r.FetchAllCached(cmd.Context(), c, opts)
			} else {
				idx, err = r.FetchAll(cmd.Context(), c, opts)
			}
			if err != nil {
				return err
			}
			return a.print(idx.Rows())
		},
	}
	flags := cmd.Flags()
	flags.StringArrayVarP(&where, "where", "w", nil, "column=value filter, repeatable; value null matches NULL")
	flags.StringVar(&order, "order", "", "ORDER BY expression")
	flags.IntVar(&limit, "limit", 0, "maximum rows (default 1000)")
	flags.IntVar(&offset, "offset", 0, "rows to skip")
	flags.BoolVar(&cached, "cached", false, "serve from the bulk query cache")
	flags.BoolVar(&explain, "explain", false, "print the SQL instead of running it")
	return cmd
}

func (a *app) countCmd() *cobra.Command {
	var where []string
	cmd := &cobra.Command{
		Use:   "count <table>",
		Short: "Print the number of rows matching --where filters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := parseWhere(where)
			if err != nil {
				return err
			}
			m, err := a.model(args[0])
			if err != nil {
				return err
			}
			n, err := m.New().Count(cmd.Context(), c)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.out, n)
			return err
		},
	}
	cmd.Flags().StringArrayVarP(&where, "where", "w", nil, "column=value filter, repeatable")
	return cmd
}

func (a *app) setCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <table> <json>",
		Short: "Insert a row, or update it when the JSON carries its primary key",
		Example: `  recordctl set tasks '{"name":"deploy","team":"ops"}'
  recordctl set tasks '{"id":3,"status":"done"}'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := parseEntity(args[1])
			if err != nil {
				return err
			}
			m, err := a.model(args[0])
			if err != nil {
				return err
			}

			r := m.New().UsePrimary()
			if entity.IsZeroKey(fields.Get(m.Descriptor().PrimaryKey)) {
				_, err = r.Add(cmd.Context(), fields)
			} else {
				err = r.Update(cmd.Context(), fields)
			}
			if err != nil {
				return err
			}
			return a.print(r.Entity())
		},
	}
}

func (a *app) incrCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "incr <table> <id> <column> [step]",
		Short: "Add step (default 1) to a numeric column",
		Args:  cobra.RangeArgs(3, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			step := 1.0
			if len(args) == 4 {
				var err error
				if step, err = strconv.ParseFloat(args[3], 64); err != nil {
					return fmt.Errorf("invalid step %q: %w", args[3], err)
				}
			}
			m, err := a.model(args[0])
			if err != nil {
				return err
			}

			r, err := m.GetInstance(cmd.Context(), parseValue(args[1]), true)
			if err != nil {
				return err
			}
			if err := r.UsePrimary().Increase(cmd.Context(), args[2], step); err != nil {
				return err
			}
			return a.print(r.Entity())
		},
	}
}

func (a *app) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <table> <id>",
		Short: "Delete one row and drop it from the cache",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.model(args[0])
			if err != nil {
				return err
			}
			if err := m.New().UsePrimary().DeleteByID(cmd.Context(), parseValue(args[1])); err != nil {
				return err
			}
			_, err = fmt.Fprintf(a.out, "deleted %s %s\n", args[0], args[1])
			return err
		},
	}
}
