package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/joacominatel/pgbrowse/internal/app"
	"github.com/joacominatel/pgbrowse/internal/database"
	"github.com/joacominatel/pgbrowse/internal/logging"
	"github.com/joacominatel/pgbrowse/internal/query"
	"github.com/spf13/cobra"
)

// queryOptions holds options for the query command.
type queryOptions struct {
	databases bool
	tables    bool
	table     string
	sql       string
	request   string
	database  string
	format    string
}

func newQueryCmd(flags *globalFlags) *cobra.Command {
	opts := &queryOptions{}

	cmd := &cobra.Command{
		Use:   "query [SQL]",
		Short: "Run one request and print the result",
		Example: `  # List databases
  pgbrowse query --databases

  # List tables of a database
  pgbrowse query --tables --db app_db

  # Show a table
  pgbrowse query --table users --db app_db

  # Ad-hoc SQL, as JSON
  pgbrowse query --db app_db "SELECT now()" --format json

  # A request in wire form
  pgbrowse query --request '{"ListTables":{"database":"app_db"}}'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				if opts.sql != "" {
					return errors.New("give SQL either as an argument or with --sql, not both")
				}
				opts.sql = strings.Join(args, " ")
			}
			q, err := opts.build()
			if err != nil {
				return err
			}
			return runQuery(cmd, flags, opts.format, q)
		},
	}

	cmd.Flags().BoolVar(&opts.databases, "databases", false, "list databases")
	cmd.Flags().BoolVar(&opts.tables, "tables", false, "list tables of the public schema")
	cmd.Flags().StringVar(&opts.table, "table", "", "show every row of a table")
	cmd.Flags().StringVar(&opts.sql, "sql", "", "run SQL verbatim")
	cmd.Flags().StringVar(&opts.request, "request", "", "request in wire form (JSON)")
	cmd.Flags().StringVar(&opts.database, "db", "", "target database")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "table", "output format: table, json, csv, md")

	return cmd
}

// build turns the flags into exactly one query.
func (o *queryOptions) build() (query.Query, error) {
	var picked []query.Query
	if o.databases {
		picked = append(picked, query.ListDatabases{})
	}
	if o.tables {
		picked = append(picked, query.ListTables{Database: o.database})
	}
	if o.table != "" {
		picked = append(picked, query.ListTableContents{Database: o.database, Table: o.table})
	}
	if o.sql != "" {
		picked = append(picked, query.CustomSQL{Database: o.database, SQL: o.sql})
	}
	if o.request != "" {
		q, err := query.Unmarshal([]byte(o.request))
		if err != nil {
			return nil, fmt.Errorf("--request: %w", err)
		}
		picked = append(picked, q)
	}

	switch len(picked) {
	case 0:
		return nil, errors.New("nothing to run: use --databases, --tables, --table, --sql or --request")
	case 1:
		return picked[0], nil
	default:
		return nil, errors.New("use only one of --databases, --tables, --table, --sql or --request")
	}
}

func runQuery(cmd *cobra.Command, flags *globalFlags, format string, q query.Query) error {
	_, level, base, err := resolve(flags)
	if err != nil {
		return err
	}
	logger := logging.New(cmd.ErrOrStderr(), level)

	sess := startSession(cmd.Context(), base, logger)
	env, runErr := sess.service.RunQuery(cmd.Context(), app.Suggestion{Base: base, Query: q})
	if err := sess.close(); err != nil {
		logger.Debug("router stopped", slog.Any("error", err))
	}
	if runErr != nil {
		return runErr
	}

	if err := render(cmd.OutOrStdout(), env, format); err != nil {
		return err
	}
	if !env.OK() {
		return errors.New(app.UserMessage(env.Err))
	}
	return nil
}

func newSuggestCmd(flags *globalFlags) *cobra.Command {
	var run bool
	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Print the request a new session starts with",
		Long: `Print the suggested starting request as JSON: the base descriptor
(saved default profile, or host=localhost with the current OS user) and a
ListDatabases query. With --run the request is executed and the result
printed instead.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if run {
				return runQuery(cmd, flags, "table", query.ListDatabases{})
			}
			_, _, base, err := resolve(flags)
			if err != nil {
				return err
			}
			return printSuggestion(cmd.OutOrStdout(), app.Suggestion{Base: base, Query: query.ListDatabases{}})
		},
	}
	cmd.Flags().BoolVar(&run, "run", false, "execute the suggestion")
	return cmd
}

// printSuggestion writes the suggestion with its password masked.
func printSuggestion(w io.Writer, sug app.Suggestion) error {
	sug.Base = database.Descriptor(logging.Mask(sug.Base.String()))
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(sug)
}
