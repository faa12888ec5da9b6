// Package query provides commands that call plugin operations directly.
package query

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/andrei-cloud/go_ayoto/internal/commands/cli/cliutil"
	"github.com/andrei-cloud/go_ayoto/internal/dispatch"
	"github.com/andrei-cloud/go_ayoto/internal/errorcodes"
	"github.com/andrei-cloud/go_ayoto/pkg/media"
	"github.com/spf13/cobra"
)

// NewSearchCommand creates the search command.
func NewSearchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Search anime across plugins",
		Long: `Search every enabled search-capable plugin in parallel, or one plugin with --plugin.
Plugins that fail are reported next to the results of the others.`,
		Args: cobra.ExactArgs(1),
		RunE: runSearch,
	}

	cmd.Flags().String("plugin", "", "Search only this plugin ([BACKEND:]ID)")
	cmd.Flags().Uint32("page", 1, "Result page")
	cmd.Flags().Int("limit", dispatch.DefaultSearchConcurrency, "Maximum concurrent plugin calls")
	cmd.Flags().StringP("output", "o", cliutil.FormatTable, "Output format (table, json, yaml)")

	return cmd
}

// searchRow is one plugin's outcome in printable form.
type searchRow struct {
	Plugin string           `json:"plugin"          yaml:"plugin"`
	List   *media.AnimeList `json:"list,omitempty"  yaml:"list,omitempty"`
	Error  string           `json:"error,omitempty" yaml:"error,omitempty"`
	Code   string           `json:"code,omitempty"  yaml:"code,omitempty"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	cliutil.Quiet()
	ctx := cmd.Context()

	target, _ := cmd.Flags().GetString("plugin")
	page, _ := cmd.Flags().GetUint32("page")
	limit, _ := cmd.Flags().GetInt("limit")
	format, _ := cmd.Flags().GetString("output")

	a, err := cliutil.OpenApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = a.Close(ctx)
	}()

	var results []dispatch.SearchResult
	if target != "" {
		t := dispatch.ParseTarget(target)
		list, err := a.Dispatcher.Search(ctx, t, args[0], page)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		results = []dispatch.SearchResult{{Target: t, List: list}}
	} else {
		results, err = a.Dispatcher.SearchAll(ctx, args[0], page, limit)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
	}

	rows := toRows(results)
	if format != cliutil.FormatTable {
		return cliutil.Render(cmd.OutOrStdout(), format, rows)
	}

	return writeSearchTable(cmd.OutOrStdout(), rows)
}

func toRows(results []dispatch.SearchResult) []searchRow {
	rows := make([]searchRow, 0, len(results))
	for _, r := range results {
		row := searchRow{Plugin: r.Target.String(), List: r.List}
		if r.Err != nil {
			row.Error = r.Err.Error()
			row.Code = errorcodes.CodeOf(r.Err)
		}
		rows = append(rows, row)
	}

	return rows
}

func writeSearchTable(out io.Writer, rows []searchRow) error {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, "Plugin\tID\tTitle")
	_, _ = fmt.Fprintln(w, "------\t--\t-----")

	for _, row := range rows {
		if row.Error != "" {
			_, _ = fmt.Fprintf(w, "%s\t-\terror: %s\n", row.Plugin, row.Error)

			continue
		}
		if row.List == nil || len(row.List.Items) == 0 {
			_, _ = fmt.Fprintf(w, "%s\t-\tno results\n", row.Plugin)

			continue
		}
		for _, item := range row.List.Items {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", row.Plugin, item.ID, item.Title)
		}
	}

	return w.Flush()
}
