package query

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/andrei-cloud/go_ayoto/internal/commands/cli/cliutil"
	"github.com/andrei-cloud/go_ayoto/internal/dispatch"
	"github.com/andrei-cloud/go_ayoto/pkg/media"
	"github.com/spf13/cobra"
)

// NewStreamsCommand creates the streams command.
func NewStreamsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "streams [BACKEND:]PLUGIN ANIME_ID EPISODE_ID",
		Short: "List the stream sources of an episode",
		Args:  cobra.ExactArgs(3),
		RunE:  runStreams,
	}

	cmd.Flags().StringP("output", "o", cliutil.FormatTable, "Output format (table, json, yaml)")

	return cmd
}

func runStreams(cmd *cobra.Command, args []string) error {
	cliutil.Quiet()
	ctx := cmd.Context()
	format, _ := cmd.Flags().GetString("output")

	a, err := cliutil.OpenApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = a.Close(ctx)
	}()

	list, err := a.Dispatcher.GetStreams(ctx, dispatch.ParseTarget(args[0]), args[1], args[2])
	if err != nil {
		return fmt.Errorf("failed to get streams: %w", err)
	}

	if format != cliutil.FormatTable {
		return cliutil.Render(cmd.OutOrStdout(), format, list)
	}

	return writeStreamTable(cmd.OutOrStdout(), list)
}

func writeStreamTable(out io.Writer, list *media.StreamSourceList) error {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, "Default\tQuality\tFormat\tServer\tURL")
	_, _ = fmt.Fprintln(w, "-------\t-------\t------\t------\t---")

	def, _ := list.Default()
	for _, s := range list.Items {
		mark := ""
		if s.URL == def.URL {
			mark = "*"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", mark, s.Quality, s.Format, s.Server, s.URL)
	}

	return w.Flush()
}
