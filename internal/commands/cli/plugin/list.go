// Package plugin provides plugin listing commands.
package plugin

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/andrei-cloud/go_ayoto/internal/client"
	"github.com/andrei-cloud/go_ayoto/internal/commands/cli/cliutil"
	"github.com/andrei-cloud/go_ayoto/internal/plugins"
	"github.com/spf13/cobra"
)

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List installed plugins",
		Long: `List every plugin in the plugin directory with its backend, version and capabilities.
With --remote the list is read from a running server instead.`,
		RunE: runListPlugins,
	}

	cmd.Flags().StringP("output", "o", cliutil.FormatTable, "Output format (table, json, yaml)")
	cmd.Flags().Bool("remote", false, "Query the running server")

	return cmd
}

func runListPlugins(cmd *cobra.Command, _ []string) error {
	cliutil.Quiet()
	ctx := cmd.Context()

	format, _ := cmd.Flags().GetString("output")
	remote, _ := cmd.Flags().GetBool("remote")

	var summaries []plugins.Summary
	if remote {
		c := client.Dial(cliutil.ServerAddress(), 0)
		defer c.Close()

		list, err := c.List(ctx)
		if err != nil {
			return fmt.Errorf("failed to list plugins: %w", err)
		}
		summaries = list
	} else {
		a, err := cliutil.OpenApp(ctx)
		if err != nil {
			return err
		}
		defer func() {
			_ = a.Close(ctx)
		}()
		summaries = a.Summaries()
	}

	if summaries == nil {
		summaries = []plugins.Summary{}
	}
	if format != cliutil.FormatTable {
		return cliutil.Render(cmd.OutOrStdout(), format, summaries)
	}

	return writeTable(cmd.OutOrStdout(), summaries)
}

func writeTable(out io.Writer, summaries []plugins.Summary) error {
	// Create tabwriter for aligned output.
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tBackend\tVersion\tEnabled\tCapabilities")
	_, _ = fmt.Fprintln(w, "--\t-------\t-------\t-------\t------------")

	for _, s := range summaries {
		caps := make([]string, 0, len(s.Capabilities))
		for _, c := range s.Capabilities {
			caps = append(caps, string(c))
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n",
			s.ID,
			s.Backend,
			s.Version,
			s.Enabled,
			strings.Join(caps, ","))
	}

	return w.Flush()
}
