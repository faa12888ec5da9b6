package plugin

import (
	"fmt"

	"github.com/andrei-cloud/go_ayoto/internal/commands/cli/cliutil"
	"github.com/andrei-cloud/go_ayoto/internal/dispatch"
	"github.com/spf13/cobra"
)

// NewInfoCommand creates the info command.
func NewInfoCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info [BACKEND:]ID",
		Short: "Show one plugin",
		Long:  `Show the summary of one installed plugin. Qualify the id with its backend when several backends load it.`,
		Args:  cobra.ExactArgs(1),
		RunE:  runInfo,
	}

	cmd.Flags().StringP("output", "o", cliutil.FormatYAML, "Output format (json, yaml)")

	return cmd
}

func runInfo(cmd *cobra.Command, args []string) error {
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

	s, err := a.Describe(dispatch.ParseTarget(args[0]))
	if err != nil {
		return fmt.Errorf("failed to describe plugin: %w", err)
	}

	return cliutil.Render(cmd.OutOrStdout(), format, s)
}
