package plugin

import (
	"fmt"

	"github.com/andrei-cloud/go_ayoto/internal/commands/cli/cliutil"
	"github.com/spf13/cobra"
)

// NewLoadCommand creates the load command.
func NewLoadCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load PATH",
		Short: "Check that a plugin file loads",
		Long: `Load a single .zpe archive, native library or .ayoto manifest into a scratch
runtime and report errors and warnings. Nothing is installed.`,
		Args: cobra.ExactArgs(1),
		RunE: runLoad,
	}

	cmd.Flags().StringP("output", "o", cliutil.FormatYAML, "Output format (json, yaml)")

	return cmd
}

func runLoad(cmd *cobra.Command, args []string) error {
	cliutil.Quiet()
	ctx := cmd.Context()
	format, _ := cmd.Flags().GetString("output")

	a, err := cliutil.NewApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = a.Close(ctx)
	}()

	res, loadErr := a.LoadPath(ctx, args[0])
	if err := cliutil.Render(cmd.OutOrStdout(), format, res); err != nil {
		return err
	}
	if loadErr != nil {
		return fmt.Errorf("plugin did not load: %w", loadErr)
	}

	return nil
}
