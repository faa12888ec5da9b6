package plugin

import (
	"fmt"

	"github.com/andrei-cloud/go_ayoto/internal/client"
	"github.com/andrei-cloud/go_ayoto/internal/commands/cli/cliutil"
	"github.com/andrei-cloud/go_ayoto/internal/dispatch"
	"github.com/spf13/cobra"
)

// NewEnableCommand creates the enable command.
func NewEnableCommand() *cobra.Command {
	return newToggleCommand("enable", true)
}

// NewDisableCommand creates the disable command.
func NewDisableCommand() *cobra.Command {
	return newToggleCommand("disable", false)
}

func newToggleCommand(verb string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " [BACKEND:]ID",
		Short: fmt.Sprintf("%s a plugin on the running server", verb),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliutil.Quiet()

			c := client.Dial(cliutil.ServerAddress(), 0)
			defer c.Close()

			t := dispatch.ParseTarget(args[0])
			if err := c.SetEnabled(cmd.Context(), t, enabled); err != nil {
				return fmt.Errorf("failed to %s %s: %w", verb, t, err)
			}
			cmd.Printf("%s: %sd\n", t, verb)

			return nil
		},
	}
}
