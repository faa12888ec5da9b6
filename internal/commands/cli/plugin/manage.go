package plugin

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/andrei-cloud/go_ayoto/internal/client"
	"github.com/andrei-cloud/go_ayoto/internal/commands/cli/cliutil"
	"github.com/andrei-cloud/go_ayoto/internal/dispatch"
	"github.com/spf13/cobra"
)

// NewManageCommand creates the manage command.
func NewManageCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "manage",
		Short: "Interactively enable and disable plugins",
		Long:  `Open an interactive list of the plugins loaded by the running server and toggle them.`,
		RunE:  runManage,
	}
}

func runManage(cmd *cobra.Command, _ []string) error {
	cliutil.Quiet()
	ctx := cmd.Context()

	c := client.Dial(cliutil.ServerAddress(), 0)
	defer c.Close()

	list, err := c.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list plugins: %w", err)
	}

	model := newManageModel(list, func(t dispatch.Target, enabled bool) error {
		return c.SetEnabled(ctx, t, enabled)
	})

	if _, err := tea.NewProgram(model).Run(); err != nil {
		return fmt.Errorf("failed to run plugin manager: %w", err)
	}

	return nil
}
