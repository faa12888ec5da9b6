// Package plugin provides plugin management commands.
package plugin

import "github.com/spf13/cobra"

// NewPluginCommand creates the main plugin command group.
func NewPluginCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugin",
		Short: "Plugin management commands",
		Long:  `Commands for inspecting, packaging and managing go_ayoto plugins.`,
	}

	cmd.AddCommand(
		NewListCommand(),
		NewInfoCommand(),
		NewLoadCommand(),
		NewEnableCommand(),
		NewDisableCommand(),
		NewPackCommand(),
		NewCreateCommand(),
		NewManageCommand(),
	)

	return cmd
}
