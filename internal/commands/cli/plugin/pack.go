package plugin

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/andrei-cloud/go_ayoto/internal/plugins/wasm"
	"github.com/spf13/cobra"
)

// NewPackCommand creates the pack command.
func NewPackCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pack DIR",
		Short: "Build a .zpe archive",
		Long: `Pack manifest.json, plugin.wasm and an optional icon from DIR into a .zpe archive.
The manifest is validated first.`,
		Args: cobra.ExactArgs(1),
		RunE: runPack,
	}

	cmd.Flags().StringP("out", "O", "", "Archive path (default is <DIR name>.zpe)")

	return cmd
}

func runPack(cmd *cobra.Command, args []string) error {
	dir := args[0]
	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		out = filepath.Base(filepath.Clean(dir)) + wasm.ArchiveExtension
	}

	tmp, err := os.CreateTemp(filepath.Dir(out), ".pack-*")
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := wasm.Pack(dir, tmp); err != nil {
		tmp.Close()

		return fmt.Errorf("failed to pack %s: %w", dir, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write archive: %w", err)
	}
	if err := os.Rename(tmp.Name(), out); err != nil {
		return fmt.Errorf("failed to write archive: %w", err)
	}

	cmd.Printf("Packed %s into %s\n", dir, out)

	return nil
}
