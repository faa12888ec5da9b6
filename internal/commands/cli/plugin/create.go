// Package plugin provides plugin creation commands.
package plugin

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/andrei-cloud/go_ayoto/internal/config"
	"github.com/andrei-cloud/go_ayoto/internal/manifest"
	"github.com/andrei-cloud/go_ayoto/internal/plugins/catalog"
	"github.com/andrei-cloud/go_ayoto/internal/plugins/wasm"
	"github.com/andrei-cloud/go_ayoto/internal/semver"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	pluginDesc        string
	pluginVersion     = "0.1.0"
	pluginAuthor      = "go_ayoto"
	pluginDeclarative bool
	pluginBuild       bool
)

// NewCreateCommand creates the create command.
func NewCreateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a new plugin",
		Long: `Create a new plugin project. By default this will:
1. Create the NAME directory
2. Write manifest.json for a search-capable content provider
3. Write a guest main.go built on pkg/zpeplugin
4. With --build, compile plugin.wasm with TinyGo and pack NAME.zpe

With --declarative a NAME.ayoto.yaml scraping manifest is written instead.`,
		Args: cobra.ExactArgs(1),
		RunE: runCreatePlugin,
	}

	// Add flags.
	cmd.Flags().StringVarP(&pluginDesc, "desc", "d", "", "Plugin description")
	cmd.Flags().StringVarP(&pluginVersion, "version", "v", pluginVersion, "Plugin version")
	cmd.Flags().StringVarP(&pluginAuthor, "author", "a", pluginAuthor, "Plugin author")
	cmd.Flags().BoolVar(&pluginDeclarative, "declarative", false, "Write a declarative .ayoto.yaml manifest")
	cmd.Flags().BoolVar(&pluginBuild, "build", false, "Build and pack the plugin with TinyGo")

	return cmd
}

func runCreatePlugin(cmd *cobra.Command, args []string) error {
	host, err := semver.Parse(config.Get().Host.Version)
	if err != nil {
		return fmt.Errorf("invalid host version: %w", err)
	}

	m := newManifest(args[0], host)
	if err := m.Validate().Err(); err != nil {
		return fmt.Errorf("invalid plugin name: %w", err)
	}

	if pluginDeclarative {
		path := args[0] + catalog.YAMLExtension
		if err := writeDeclarative(path, m, host); err != nil {
			return err
		}
		cmd.Printf("Created declarative plugin %s\n", path)

		return nil
	}

	dir := args[0]
	if err := scaffold(dir, m); err != nil {
		return err
	}
	cmd.Printf("Created plugin project %s\n", dir)

	if !pluginBuild {
		return nil
	}

	// Build the module, then pack it next to the project.
	if err := runTool(dir, "tinygo", "build", "-o", wasm.ModuleFile, "-target=wasip1", "-no-debug", "."); err != nil {
		return fmt.Errorf("failed to build plugin: %w", err)
	}

	out, err := os.Create(dir + wasm.ArchiveExtension)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	defer out.Close()

	if err := wasm.Pack(dir, out); err != nil {
		return fmt.Errorf("failed to pack plugin: %w", err)
	}
	cmd.Printf("Successfully built %s%s\n", dir, wasm.ArchiveExtension)

	return nil
}

func newManifest(name string, host semver.Version) *manifest.Manifest {
	m := &manifest.Manifest{
		ID:                name,
		Name:              name,
		Version:           pluginVersion,
		TargetHostVersion: host.String(),
		Description:       pluginDesc,
		Author:            pluginAuthor,
		PluginType:        manifest.TypeContentProvider,
		Platforms:         []manifest.Platform{manifest.PlatformUniversal},
		AbiVersion:        1,
	}
	m.Capabilities.Set(manifest.CapSearch, true)

	return m
}

// writeDeclarative starts from the sample scraping manifest and applies the
// identity chosen on the command line.
func writeDeclarative(path string, m *manifest.Manifest, host semver.Version) error {
	sample := catalog.Sample(host)
	sample.ID = m.ID
	sample.Name = m.Name
	sample.Version = m.Version
	sample.Author = m.Author
	if m.Description != "" {
		sample.Description = m.Description
	}

	data, err := yaml.Marshal(sample)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to create manifest: %w", err)
	}

	return nil
}

func scaffold(dir string, m *manifest.Manifest) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create plugin directory: %w", err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, wasm.ManifestFile), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to create manifest: %w", err)
	}

	mainContent := fmt.Sprintf(`// Command %s is a go_ayoto guest plugin.
package main

import (
	"github.com/andrei-cloud/go_ayoto/pkg/media"
	"github.com/andrei-cloud/go_ayoto/pkg/zpeplugin"
)

//export allocate
func allocate(size uint32) uint32 {
	return zpeplugin.Alloc(size)
}

//export zpe_search
func zpeSearch(ptr, length uint32) uint64 {
	return zpeplugin.Handle(ptr, length, search)
}

func search(request []byte) (any, error) {
	req, err := zpeplugin.Decode[media.SearchRequest](request)
	if err != nil {
		return nil, err
	}

	zpeplugin.LogToHost("%s: searching " + req.Query)

	return media.AnimeList{CurrentPage: req.Page}, nil
}

func main() {}
`, m.ID, m.ID)

	if err := os.WriteFile(filepath.Join(dir, "main.go"), []byte(mainContent), 0o644); err != nil {
		return fmt.Errorf("failed to create main.go: %w", err)
	}

	return nil
}

func runTool(dir, name string, args ...string) error {
	toolCmd := exec.Command(name, args...)
	toolCmd.Dir = dir
	toolCmd.Stdout = os.Stdout
	toolCmd.Stderr = os.Stderr

	return toolCmd.Run()
}
