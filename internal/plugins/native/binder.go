package native

import (
	"fmt"

	"github.com/andrei-cloud/go_ayoto/internal/manifest"
)

// Host capability flags passed to initialize.
const (
	HostHTTP    uint32 = 1 << 0
	HostStorage uint32 = 1 << 1
	HostLogging uint32 = 1 << 2
	HostCrypto  uint32 = 1 << 3
)

// HostConfig is handed to a plugin's initialize entry as JSON.
type HostConfig struct {
	DataDir      string `json:"dataDir"`
	CacheDir     string `json:"cacheDir"`
	Capabilities uint32 `json:"capabilities"`
	UserAgent    string `json:"userAgent"`
	HostVersion  string `json:"hostVersion"`
}

// DefaultHostConfig grants every host capability.
func DefaultHostConfig(hostVersion, dataDir, cacheDir string) HostConfig {
	return HostConfig{
		DataDir:      dataDir,
		CacheDir:     cacheDir,
		Capabilities: HostHTTP | HostStorage | HostLogging | HostCrypto,
		UserAgent:    fmt.Sprintf("go_ayoto/%s", hostVersion),
		HostVersion:  hostVersion,
	}
}

// Metadata is the identity a native plugin reports about itself.
type Metadata struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Version           string `json:"version"`
	Author            string `json:"author"`
	Description       string `json:"description"`
	TargetHostVersion string `json:"targetHostVersion"`
	PluginType        uint8  `json:"pluginType"`
	Capabilities      uint32 `json:"capabilities"`
	Platforms         uint32 `json:"platforms"`
}

// Manifest converts the metadata to a manifest.
func (md Metadata) Manifest() *manifest.Manifest {
	return &manifest.Manifest{
		ID:                md.ID,
		Name:              md.Name,
		Version:           md.Version,
		TargetHostVersion: md.TargetHostVersion,
		Description:       md.Description,
		Author:            md.Author,
		PluginType:        manifest.PluginTypeFromCode(md.PluginType),
		Capabilities:      manifest.CapabilitiesFromFlags(md.Capabilities),
		Platforms:         manifest.PlatformsFromFlags(md.Platforms),
		AbiVersion:        ABIVersion,
	}
}

// Instance is the capability-interface object a library factory returns.
type Instance interface {
	Metadata() (Metadata, error)
	Initialize(cfg HostConfig) error
	// Call runs one operation and returns the raw result envelope.
	Call(c manifest.Capability, request []byte) ([]byte, error)
	Shutdown() error
	// Destroy hands the object back to the library's destroy entry.
	Destroy() error
}

// Binder reads the ABI tag and creates instances from an opened library.
type Binder interface {
	ABIVersion(lib Library) (uint32, error)
	Create(lib Library) (Instance, error)
}
