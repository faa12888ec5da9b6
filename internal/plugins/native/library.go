// Package native loads content plugins built as platform dynamic libraries.
//
// Native plugins run inside the host process. A misbehaving library can
// corrupt host memory; only the ABI tag is checked before the function
// table is trusted.
package native

import (
	"runtime"
)

// ABIVersion is the function table layout the host understands.
const ABIVersion uint32 = 1

// Exported symbol names.
const (
	SymbolABIVersion = "get_plugin_abi_version"
	SymbolCreate     = "create_plugin"
	SymbolDestroy    = "destroy_plugin"
)

// Library is an opened dynamic library.
type Library interface {
	// Symbol resolves an exported function address.
	Symbol(name string) (uintptr, error)
	// Close releases the library handle.
	Close() error
}

// Opener opens dynamic libraries.
type Opener interface {
	Open(path string) (Library, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(path string) (Library, error)

// Open calls f.
func (f OpenerFunc) Open(path string) (Library, error) { return f(path) }

// PluginExtension returns the dynamic library extension of the host OS.
func PluginExtension() string {
	return extensionFor(runtime.GOOS)
}

func extensionFor(goos string) string {
	switch goos {
	case "windows":
		return ".dll"
	case "darwin", "ios":
		return ".dylib"
	default:
		return ".so"
	}
}
