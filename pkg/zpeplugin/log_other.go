//go:build !wasm

package zpeplugin

// LogToHost is a no-op outside a WASM guest.
func LogToHost(string) {}
