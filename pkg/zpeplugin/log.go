//go:build wasm

package zpeplugin

import "unsafe"

//go:wasmimport env log_message
func logMessage(ptr, length uint32)

// LogToHost logs a message from a WASM plugin to the host.
//
//nolint:gosec // pointers are 32-bit inside wasm32 linear memory.
func LogToHost(msg string) {
	if msg == "" {
		return
	}
	b := []byte(msg)
	logMessage(uint32(uintptr(unsafe.Pointer(&b[0]))), uint32(len(b)))
}
