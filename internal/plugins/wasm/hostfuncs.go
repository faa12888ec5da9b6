package wasm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// hostModule is the import namespace guests link against.
const hostModule = "env"

// HostFunctions provides the env module guests import.
type HostFunctions struct {
	builder wazero.HostModuleBuilder
	now     func() time.Time
}

// NewHostFunctions creates a host functions provider on rt.
func NewHostFunctions(rt wazero.Runtime) *HostFunctions {
	return &HostFunctions{
		builder: rt.NewHostModuleBuilder(hostModule),
		now:     time.Now,
	}
}

// Register adds all host functions to the runtime.
func (h *HostFunctions) Register(ctx context.Context) error {
	h.builder.NewFunctionBuilder().
		WithFunc(h.logger(zerolog.InfoLevel)).
		Export("log_message")

	h.builder.NewFunctionBuilder().
		WithFunc(h.logger(zerolog.DebugLevel)).
		Export("log_debug")

	h.builder.NewFunctionBuilder().
		WithFunc(h.logger(zerolog.InfoLevel)).
		Export("log_info")

	h.builder.NewFunctionBuilder().
		WithFunc(h.logger(zerolog.ErrorLevel)).
		Export("log_error")

	h.builder.NewFunctionBuilder().
		WithFunc(h.timestamp).
		Export("get_timestamp")

	if _, err := h.builder.Instantiate(ctx); err != nil {
		return fmt.Errorf("failed to instantiate host functions module: %w", err)
	}

	return nil
}

// readMemory safely reads bytes from WASM module memory.
func readMemory(mod api.Module, ptr, size uint32) ([]byte, error) {
	if mod == nil {
		return nil, fmt.Errorf("nil module")
	}

	memory := mod.Memory()
	if memory == nil {
		return nil, fmt.Errorf("no memory exported")
	}

	data, ok := memory.Read(ptr, size)
	if !ok {
		return nil, fmt.Errorf("failed to read memory at %d[%d]", ptr, size)
	}

	return data, nil
}

// writeMemory safely writes bytes to WASM module memory.
func writeMemory(mod api.Module, ptr uint32, data []byte) error {
	if mod == nil {
		return fmt.Errorf("nil module")
	}

	memory := mod.Memory()
	if memory == nil {
		return fmt.Errorf("no memory exported")
	}

	if !memory.Write(ptr, data) {
		return fmt.Errorf("failed to write memory at %d[%d]", ptr, len(data))
	}

	return nil
}

func (h *HostFunctions) logger(level zerolog.Level) func(context.Context, api.Module, uint32, uint32) {
	return func(_ context.Context, mod api.Module, ptr, size uint32) {
		data, err := readMemory(mod, ptr, size)
		if err != nil {
			log.Error().Err(err).Msg("failed to read plugin log message")

			return
		}

		log.WithLevel(level).
			Str("source", "wasm").
			Str("plugin_id", pluginIDFromModule(mod.Name())).
			Msg(string(data))
	}
}

func (h *HostFunctions) timestamp(context.Context) int64 {
	return h.now().UnixMilli()
}

// moduleName builds a unique instance name so a replacement can be
// instantiated before the record it replaces is closed.
func moduleName(id, loadID string) string {
	return id + "#" + loadID
}

func pluginIDFromModule(name string) string {
	id, _, _ := strings.Cut(name, "#")

	return id
}
