package wasm

import (
	"context"
	"encoding/json"

	"github.com/andrei-cloud/go_ayoto/internal/errorcodes"
	"github.com/andrei-cloud/go_ayoto/internal/manifest"
	"github.com/rs/zerolog/log"
	"github.com/tetratelabs/wazero/api"
)

// Instance is one instantiated guest. It is not safe for concurrent use;
// the owning registry serialises calls.
type Instance struct {
	id     string
	module api.Module
}

// Call invokes the entry point for c with a JSON request.
func (i *Instance) Call(ctx context.Context, c manifest.Capability, request []byte) (json.RawMessage, error) {
	export, ok := EntryPoint(c)
	if !ok {
		return nil, errorcodes.ErrCapabilityUnsupported.Withf("%s has no wasm entry point", c)
	}

	return callJSON(ctx, i.module, export, request)
}

// initialize runs the optional initialize export.
func (i *Instance) initialize(ctx context.Context) error {
	fn := i.module.ExportedFunction(InitializeExport)
	if fn == nil {
		return nil
	}
	if _, err := fn.Call(ctx); err != nil {
		return errorcodes.ErrGuestExecution.Withf("initialize failed").Wrap(err)
	}

	return nil
}

// Close runs the optional shutdown export, then closes the module.
func (i *Instance) Close(ctx context.Context) error {
	if fn := i.module.ExportedFunction(ShutdownExport); fn != nil {
		if _, err := fn.Call(ctx); err != nil {
			log.Warn().
				Err(err).
				Str("event", "plugin_shutdown").
				Str("backend", BackendName).
				Str("plugin_id", i.id).
				Msg("plugin shutdown failed")
		}
	}

	return i.module.Close(ctx)
}
