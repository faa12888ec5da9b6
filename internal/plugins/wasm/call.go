package wasm

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/andrei-cloud/go_ayoto/internal/errorcodes"
	"github.com/andrei-cloud/go_ayoto/internal/manifest"
	"github.com/andrei-cloud/go_ayoto/pkg/zpeplugin"
	"github.com/rs/zerolog/log"
	"github.com/tetratelabs/wazero/api"
)

// Guest export names outside the per-operation entry points.
const (
	MemoryExport     = "memory"
	AllocExport      = "allocate"
	DeallocExport    = "deallocate"
	InitializeExport = "initialize"
	ShutdownExport   = "shutdown"
)

var entryPoints = map[manifest.Capability]string{
	manifest.CapSearch:          "zpe_search",
	manifest.CapGetPopular:      "zpe_get_popular",
	manifest.CapGetLatest:       "zpe_get_latest",
	manifest.CapGetEpisodes:     "zpe_get_episodes",
	manifest.CapGetStreams:      "zpe_get_streams",
	manifest.CapGetAnimeDetails: "zpe_get_anime_details",
	manifest.CapExtractStream:   "zpe_extract_stream",
	manifest.CapGetHosterInfo:   "zpe_get_hoster_info",
	manifest.CapDecryptStream:   "zpe_decrypt_stream",
	manifest.CapGetDownloadLink: "zpe_get_download_link",
}

// EntryPoint returns the guest export implementing c.
func EntryPoint(c manifest.Capability) (string, bool) {
	name, ok := entryPoints[c]

	return name, ok
}

// allocBuffer asks the guest to allocate len(data) bytes and copies data
// into the returned region.
func allocBuffer(ctx context.Context, mod api.Module, data []byte) (uint32, error) {
	alloc := mod.ExportedFunction(AllocExport)
	if alloc == nil {
		return 0, errorcodes.ErrEntryPointMissing.Withf("guest does not export %s", AllocExport)
	}

	results, err := alloc.Call(ctx, uint64(len(data)))
	if err != nil {
		return 0, errorcodes.ErrGuestExecution.Withf("%s failed", AllocExport).Wrap(err)
	}
	if len(results) < 1 {
		return 0, errorcodes.ErrGuestExecution.Withf("%s returned no results", AllocExport)
	}

	ptr := api.DecodeU32(results[0])
	if ptr == 0 {
		return 0, errorcodes.ErrGuestExecution.Withf("%s returned null", AllocExport)
	}

	if err := writeMemory(mod, ptr, data); err != nil {
		return 0, errorcodes.ErrGuestExecution.Wrap(err)
	}

	return ptr, nil
}

// callEntry invokes an operation export with the request location and
// returns its packed result.
func callEntry(ctx context.Context, fn api.Function, ptr, length uint32) (uint64, error) {
	results, err := fn.Call(ctx, uint64(ptr), uint64(length))
	if err != nil {
		return 0, errorcodes.ErrGuestExecution.Withf("execution failed").Wrap(err)
	}
	if len(results) < 1 {
		return 0, errorcodes.ErrGuestExecution.Withf("invalid execution result")
	}

	return results[0], nil
}

// readResult copies the packed result region out of guest memory.
func readResult(mod api.Module, packed uint64) ([]byte, error) {
	ptr, length := zpeplugin.UnpackResult(packed)
	if ptr == 0 {
		return nil, errorcodes.ErrGuestExecution.Withf("function returned null")
	}

	data, err := readMemory(mod, ptr, length)
	if err != nil {
		return nil, errorcodes.ErrGuestExecution.Wrap(err)
	}

	return append([]byte(nil), data...), nil
}

// releaseResult hands the result region back to the guest through its
// optional deallocate export. The bytes have already been copied out.
func releaseResult(ctx context.Context, mod api.Module, packed uint64) {
	dealloc := mod.ExportedFunction(DeallocExport)
	if dealloc == nil {
		return
	}

	ptr, length := zpeplugin.UnpackResult(packed)
	if _, err := dealloc.Call(ctx, uint64(ptr), uint64(length)); err != nil {
		log.Warn().
			Err(err).
			Str("event", "wasm_dealloc").
			Str("module", mod.Name()).
			Msg("guest failed to release result")
	}
}

// callJSON runs the full cross-boundary protocol for one export.
func callJSON(ctx context.Context, mod api.Module, export string, request []byte) (json.RawMessage, error) {
	fn := mod.ExportedFunction(export)
	if fn == nil {
		return nil, errorcodes.ErrEntryPointMissing.Withf("guest does not export %s", export)
	}

	ptr, err := allocBuffer(ctx, mod, request)
	if err != nil {
		return nil, err
	}

	packed, err := callEntry(ctx, fn, ptr, uint32(len(request)))
	if err != nil {
		return nil, err
	}

	resp, err := readResult(mod, packed)
	if err != nil {
		return nil, err
	}
	releaseResult(ctx, mod, packed)

	value, err := zpeplugin.DecodeEnvelope(resp)
	if err != nil {
		var failure *zpeplugin.FailureError
		if errors.As(err, &failure) {
			return nil, errorcodes.ErrGuestExecution.Withf("%s", failure.Error())
		}

		return nil, errorcodes.ErrGuestExecution.Withf("invalid %s result", export).Wrap(err)
	}

	return value, nil
}
