//go:build windows || ((darwin || freebsd || linux) && !android && (amd64 || arm64))

package native

import (
	"encoding/json"
	"runtime"
	"unsafe"

	"github.com/andrei-cloud/go_ayoto/internal/errorcodes"
	"github.com/andrei-cloud/go_ayoto/internal/manifest"
	"github.com/ebitengine/purego"
)

// functionTable mirrors the C table returned by create_plugin. Every slot
// is pointer sized.
type functionTable struct {
	ABI             uintptr
	Self            uintptr
	Metadata        uintptr
	Initialize      uintptr
	Shutdown        uintptr
	FreeString      uintptr
	Search          uintptr
	GetPopular      uintptr
	GetLatest       uintptr
	GetEpisodes     uintptr
	GetStreams      uintptr
	GetAnimeDetails uintptr
	ExtractStream   uintptr
	GetHosterInfo   uintptr
	DecryptStream   uintptr
	GetDownloadLink uintptr
}

func (t *functionTable) entry(c manifest.Capability) uintptr {
	switch c {
	case manifest.CapSearch:
		return t.Search
	case manifest.CapGetPopular:
		return t.GetPopular
	case manifest.CapGetLatest:
		return t.GetLatest
	case manifest.CapGetEpisodes:
		return t.GetEpisodes
	case manifest.CapGetStreams:
		return t.GetStreams
	case manifest.CapGetAnimeDetails:
		return t.GetAnimeDetails
	case manifest.CapExtractStream:
		return t.ExtractStream
	case manifest.CapGetHosterInfo:
		return t.GetHosterInfo
	case manifest.CapDecryptStream:
		return t.DecryptStream
	case manifest.CapGetDownloadLink:
		return t.GetDownloadLink
	default:
		return 0
	}
}

type ffiBinder struct{}

// SystemBinder calls library exports through purego.
func SystemBinder() Binder {
	return ffiBinder{}
}

func (ffiBinder) ABIVersion(lib Library) (uint32, error) {
	fn, err := lib.Symbol(SymbolABIVersion)
	if err != nil {
		return 0, err
	}
	r, _, _ := purego.SyscallN(fn)

	return uint32(r), nil
}

func (ffiBinder) Create(lib Library) (Instance, error) {
	create, err := lib.Symbol(SymbolCreate)
	if err != nil {
		return nil, err
	}
	destroy, err := lib.Symbol(SymbolDestroy)
	if err != nil {
		return nil, err
	}

	ptr, _, _ := purego.SyscallN(create)
	if ptr == 0 {
		return nil, errorcodes.ErrInstantiation.Withf("%s returned null", SymbolCreate)
	}

	//nolint:govet // the table lives in library memory, not the Go heap.
	table := *(*functionTable)(unsafe.Pointer(ptr))
	if uint32(table.ABI) != ABIVersion {
		purego.SyscallN(destroy, ptr)

		return nil, errorcodes.ErrAbiMismatch.Withf(
			"function table ABI v%d, expected v%d", uint32(table.ABI), ABIVersion)
	}

	return &ffiInstance{table: table, tablePtr: ptr, destroy: destroy}, nil
}

// ffiInstance calls through a plugin function table.
type ffiInstance struct {
	table    functionTable
	tablePtr uintptr
	destroy  uintptr
}

// call invokes fn(self, arg) and returns the plugin-owned string it produced.
func (i *ffiInstance) call(fn uintptr, arg []byte) ([]byte, error) {
	if fn == 0 {
		return nil, errorcodes.ErrEntryPointMissing.Withf("function table slot is null")
	}

	var r uintptr
	if arg == nil {
		r, _, _ = purego.SyscallN(fn, i.table.Self)
	} else {
		buf := append(append([]byte(nil), arg...), 0)
		r, _, _ = purego.SyscallN(fn, i.table.Self, uintptr(unsafe.Pointer(&buf[0])))
		runtime.KeepAlive(buf)
	}
	if r == 0 {
		return nil, errorcodes.ErrGuestExecution.Withf("function returned null")
	}

	out := []byte(cString(r))
	if i.table.FreeString != 0 {
		purego.SyscallN(i.table.FreeString, r)
	}

	return out, nil
}

func (i *ffiInstance) Metadata() (Metadata, error) {
	raw, err := i.call(i.table.Metadata, nil)
	if err != nil {
		return Metadata{}, err
	}

	var md Metadata
	if err := json.Unmarshal(raw, &md); err != nil {
		return Metadata{}, errorcodes.ErrParse.Withf("invalid plugin metadata").Wrap(err)
	}

	return md, nil
}

func (i *ffiInstance) Initialize(cfg HostConfig) error {
	req, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	resp, err := i.call(i.table.Initialize, req)
	if err != nil {
		return err
	}

	return checkEnvelope(resp)
}

func (i *ffiInstance) Call(c manifest.Capability, request []byte) ([]byte, error) {
	return i.call(i.table.entry(c), request)
}

func (i *ffiInstance) Shutdown() error {
	if i.table.Shutdown == 0 {
		return nil
	}
	purego.SyscallN(i.table.Shutdown, i.table.Self)

	return nil
}

func (i *ffiInstance) Destroy() error {
	purego.SyscallN(i.destroy, i.tablePtr)

	return nil
}

// cString copies a NUL terminated C string.
//
//nolint:govet,gosec // p points into plugin-owned memory.
func cString(p uintptr) string {
	base := unsafe.Pointer(p)
	n := 0
	for *(*byte)(unsafe.Add(base, n)) != 0 {
		n++
	}

	return string(unsafe.Slice((*byte)(base), n))
}
