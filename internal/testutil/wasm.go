// Package testutil assembles small WebAssembly guests and plugin archives
// for backend tests without needing a guest toolchain.
package testutil

import (
	"sort"
)

// BehaviorKind selects the body generated for an exported operation.
type BehaviorKind int

// Operation bodies.
const (
	// Echo parses the query of a search request and returns a one item
	// anime list whose title contains it.
	Echo BehaviorKind = iota
	// Constant returns Payload verbatim from a data segment.
	Constant
	// Trap executes unreachable.
	Trap
	// Null returns a zero packed result.
	Null
)

// Behavior describes one exported operation.
type Behavior struct {
	Kind    BehaviorKind
	Payload string
}

// Guest describes a module to assemble.
type Guest struct {
	// NoMemory omits the memory export; only Trap and Null ops are allowed.
	NoMemory bool
	// LogImport imports env.log_message; Echo ops log their request through it.
	LogImport bool
	// Initialize adds an initialize export: "ok" returns, "trap" traps.
	Initialize string
	// Shutdown adds a shutdown export that returns.
	Shutdown bool
	// Deallocate adds a deallocate(ptr, len) export that records its
	// arguments at ReleasedPtrAddr and ReleasedLenAddr.
	Deallocate bool
	// Ops maps export names such as zpe_search to their behavior.
	Ops map[string]Behavior
}

// EchoPrefix and EchoSuffix wrap the echoed query in the search envelope.
const (
	EchoPrefix = `{"success":true,"value":{"items":[{"id":"echo-1","title":"Echo: `
	EchoSuffix = `"}],"hasNextPage":false,"currentPage":1}}`
)

// Addresses written by the deallocate export.
const (
	ReleasedPtrAddr = 0
	ReleasedLenAddr = 4
)

// queryOffset is len(`{"query":"`) in a marshalled search request.
const queryOffset = 10

const (
	valI32 = 0x7F
	valI64 = 0x7E

	typeLog   = 0 // (i32, i32) -> ()
	typeAlloc = 1 // (i32) -> i32
	typeOp    = 2 // (i32, i32) -> i64
	typeVoid  = 3 // () -> ()

	heapStart = 4096
	dataStart = 16
)

// EchoModule is a guest exporting an echoing zpe_search.
func EchoModule() []byte {
	return Guest{
		LogImport: true,
		Ops:       map[string]Behavior{"zpe_search": {Kind: Echo}},
	}.Bytes()
}

// Bytes assembles the module.
func (g Guest) Bytes() []byte {
	var (
		funcTypes []byte
		exports   [][]byte
		bodies    [][]byte
		segments  [][]byte
	)

	funcIndex := uint32(0)
	logIndex := uint32(0)
	if g.LogImport {
		logIndex = funcIndex
		funcIndex++
	}

	addFunc := func(name string, typ byte, body []byte) uint32 {
		idx := funcIndex
		funcIndex++
		funcTypes = append(funcTypes, typ)
		bodies = append(bodies, body)
		exports = append(exports, exportEntry(name, 0x00, idx))

		return idx
	}

	allocIndex := addFunc("allocate", typeAlloc, allocBody())

	switch g.Initialize {
	case "ok":
		addFunc("initialize", typeVoid, funcBody(nil, nil))
	case "trap":
		addFunc("initialize", typeVoid, funcBody(nil, []byte{0x00}))
	}
	if g.Shutdown {
		addFunc("shutdown", typeVoid, funcBody(nil, nil))
	}
	if g.Deallocate {
		if g.NoMemory {
			panic("testutil: deallocate requires memory")
		}
		addFunc("deallocate", typeLog, deallocBody())
	}

	dataOffset := uint32(dataStart)
	addData := func(payload string) uint32 {
		off := dataOffset
		segments = append(segments, dataEntry(off, []byte(payload)))
		dataOffset += uint32(len(payload))
		dataOffset = (dataOffset + 7) &^ 7

		return off
	}

	names := make([]string, 0, len(g.Ops))
	for name := range g.Ops {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		b := g.Ops[name]
		switch b.Kind {
		case Echo:
			if g.NoMemory {
				panic("testutil: echo op requires memory")
			}
			prefix := addData(EchoPrefix)
			suffix := addData(EchoSuffix)
			addFunc(name, typeOp, echoBody(g.LogImport, logIndex, allocIndex, prefix, suffix))
		case Constant:
			if g.NoMemory {
				panic("testutil: constant op requires memory")
			}
			off := addData(b.Payload)
			packed := int64(uint64(off)<<32 | uint64(len(b.Payload)))
			addFunc(name, typeOp, funcBody(nil, append([]byte{0x42}, sleb(packed)...)))
		case Trap:
			addFunc(name, typeOp, funcBody(nil, []byte{0x00}))
		case Null:
			addFunc(name, typeOp, funcBody(nil, []byte{0x42, 0x00}))
		}
	}

	if !g.NoMemory {
		exports = append(exports, exportEntry("memory", 0x02, 0))
	}

	out := []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}

	types := vec([][]byte{
		{0x60, 0x02, valI32, valI32, 0x00},
		{0x60, 0x01, valI32, 0x01, valI32},
		{0x60, 0x02, valI32, valI32, 0x01, valI64},
		{0x60, 0x00, 0x00},
	})
	out = append(out, section(1, types)...)

	if g.LogImport {
		imp := append(wasmName("env"), wasmName("log_message")...)
		imp = append(imp, 0x00, typeLog)
		out = append(out, section(2, vec([][]byte{imp}))...)
	}

	funcs := uleb(uint32(len(funcTypes)))
	funcs = append(funcs, funcTypes...)
	out = append(out, section(3, funcs)...)

	if !g.NoMemory {
		out = append(out, section(5, vec([][]byte{{0x00, 0x01}}))...)
	}

	global := []byte{valI32, 0x01, 0x41}
	global = append(global, sleb(heapStart)...)
	global = append(global, 0x0B)
	out = append(out, section(6, vec([][]byte{global}))...)

	out = append(out, section(7, vec(exports))...)

	code := make([][]byte, 0, len(bodies))
	for _, b := range bodies {
		code = append(code, append(uleb(uint32(len(b))), b...))
	}
	out = append(out, section(10, vec(code))...)

	if len(segments) > 0 {
		out = append(out, section(11, vec(segments))...)
	}

	return out
}

// allocBody bumps the heap global by size rounded up to 8 and returns the old value.
func allocBody() []byte {
	return funcBody(nil, []byte{
		0x23, 0x00, // global.get 0
		0x23, 0x00, // global.get 0
		0x20, 0x00, // local.get size
		0x6A,       // i32.add
		0x41, 0x07, // i32.const 7
		0x6A,       // i32.add
		0x41, 0x78, // i32.const -8
		0x71,       // i32.and
		0x24, 0x00, // global.set 0
	})
}

// deallocBody stores its pointer and length arguments at fixed addresses.
func deallocBody() []byte {
	return funcBody(nil, []byte{
		0x41, ReleasedPtrAddr, // i32.const
		0x20, 0x00,            // local.get ptr
		0x36, 0x02, 0x00,      // i32.store
		0x41, ReleasedLenAddr, // i32.const
		0x20, 0x01,            // local.get len
		0x36, 0x02, 0x00,      // i32.store
	})
}

// echoBody copies prefix, the request query and suffix into a fresh buffer.
// Locals: 0 ptr, 1 len, 2 end, 3 qlen, 4 out, 5 total.
func echoBody(logImport bool, logIndex, allocIndex, prefix, suffix uint32) []byte {
	p := int64(len(EchoPrefix))
	s := int64(len(EchoSuffix))

	var c []byte
	op := func(b ...byte) { c = append(c, b...) }
	i32 := func(v int64) { op(0x41); op(sleb(v)...) }
	get := func(i byte) { op(0x20, i) }
	set := func(i byte) { op(0x21, i) }
	memcopy := func() { op(0xFC, 0x0A, 0x00, 0x00) }

	if logImport {
		get(0)
		get(1)
		op(0x10)
		op(uleb(logIndex)...)
	}

	// end = ptr + queryOffset; scan to the closing quote.
	get(0)
	i32(queryOffset)
	op(0x6A)
	set(2)
	op(0x02, 0x40, 0x03, 0x40) // block loop
	get(2)
	op(0x2D, 0x00, 0x00) // i32.load8_u
	i32('"')
	op(0x46)       // i32.eq
	op(0x0D, 0x01) // br_if block
	get(2)
	i32(1)
	op(0x6A)
	set(2)
	op(0x0C, 0x00) // br loop
	op(0x0B, 0x0B) // end loop, end block

	// qlen = end - (ptr + queryOffset)
	get(2)
	get(0)
	i32(queryOffset)
	op(0x6A)
	op(0x6B)
	set(3)

	// total = qlen + len(prefix) + len(suffix); out = allocate(total)
	get(3)
	i32(p + s)
	op(0x6A)
	set(5)
	get(5)
	op(0x10)
	op(uleb(allocIndex)...)
	set(4)

	get(4)
	i32(int64(prefix))
	i32(p)
	memcopy()

	get(4)
	i32(p)
	op(0x6A)
	get(0)
	i32(queryOffset)
	op(0x6A)
	get(3)
	memcopy()

	get(4)
	i32(p)
	op(0x6A)
	get(3)
	op(0x6A)
	i32(int64(suffix))
	i32(s)
	memcopy()

	// (out << 32) | total
	get(4)
	op(0xAD) // i64.extend_i32_u
	op(0x42)
	op(sleb(32)...)
	op(0x86) // i64.shl
	get(5)
	op(0xAD)
	op(0x84) // i64.or

	return funcBody([]byte{0x01, 0x04, valI32}, c)
}

func funcBody(locals, instrs []byte) []byte {
	if locals == nil {
		locals = []byte{0x00}
	}
	out := append([]byte(nil), locals...)
	out = append(out, instrs...)

	return append(out, 0x0B)
}

func exportEntry(n string, kind byte, idx uint32) []byte {
	out := wasmName(n)
	out = append(out, kind)

	return append(out, uleb(idx)...)
}

func dataEntry(offset uint32, payload []byte) []byte {
	out := []byte{0x00, 0x41}
	out = append(out, sleb(int64(offset))...)
	out = append(out, 0x0B)
	out = append(out, uleb(uint32(len(payload)))...)

	return append(out, payload...)
}

func section(id byte, content []byte) []byte {
	out := []byte{id}
	out = append(out, uleb(uint32(len(content)))...)

	return append(out, content...)
}

func vec(items [][]byte) []byte {
	out := uleb(uint32(len(items)))
	for _, it := range items {
		out = append(out, it...)
	}

	return out
}

func wasmName(s string) []byte {
	return append(uleb(uint32(len(s))), s...)
}

func uleb(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)

			continue
		}

		return append(out, b)
	}
}

func sleb(v int64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7F)
		v >>= 7
		done := (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0)
		if done {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}
