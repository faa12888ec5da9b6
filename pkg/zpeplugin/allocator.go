package zpeplugin

import (
	"sync"
	"unsafe"
)

var (
	liveMu sync.Mutex
	live   = map[uint32][]byte{}
	// lastResponse is the buffer returned by the previous WriteEnvelope.
	lastResponse uint32
)

// Alloc reserves n bytes the host can write into and returns their address.
// The buffer stays reachable until Free is called with the same pointer.
func Alloc(n uint32) uint32 {
	if n == 0 {
		return 0
	}

	return retain(make([]byte, n))
}

// retain keeps buf reachable and returns its address.
//
//nolint:gosec // pointers are 32-bit inside wasm32 linear memory.
func retain(buf []byte) uint32 {
	ptr := uint32(uintptr(unsafe.Pointer(&buf[0])))

	liveMu.Lock()
	live[ptr] = buf
	liveMu.Unlock()

	return ptr
}

// Free releases a buffer obtained from Alloc. Guests export it as
// deallocate so the host can return result buffers once it has read them.
func Free(ptr uint32) {
	liveMu.Lock()
	delete(live, ptr)
	if ptr == lastResponse {
		lastResponse = 0
	}
	liveMu.Unlock()
}

// ResetAllocator drops every outstanding buffer.
func ResetAllocator() {
	liveMu.Lock()
	live = map[uint32][]byte{}
	lastResponse = 0
	liveMu.Unlock()
}

// Outstanding reports how many buffers are still held.
func Outstanding() int {
	liveMu.Lock()
	defer liveMu.Unlock()

	return len(live)
}
