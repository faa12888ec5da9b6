package zpeplugin

import "encoding/json"

// HandlerFunc implements one plugin operation. It receives the raw request
// JSON and returns the value to wrap in a successful envelope.
type HandlerFunc func(request []byte) (any, error)

// Respond runs h against request and returns the encoded envelope.
func Respond(request []byte, h HandlerFunc) []byte {
	value, err := h(request)
	if err != nil {
		return Fail(err.Error())
	}

	out, err := Succeed(value)
	if err != nil {
		return Fail(err.Error())
	}

	return out
}

// Handle reads the request the host placed at ptr, runs h and writes the
// response envelope back into linear memory.
func Handle(ptr, length uint32, h HandlerFunc) uint64 {
	request := append([]byte(nil), ReadBytes(ptr, length)...)
	Free(ptr)

	return WriteEnvelope(Respond(request, h))
}

// Decode is a convenience for handlers that unmarshal a typed request.
func Decode[T any](request []byte) (T, error) {
	var v T
	err := json.Unmarshal(request, &v)

	return v, err
}
