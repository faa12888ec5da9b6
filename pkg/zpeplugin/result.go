package zpeplugin

import (
	"encoding/json"
	"errors"
)

// PackResult combines a pointer and a length into a single uint64 result.
func PackResult(ptr, length uint32) uint64 {
	return uint64(ptr)<<32 | uint64(length)
}

// UnpackResult splits a packed result into pointer and length.
func UnpackResult(v uint64) (ptr, length uint32) {
	return uint32(v >> 32), uint32(v)
}

// Envelope is the JSON wrapper every plugin operation returns.
type Envelope struct {
	Success bool            `json:"success"`
	Value   json.RawMessage `json:"value,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// FailureError carries the message of an unsuccessful envelope.
type FailureError struct {
	Message string
}

func (e *FailureError) Error() string {
	if e.Message == "" {
		return "plugin reported failure"
	}

	return e.Message
}

// Succeed encodes value inside a successful envelope.
func Succeed(value any) ([]byte, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	return json.Marshal(Envelope{Success: true, Value: raw})
}

// Fail encodes msg inside a failed envelope.
func Fail(msg string) []byte {
	out, _ := json.Marshal(Envelope{Error: msg})

	return out
}

// DecodeEnvelope parses an envelope and returns its value. An unsuccessful
// envelope yields a *FailureError.
func DecodeEnvelope(data []byte) (json.RawMessage, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, &FailureError{Message: env.Error}
	}
	if len(env.Value) == 0 {
		return nil, errors.New("successful envelope carries no value")
	}

	return env.Value, nil
}

// WriteEnvelope copies an encoded envelope into a fresh buffer and returns
// the packed pointer and length for the host. The previous response is
// released first, so at most one response is held even when the host never
// calls deallocate.
func WriteEnvelope(data []byte) uint64 {
	if len(data) == 0 {
		return 0
	}

	liveMu.Lock()
	prev := lastResponse
	liveMu.Unlock()
	if prev != 0 {
		Free(prev)
	}

	ptr := retain(append([]byte(nil), data...))

	liveMu.Lock()
	lastResponse = ptr
	liveMu.Unlock()

	return PackResult(ptr, uint32(len(data)))
}
