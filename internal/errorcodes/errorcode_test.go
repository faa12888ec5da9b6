package errorcodes

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPluginErrorFormatting(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      PluginError
		expected string
	}{
		{
			name:     "bare",
			err:      ErrDisabled,
			expected: "DS: plugin is disabled",
		},
		{
			name:     "with detail",
			err:      ErrNotFound.Withf("plugin %q", "demo"),
			expected: `NF: plugin not found: plugin "demo"`,
		},
		{
			name:     "with detail and cause",
			err:      ErrArchive.Withf("manifest.json").Wrap(io.ErrUnexpectedEOF),
			expected: "AR: invalid plugin archive: manifest.json: unexpected EOF",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestPluginErrorMatching(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("load failed: %w", ErrAbiMismatch.Withf("plugin has v99, expected v1"))

	assert.ErrorIs(t, err, ErrAbiMismatch)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "AM", CodeOf(err))
	assert.Empty(t, CodeOf(errors.New("plain")))

	wrapped := ErrGuestExecution.Wrap(io.EOF)
	assert.ErrorIs(t, wrapped, io.EOF)
	assert.Equal(t, "plugin execution failed: EOF", wrapped.Message())
	assert.Equal(t, "GE", wrapped.CodeOnly())
}

func TestFromWire(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
	}{
		{"bare", ErrDisabled},
		{"detail", ErrNotFound.Withf("plugin '%s' not found", "wasm:x")},
		{"cause", ErrGuestExecution.Withf("search").Wrap(io.EOF)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := FromWire(CodeOf(tt.err), tt.err.Error())
			assert.Equal(t, tt.err.Error(), got.Error())
			assert.ErrorIs(t, got, tt.err)
		})
	}

	unknown := FromWire("ZZ", "ZZ: something odd")
	assert.Equal(t, "ZZ: something odd", unknown.Error())

	_, ok := Lookup("ZZ")
	assert.False(t, ok)
}
