package cliutil

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	t.Parallel()

	v := struct {
		ID      string `json:"id"      yaml:"id"`
		Enabled bool   `json:"enabled" yaml:"enabled"`
	}{ID: "echo", Enabled: true}

	tests := []struct {
		name     string
		format   string
		expected string
		wantErr  bool
	}{
		{name: "json", format: FormatJSON, expected: "{\n  \"id\": \"echo\",\n  \"enabled\": true\n}\n"},
		{name: "yaml", format: FormatYAML, expected: "id: echo\nenabled: true\n"},
		{name: "table is not structured", format: FormatTable, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			err := Render(&buf, tt.format, v)
			if tt.wantErr {
				assert.Error(t, err)

				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, buf.String())
		})
	}
}
