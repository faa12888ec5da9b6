package testutil

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// ManifestJSON returns a minimal valid manifest declaring caps.
func ManifestJSON(t testing.TB, id string, caps map[string]bool, extra map[string]any) []byte {
	t.Helper()

	doc := map[string]any{
		"id":                id,
		"name":              id + " plugin",
		"version":           "1.0.0",
		"targetHostVersion": "1.0.0",
		"pluginType":        "contentProvider",
		"capabilities":      caps,
		"abiVersion":        1,
	}
	for k, v := range extra {
		doc[k] = v
	}

	out, err := json.Marshal(doc)
	require.NoError(t, err)

	return out
}

// Archive zips files into an in-memory plugin archive.
func Archive(t testing.TB, files map[string][]byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	return buf.Bytes()
}

// WriteFile writes data to dir/name and returns the path.
func WriteFile(t testing.TB, dir, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	return path
}
