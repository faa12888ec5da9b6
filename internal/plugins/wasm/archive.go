package wasm

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"io"
	"os"
	"path/filepath"

	"github.com/andrei-cloud/go_ayoto/internal/errorcodes"
	"github.com/andrei-cloud/go_ayoto/internal/manifest"
)

// Archive member names.
const (
	ManifestFile = "manifest.json"
	ModuleFile   = "plugin.wasm"

	// MaxIconSize caps embedded icons; larger icons are ignored.
	MaxIconSize = 1 << 20

	// ArchiveExtension is the extension of WASM plugin archives.
	ArchiveExtension = ".zpe"
)

// iconFiles lists accepted icon members in lookup order.
var iconFiles = []struct {
	name string
	mime string
}{
	{"icon.png", "image/png"},
	{"icon.ico", "image/x-icon"},
	{"icon.jpg", "image/jpeg"},
	{"icon.jpeg", "image/jpeg"},
	{"icon.svg", "image/svg+xml"},
	{"icon.webp", "image/webp"},
}

// Bundle is the decoded content of a plugin archive.
type Bundle struct {
	Manifest *manifest.Manifest
	Module   []byte
	// IconDataURI is set when an icon within MaxIconSize was embedded.
	IconDataURI string
}

// ReadArchiveFile opens a .zpe archive from disk.
func ReadArchiveFile(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errorcodes.ErrArchive.Withf("failed to read %s", path).Wrap(err)
	}

	return ReadArchive(data)
}

// ReadArchive decodes an in-memory archive.
func ReadArchive(data []byte) (*Bundle, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errorcodes.ErrArchive.Withf("failed to open archive").Wrap(err)
	}

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	raw, err := readMember(files, ManifestFile, 0)
	if err != nil {
		return nil, err
	}
	m, err := manifest.Parse(raw)
	if err != nil {
		return nil, err
	}

	module, err := readMember(files, ModuleFile, 0)
	if err != nil {
		return nil, err
	}

	b := &Bundle{Manifest: m, Module: module}
	b.IconDataURI = readIcon(files)

	return b, nil
}

func readMember(files map[string]*zip.File, name string, limit int64) ([]byte, error) {
	f, ok := files[name]
	if !ok {
		return nil, errorcodes.ErrArchive.Withf("%s not found in archive", name)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, errorcodes.ErrArchive.Withf("failed to open %s", name).Wrap(err)
	}
	defer rc.Close()

	var r io.Reader = rc
	if limit > 0 {
		r = io.LimitReader(rc, limit+1)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errorcodes.ErrArchive.Withf("failed to read %s", name).Wrap(err)
	}

	return data, nil
}

// readIcon returns the first usable icon as a data URI, or "".
func readIcon(files map[string]*zip.File) string {
	for _, icon := range iconFiles {
		f, ok := files[icon.name]
		if !ok {
			continue
		}
		if f.UncompressedSize64 > MaxIconSize {
			continue
		}

		data, err := readMember(files, icon.name, MaxIconSize)
		if err != nil || len(data) == 0 || len(data) > MaxIconSize {
			continue
		}

		return "data:" + icon.mime + ";base64," + base64.StdEncoding.EncodeToString(data)
	}

	return ""
}

// Pack writes dir's manifest, module and first icon into an archive on w.
// The manifest must parse and validate.
func Pack(dir string, w io.Writer) error {
	raw, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return errorcodes.ErrArchive.Withf("%s not found in %s", ManifestFile, dir).Wrap(err)
	}
	m, err := manifest.Parse(raw)
	if err != nil {
		return err
	}
	if err := m.Validate().Err(); err != nil {
		return err
	}

	module, err := os.ReadFile(filepath.Join(dir, ModuleFile))
	if err != nil {
		return errorcodes.ErrArchive.Withf("%s not found in %s", ModuleFile, dir).Wrap(err)
	}

	members := []struct {
		name string
		data []byte
	}{
		{ManifestFile, raw},
		{ModuleFile, module},
	}
	for _, icon := range iconFiles {
		data, err := os.ReadFile(filepath.Join(dir, icon.name))
		if err != nil || len(data) == 0 || len(data) > MaxIconSize {
			continue
		}
		members = append(members, struct {
			name string
			data []byte
		}{icon.name, data})

		break
	}

	zw := zip.NewWriter(w)
	for _, member := range members {
		fw, err := zw.Create(member.name)
		if err != nil {
			return errorcodes.ErrArchive.Withf("failed to add %s", member.name).Wrap(err)
		}
		if _, err := fw.Write(member.data); err != nil {
			return errorcodes.ErrArchive.Withf("failed to write %s", member.name).Wrap(err)
		}
	}
	if err := zw.Close(); err != nil {
		return errorcodes.ErrArchive.Withf("failed to finish archive").Wrap(err)
	}

	return nil
}
