//go:build (darwin || freebsd || linux) && !android && (amd64 || arm64)

package native

import (
	"github.com/andrei-cloud/go_ayoto/internal/errorcodes"
	"github.com/ebitengine/purego"
)

type dlLibrary struct {
	handle uintptr
}

// SystemOpener opens libraries with dlopen.
func SystemOpener() Opener {
	return OpenerFunc(func(path string) (Library, error) {
		h, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_LOCAL)
		if err != nil {
			return nil, errorcodes.ErrLibraryLoad.Withf("dlopen %s", path).Wrap(err)
		}

		return &dlLibrary{handle: h}, nil
	})
}

func (l *dlLibrary) Symbol(name string) (uintptr, error) {
	sym, err := purego.Dlsym(l.handle, name)
	if err != nil {
		return 0, errorcodes.ErrEntryPointMissing.Withf("plugin missing %s function", name).Wrap(err)
	}

	return sym, nil
}

func (l *dlLibrary) Close() error {
	return purego.Dlclose(l.handle)
}
