//go:build windows

package native

import (
	"github.com/andrei-cloud/go_ayoto/internal/errorcodes"
	"golang.org/x/sys/windows"
)

type winLibrary struct {
	handle windows.Handle
}

// SystemOpener opens libraries with LoadLibrary.
func SystemOpener() Opener {
	return OpenerFunc(func(path string) (Library, error) {
		h, err := windows.LoadLibrary(path)
		if err != nil {
			return nil, errorcodes.ErrLibraryLoad.Withf("LoadLibrary %s", path).Wrap(err)
		}

		return &winLibrary{handle: h}, nil
	})
}

func (l *winLibrary) Symbol(name string) (uintptr, error) {
	sym, err := windows.GetProcAddress(l.handle, name)
	if err != nil {
		return 0, errorcodes.ErrEntryPointMissing.Withf("plugin missing %s function", name).Wrap(err)
	}

	return sym, nil
}

func (l *winLibrary) Close() error {
	return windows.FreeLibrary(l.handle)
}
