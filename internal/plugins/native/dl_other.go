//go:build !windows && (!(darwin || freebsd || linux) || android || !(amd64 || arm64))

package native

import (
	"runtime"

	"github.com/andrei-cloud/go_ayoto/internal/errorcodes"
)

// SystemOpener rejects every library on platforms without a dynamic loader binding.
func SystemOpener() Opener {
	return OpenerFunc(func(string) (Library, error) {
		return nil, errorcodes.ErrPlatformIncompatible.Withf("native plugins are not supported on %s", runtime.GOOS)
	})
}

// SystemBinder rejects every library on platforms without a call binding.
func SystemBinder() Binder {
	return unsupportedBinder{}
}

type unsupportedBinder struct{}

func (unsupportedBinder) ABIVersion(Library) (uint32, error) {
	return 0, errorcodes.ErrPlatformIncompatible.Withf("native plugins are not supported on %s", runtime.GOOS)
}

func (unsupportedBinder) Create(Library) (Instance, error) {
	return nil, errorcodes.ErrPlatformIncompatible.Withf("native plugins are not supported on %s", runtime.GOOS)
}
