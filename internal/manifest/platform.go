package manifest

import "runtime"

// Platform names a host platform a plugin may target.
type Platform string

// Known platforms.
const (
	PlatformUniversal Platform = "universal"
	PlatformDesktop   Platform = "desktop"
	PlatformMobile    Platform = "mobile"
	PlatformWindows   Platform = "windows"
	PlatformMacOS     Platform = "macos"
	PlatformLinux     Platform = "linux"
	PlatformIOS       Platform = "ios"
	PlatformAndroid   Platform = "android"
)

// Native platform bitmask values.
const (
	PlatformFlagLinux     uint32 = 1 << 0
	PlatformFlagWindows   uint32 = 1 << 1
	PlatformFlagMacOS     uint32 = 1 << 2
	PlatformFlagAndroid   uint32 = 1 << 3
	PlatformFlagIOS       uint32 = 1 << 4
	PlatformFlagUniversal uint32 = 0xFFFFFFFF
)

// CurrentPlatform returns the platform the host is running on.
func CurrentPlatform() Platform {
	return platformFromGOOS(runtime.GOOS)
}

func platformFromGOOS(goos string) Platform {
	switch goos {
	case "linux":
		return PlatformLinux
	case "windows":
		return PlatformWindows
	case "darwin":
		return PlatformMacOS
	case "ios":
		return PlatformIOS
	case "android":
		return PlatformAndroid
	default:
		return PlatformUniversal
	}
}

// IsDesktop reports whether p is a desktop operating system.
func (p Platform) IsDesktop() bool {
	return p == PlatformWindows || p == PlatformMacOS || p == PlatformLinux
}

// IsMobile reports whether p is a mobile operating system.
func (p Platform) IsMobile() bool {
	return p == PlatformIOS || p == PlatformAndroid
}

// Matches reports whether a declared platform p admits the concrete platform host.
func (p Platform) Matches(host Platform) bool {
	switch p {
	case PlatformUniversal:
		return true
	case PlatformDesktop:
		return host.IsDesktop()
	case PlatformMobile:
		return host.IsMobile()
	default:
		return p == host
	}
}

// Flag returns the native bitmask value for a concrete platform.
func (p Platform) Flag() uint32 {
	switch p {
	case PlatformLinux:
		return PlatformFlagLinux
	case PlatformWindows:
		return PlatformFlagWindows
	case PlatformMacOS:
		return PlatformFlagMacOS
	case PlatformAndroid:
		return PlatformFlagAndroid
	case PlatformIOS:
		return PlatformFlagIOS
	case PlatformDesktop:
		return PlatformFlagLinux | PlatformFlagWindows | PlatformFlagMacOS
	case PlatformMobile:
		return PlatformFlagAndroid | PlatformFlagIOS
	default:
		return PlatformFlagUniversal
	}
}

// PlatformsFromFlags decodes a native platform bitmask. Zero and the
// universal mask both decode to no restriction.
func PlatformsFromFlags(flags uint32) []Platform {
	if flags == 0 || flags == PlatformFlagUniversal {
		return nil
	}

	var out []Platform
	for _, p := range []Platform{PlatformLinux, PlatformWindows, PlatformMacOS, PlatformAndroid, PlatformIOS} {
		if flags&p.Flag() != 0 {
			out = append(out, p)
		}
	}

	return out
}
