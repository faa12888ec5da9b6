package manifest

import (
	"fmt"
	"strings"
)

// Capability names a logical plugin operation.
type Capability string

// Known capabilities.
const (
	CapSearch          Capability = "search"
	CapGetPopular      Capability = "getPopular"
	CapGetLatest       Capability = "getLatest"
	CapGetEpisodes     Capability = "getEpisodes"
	CapGetStreams      Capability = "getStreams"
	CapGetAnimeDetails Capability = "getAnimeDetails"
	CapScraping        Capability = "scraping"
	CapExtractStream   Capability = "extractStream"
	CapGetHosterInfo   Capability = "getHosterInfo"
	CapDecryptStream   Capability = "decryptStream"
	CapGetDownloadLink Capability = "getDownloadLink"
)

// Native capability bitmask values.
const (
	FlagSearch          uint32 = 1 << 0
	FlagGetPopular      uint32 = 1 << 1
	FlagGetLatest       uint32 = 1 << 2
	FlagGetEpisodes     uint32 = 1 << 3
	FlagGetStreams      uint32 = 1 << 4
	FlagGetAnimeDetails uint32 = 1 << 5
	FlagScraping        uint32 = 1 << 6
	FlagExtractStream   uint32 = 1 << 8
	FlagGetHosterInfo   uint32 = 1 << 9
	FlagDecryptStream   uint32 = 1 << 10
	FlagGetDownloadLink uint32 = 1 << 11
)

// AllCapabilities lists every capability in declaration order.
var AllCapabilities = []Capability{
	CapSearch,
	CapGetPopular,
	CapGetLatest,
	CapGetEpisodes,
	CapGetStreams,
	CapGetAnimeDetails,
	CapScraping,
	CapExtractStream,
	CapGetHosterInfo,
	CapDecryptStream,
	CapGetDownloadLink,
}

var capabilityFlags = map[Capability]uint32{
	CapSearch:          FlagSearch,
	CapGetPopular:      FlagGetPopular,
	CapGetLatest:       FlagGetLatest,
	CapGetEpisodes:     FlagGetEpisodes,
	CapGetStreams:      FlagGetStreams,
	CapGetAnimeDetails: FlagGetAnimeDetails,
	CapScraping:        FlagScraping,
	CapExtractStream:   FlagExtractStream,
	CapGetHosterInfo:   FlagGetHosterInfo,
	CapDecryptStream:   FlagDecryptStream,
	CapGetDownloadLink: FlagGetDownloadLink,
}

// ParseCapability resolves a capability name, case-insensitively.
func ParseCapability(name string) (Capability, error) {
	for _, c := range AllCapabilities {
		if strings.EqualFold(string(c), name) {
			return c, nil
		}
	}

	return "", fmt.Errorf("unknown capability %q", name)
}

// Flag returns the native bitmask value of c.
func (c Capability) Flag() uint32 {
	return capabilityFlags[c]
}

// Capabilities is the set of operations a plugin declares. The flags are
// trusted, not verified against the plugin's actual exports.
type Capabilities struct {
	Search          bool `json:"search,omitempty"          yaml:"search,omitempty"`
	GetPopular      bool `json:"getPopular,omitempty"      yaml:"getPopular,omitempty"`
	GetLatest       bool `json:"getLatest,omitempty"       yaml:"getLatest,omitempty"`
	GetEpisodes     bool `json:"getEpisodes,omitempty"     yaml:"getEpisodes,omitempty"`
	GetStreams      bool `json:"getStreams,omitempty"      yaml:"getStreams,omitempty"`
	GetAnimeDetails bool `json:"getAnimeDetails,omitempty" yaml:"getAnimeDetails,omitempty"`
	Scraping        bool `json:"scraping,omitempty"        yaml:"scraping,omitempty"`
	ExtractStream   bool `json:"extractStream,omitempty"   yaml:"extractStream,omitempty"`
	GetHosterInfo   bool `json:"getHosterInfo,omitempty"   yaml:"getHosterInfo,omitempty"`
	DecryptStream   bool `json:"decryptStream,omitempty"   yaml:"decryptStream,omitempty"`
	GetDownloadLink bool `json:"getDownloadLink,omitempty" yaml:"getDownloadLink,omitempty"`
}

func (c *Capabilities) field(capability Capability) *bool {
	switch capability {
	case CapSearch:
		return &c.Search
	case CapGetPopular:
		return &c.GetPopular
	case CapGetLatest:
		return &c.GetLatest
	case CapGetEpisodes:
		return &c.GetEpisodes
	case CapGetStreams:
		return &c.GetStreams
	case CapGetAnimeDetails:
		return &c.GetAnimeDetails
	case CapScraping:
		return &c.Scraping
	case CapExtractStream:
		return &c.ExtractStream
	case CapGetHosterInfo:
		return &c.GetHosterInfo
	case CapDecryptStream:
		return &c.DecryptStream
	case CapGetDownloadLink:
		return &c.GetDownloadLink
	default:
		return nil
	}
}

// Has reports whether capability is declared. Unknown capabilities are never declared.
func (c Capabilities) Has(capability Capability) bool {
	f := c.field(capability)

	return f != nil && *f
}

// Set declares or clears capability. Unknown capabilities are ignored.
func (c *Capabilities) Set(capability Capability, on bool) {
	if f := c.field(capability); f != nil {
		*f = on
	}
}

// Names returns the declared capabilities in declaration order.
func (c Capabilities) Names() []Capability {
	var out []Capability
	for _, capability := range AllCapabilities {
		if c.Has(capability) {
			out = append(out, capability)
		}
	}

	return out
}

// Count returns the number of declared capabilities.
func (c Capabilities) Count() int {
	return len(c.Names())
}

// Flags encodes the set as the native bitmask.
func (c Capabilities) Flags() uint32 {
	var flags uint32
	for _, capability := range c.Names() {
		flags |= capability.Flag()
	}

	return flags
}

// CapabilitiesFromFlags decodes a native bitmask. Unknown bits are dropped.
func CapabilitiesFromFlags(flags uint32) Capabilities {
	var c Capabilities
	for _, capability := range AllCapabilities {
		if flags&capability.Flag() != 0 {
			c.Set(capability, true)
		}
	}

	return c
}
