// Package media defines the result and request payloads exchanged between
// the host and its content plugins. Field names are the JSON wire names used
// by both the native and the WASM backends.
package media

import (
	"encoding/json"
	"strings"
)

// StreamFormat identifies a stream container or protocol.
type StreamFormat string

// Known stream formats.
const (
	FormatM3U8    StreamFormat = "m3u8"
	FormatMP4     StreamFormat = "mp4"
	FormatMKV     StreamFormat = "mkv"
	FormatWebM    StreamFormat = "webm"
	FormatTorrent StreamFormat = "torrent"
	FormatUnknown StreamFormat = "unknown"
)

// ParseStreamFormat maps a format name or alias to a StreamFormat.
func ParseStreamFormat(s string) StreamFormat {
	switch strings.ToLower(s) {
	case "m3u8", "hls":
		return FormatM3U8
	case "mp4":
		return FormatMP4
	case "mkv":
		return FormatMKV
	case "webm":
		return FormatWebM
	case "torrent", "magnet":
		return FormatTorrent
	default:
		return FormatUnknown
	}
}

// Anime is an anime summary or detail record.
type Anime struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	AltTitles    []string `json:"altTitles,omitempty"`
	CoverURL     string   `json:"coverUrl,omitempty"`
	BannerURL    string   `json:"bannerUrl,omitempty"`
	Description  string   `json:"description,omitempty"`
	AnilistID    *uint32  `json:"anilistId,omitempty"`
	MalID        *uint32  `json:"malId,omitempty"`
	EpisodeCount *uint32  `json:"episodeCount,omitempty"`
	Year         *uint32  `json:"year,omitempty"`
	Rating       *float32 `json:"rating,omitempty"`
	Status       string   `json:"status,omitempty"`
	MediaType    string   `json:"mediaType,omitempty"`
	Genres       []string `json:"genres,omitempty"`
	IsAiring     *bool    `json:"isAiring,omitempty"`
}

// AnimeList is a page of anime.
type AnimeList struct {
	Items        []Anime `json:"items"`
	HasNextPage  bool    `json:"hasNextPage"`
	CurrentPage  uint32  `json:"currentPage"`
	TotalResults *uint32 `json:"totalResults,omitempty"`
}

// Episode is an episode summary.
type Episode struct {
	ID           string  `json:"id"`
	Number       uint32  `json:"number"`
	Title        string  `json:"title,omitempty"`
	ThumbnailURL string  `json:"thumbnailUrl,omitempty"`
	Description  string  `json:"description,omitempty"`
	Duration     *uint32 `json:"duration,omitempty"`
	AirDate      string  `json:"airDate,omitempty"`
	IsFiller     *bool   `json:"isFiller,omitempty"`
}

// EpisodeList is a page of episodes.
type EpisodeList struct {
	Items         []Episode `json:"items"`
	HasNextPage   bool      `json:"hasNextPage"`
	CurrentPage   uint32    `json:"currentPage"`
	TotalEpisodes uint32    `json:"totalEpisodes"`
}

// StreamSource is a playable stream.
type StreamSource struct {
	URL            string            `json:"url"`
	Quality        string            `json:"quality"`
	Server         string            `json:"server,omitempty"`
	Format         StreamFormat      `json:"format"`
	Anime4KSupport bool              `json:"anime4kSupport,omitempty"`
	IsDefault      bool              `json:"isDefault"`
	Headers        map[string]string `json:"headers,omitempty"`
}

// StreamSourceList wraps the stream sources of one episode.
type StreamSourceList struct {
	Items []StreamSource `json:"items"`
}

// Default returns the source flagged as default, or the first one.
func (l StreamSourceList) Default() (StreamSource, bool) {
	for _, s := range l.Items {
		if s.IsDefault {
			return s, true
		}
	}
	if len(l.Items) > 0 {
		return l.Items[0], true
	}

	return StreamSource{}, false
}

// HosterInfo describes a video hoster known to a stream extractor.
type HosterInfo struct {
	Name               string   `json:"name"`
	Domain             string   `json:"domain"`
	RequiresDecryption bool     `json:"requiresDecryption"`
	IsSupported        bool     `json:"isSupported"`
	Qualities          []string `json:"qualities,omitempty"`
}

// DownloadLink is a direct download URL.
type DownloadLink struct {
	URL string `json:"url"`
}

// UnmarshalJSON accepts either {"url": "..."} or a bare JSON string.
func (d *DownloadLink) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		d.URL = s

		return nil
	}

	type plain DownloadLink
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*d = DownloadLink(p)

	return nil
}
