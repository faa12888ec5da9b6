package dispatch

import (
	"context"

	"github.com/andrei-cloud/go_ayoto/internal/manifest"
	"github.com/andrei-cloud/go_ayoto/pkg/media"
)

// Search queries a content provider.
func (d *Dispatcher) Search(ctx context.Context, t Target, query string, page uint32) (*media.AnimeList, error) {
	return call[media.AnimeList](ctx, d, t, manifest.CapSearch, media.SearchRequest{Query: query, Page: page})
}

// GetPopular lists popular titles.
func (d *Dispatcher) GetPopular(ctx context.Context, t Target, page uint32) (*media.AnimeList, error) {
	return call[media.AnimeList](ctx, d, t, manifest.CapGetPopular, media.PageRequest{Page: page})
}

// GetLatest lists recently updated titles.
func (d *Dispatcher) GetLatest(ctx context.Context, t Target, page uint32) (*media.AnimeList, error) {
	return call[media.AnimeList](ctx, d, t, manifest.CapGetLatest, media.PageRequest{Page: page})
}

// GetEpisodes lists the episodes of a title.
func (d *Dispatcher) GetEpisodes(ctx context.Context, t Target, animeID string, page uint32) (*media.EpisodeList, error) {
	return call[media.EpisodeList](ctx, d, t, manifest.CapGetEpisodes,
		media.EpisodesRequest{AnimeID: animeID, Page: page})
}

// GetStreams lists the stream sources of an episode.
func (d *Dispatcher) GetStreams(ctx context.Context, t Target, animeID, episodeID string) (*media.StreamSourceList, error) {
	return call[media.StreamSourceList](ctx, d, t, manifest.CapGetStreams,
		media.StreamsRequest{AnimeID: animeID, EpisodeID: episodeID})
}

// GetAnimeDetails returns one title.
func (d *Dispatcher) GetAnimeDetails(ctx context.Context, t Target, animeID string) (*media.Anime, error) {
	return call[media.Anime](ctx, d, t, manifest.CapGetAnimeDetails, media.DetailsRequest{AnimeID: animeID})
}

// ExtractStream resolves a hoster page into a playable source.
func (d *Dispatcher) ExtractStream(ctx context.Context, t Target, url string) (*media.StreamSource, error) {
	return call[media.StreamSource](ctx, d, t, manifest.CapExtractStream, media.URLRequest{URL: url})
}

// GetHosterInfo describes the hoster serving url.
func (d *Dispatcher) GetHosterInfo(ctx context.Context, t Target, url string) (*media.HosterInfo, error) {
	return call[media.HosterInfo](ctx, d, t, manifest.CapGetHosterInfo, media.URLRequest{URL: url})
}

// DecryptStream turns an obfuscated payload into a source.
func (d *Dispatcher) DecryptStream(ctx context.Context, t Target, data string) (*media.StreamSource, error) {
	return call[media.StreamSource](ctx, d, t, manifest.CapDecryptStream, media.DecryptRequest{EncryptedData: data})
}

// GetDownloadLink returns a direct download URL for url.
func (d *Dispatcher) GetDownloadLink(ctx context.Context, t Target, url string) (*media.DownloadLink, error) {
	return call[media.DownloadLink](ctx, d, t, manifest.CapGetDownloadLink, media.URLRequest{URL: url})
}
