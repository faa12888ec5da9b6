package media

// SearchRequest is the payload of a search call.
type SearchRequest struct {
	Query string `json:"query"`
	Page  uint32 `json:"page"`
}

// PageRequest is the payload of getPopular and getLatest calls.
type PageRequest struct {
	Page uint32 `json:"page"`
}

// EpisodesRequest is the payload of a getEpisodes call.
type EpisodesRequest struct {
	AnimeID string `json:"animeId"`
	Page    uint32 `json:"page"`
}

// StreamsRequest is the payload of a getStreams call.
type StreamsRequest struct {
	AnimeID   string `json:"animeId"`
	EpisodeID string `json:"episodeId"`
}

// DetailsRequest is the payload of a getAnimeDetails call.
type DetailsRequest struct {
	AnimeID string `json:"animeId"`
}

// URLRequest is the payload of extractStream, getHosterInfo and getDownloadLink calls.
type URLRequest struct {
	URL string `json:"url"`
}

// DecryptRequest is the payload of a decryptStream call.
type DecryptRequest struct {
	EncryptedData string `json:"encryptedData"`
}
