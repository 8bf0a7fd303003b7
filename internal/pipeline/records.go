package pipeline

import (
	"time"

	"mediaguard/internal/providers"
	"mediaguard/internal/store"
)

func toLookupRecord(fileID int64, res *providers.Result, retrievedAt time.Time) store.LookupRecord {
	rec := store.LookupRecord{
		FileID:      fileID,
		Provider:    res.Provider,
		ProviderID:  res.ProviderID,
		Title:       res.Title,
		Year:        res.Year,
		IMDbID:      res.IMDbID,
		TMDbID:      res.TMDbID,
		TVDbID:      res.TVDbID,
		MediaType:   toStoreMediaType(res.MediaType),
		RawPayload:  string(res.Raw),
		RetrievedAt: retrievedAt,
	}
	if res.HasDuration() {
		ms := res.ExpectedDuration.Milliseconds()
		rec.ExpectedDurationMS = &ms
	}
	if res.Season > 0 {
		season := res.Season
		rec.Season = &season
	}
	if res.Episode > 0 {
		episode := res.Episode
		rec.Episode = &episode
	}
	return rec
}

func toStoreMediaType(mt providers.MediaType) store.MediaType {
	switch mt {
	case providers.MediaMovie:
		return store.MediaMovie
	case providers.MediaEpisode:
		return store.MediaEpisode
	default:
		return store.MediaUnknown
	}
}
