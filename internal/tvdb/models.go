package tvdb

import "strings"

// SeriesRecord is the canonical series identity returned by the provider.
// Records are immutable once fetched; the client's cache owns them.
type SeriesRecord struct {
	ID            int      `json:"id"`
	CanonicalName string   `json:"seriesName"`
	Aliases       []string `json:"aliases"`
	FirstAired    string   `json:"firstAired"`
	Status        string   `json:"status"`
	Overview      string   `json:"overview"`
}

// EpisodeRecord is the canonical identity of one aired episode.
type EpisodeRecord struct {
	ID             int    `json:"id"`
	SeriesID       int    `json:"-"`
	Season         int    `json:"airedSeason"`
	Episode        int    `json:"airedEpisodeNumber"`
	CanonicalTitle string `json:"episodeName"`
	AirDate        string `json:"firstAired"`
}

// MatchesName reports whether query equals the canonical name or one of the
// aliases after normalization. Matching is exact; near-misses do not count.
func (s SeriesRecord) MatchesName(query string) bool {
	normalized := NormalizeQuery(query)
	if normalized == "" {
		return false
	}
	if NormalizeQuery(s.CanonicalName) == normalized {
		return true
	}
	for _, alias := range s.Aliases {
		if NormalizeQuery(alias) == normalized {
			return true
		}
	}
	return false
}

// NormalizeQuery lowercases, trims, and collapses interior whitespace so that
// lookups for "Show  Name " and "show name" share one cache key.
func NormalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(query))), " ")
}
