package resolve

import (
	"context"
	"fmt"

	"github.com/Digital-Shane/episode-tidy/internal/media"
	"github.com/Digital-Shane/episode-tidy/internal/scan"
	"github.com/Digital-Shane/episode-tidy/internal/tvdb"
)

// MetadataClient is the slice of the TVDB client the resolver needs. Keeping
// it an interface lets tests substitute a canned provider and keeps the wire
// format knowledge inside internal/tvdb so the provider could be swapped.
type MetadataClient interface {
	FindSeries(ctx context.Context, query string) ([]tvdb.SeriesRecord, error)
	GetEpisodes(ctx context.Context, seriesID, season int) ([]tvdb.EpisodeRecord, error)
}

// Confidence tiers a resolved match. The resolver only produces Exact:
// fuzzy series matching is deliberately not implemented, since a near-miss
// rename is worse than no rename. Near-miss titles come back Unresolved.
type Confidence string

const (
	Exact Confidence = "exact"
	Fuzzy Confidence = "fuzzy"
)

// Match links one local file to a canonical series/episode record.
type Match struct {
	Entry      scan.RawEntry
	Series     tvdb.SeriesRecord
	Episode    tvdb.EpisodeRecord
	Confidence Confidence
	Source     media.Candidate
}

// UnresolvedReason says why no match was produced for a file.
type UnresolvedReason string

const (
	NoSeriesMatch   UnresolvedReason = "no_series_match"
	NoEpisodeMatch  UnresolvedReason = "no_episode_match"
	AmbiguousSeries UnresolvedReason = "ambiguous_series"
)

// Unresolved is the non-error outcome of resolution failing on metadata
// grounds. Distinct from a lookup error: the provider answered, the answer
// just doesn't anchor this file.
type Unresolved struct {
	Reason UnresolvedReason
}

func (u *Unresolved) Error() string {
	return fmt.Sprintf("unresolved: %s", u.Reason)
}

// Resolve walks candidates in parser-priority order and anchors the file to a
// series whose canonical name or alias matches the candidate text exactly.
// Ambiguous or missing series fall through to the next candidate. Lookup
// errors (transient, malformed, auth) propagate to the caller; *Unresolved is
// returned when the metadata is authoritative but doesn't match.
func Resolve(ctx context.Context, client MetadataClient, entry scan.RawEntry, candidates []media.Candidate) (*Match, error) {
	sawAmbiguous := false

	for _, candidate := range candidates {
		if candidate.SeriesText == "" {
			continue
		}

		records, err := client.FindSeries(ctx, candidate.SeriesText)
		if err != nil {
			if tvdb.IsNotFound(err) {
				continue
			}
			return nil, err
		}

		matches := exactMatches(records, candidate.SeriesText)
		if len(matches) != 1 {
			if len(matches) > 1 {
				sawAmbiguous = true
			}
			continue
		}
		anchor := matches[0]

		episodes, err := client.GetEpisodes(ctx, anchor.ID, candidate.Season)
		if err != nil {
			if tvdb.IsNotFound(err) {
				// Series matched but the season isn't known; don't guess.
				return nil, &Unresolved{Reason: NoEpisodeMatch}
			}
			return nil, err
		}

		for _, ep := range episodes {
			if ep.Season == candidate.Season && ep.Episode == candidate.Episode {
				return &Match{
					Entry:      entry,
					Series:     anchor,
					Episode:    ep,
					Confidence: Exact,
					Source:     candidate,
				}, nil
			}
		}
		return nil, &Unresolved{Reason: NoEpisodeMatch}
	}

	if sawAmbiguous {
		return nil, &Unresolved{Reason: AmbiguousSeries}
	}
	return nil, &Unresolved{Reason: NoSeriesMatch}
}

func exactMatches(records []tvdb.SeriesRecord, text string) []tvdb.SeriesRecord {
	var matches []tvdb.SeriesRecord
	for _, record := range records {
		if record.MatchesName(text) {
			matches = append(matches, record)
		}
	}
	return matches
}
