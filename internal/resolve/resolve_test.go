package resolve

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Digital-Shane/episode-tidy/internal/media"
	"github.com/Digital-Shane/episode-tidy/internal/scan"
	"github.com/Digital-Shane/episode-tidy/internal/tvdb"
)

// fakeClient serves canned metadata keyed by normalized query / series id.
type fakeClient struct {
	series   map[string][]tvdb.SeriesRecord
	episodes map[int][]tvdb.EpisodeRecord
	err      error
}

func (f *fakeClient) FindSeries(ctx context.Context, query string) ([]tvdb.SeriesRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	records, ok := f.series[tvdb.NormalizeQuery(query)]
	if !ok {
		return nil, &tvdb.LookupError{Kind: tvdb.LookupNotFound, Query: query}
	}
	return records, nil
}

func (f *fakeClient) GetEpisodes(ctx context.Context, seriesID, season int) ([]tvdb.EpisodeRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	var eps []tvdb.EpisodeRecord
	for _, ep := range f.episodes[seriesID] {
		if ep.Season == season {
			eps = append(eps, ep)
		}
	}
	if len(eps) == 0 {
		return nil, &tvdb.LookupError{Kind: tvdb.LookupNotFound}
	}
	return eps, nil
}

func showNameClient() *fakeClient {
	return &fakeClient{
		series: map[string][]tvdb.SeriesRecord{
			"show name": {{ID: 42, CanonicalName: "Show Name", Aliases: []string{"The Show"}}},
		},
		episodes: map[int][]tvdb.EpisodeRecord{
			42: {
				{ID: 1, Season: 1, Episode: 1, CanonicalTitle: "Pilot"},
				{ID: 2, Season: 1, Episode: 2, CanonicalTitle: "Pilot Returns"},
			},
		},
	}
}

func TestResolveExactMatch(t *testing.T) {
	e := scan.RawEntry{Path: "/tv/Show.Name.S01E02.mkv", Name: "Show.Name.S01E02.mkv", Ext: "mkv"}
	candidate := media.Candidate{SeriesText: "Show Name", Season: 1, Episode: 2, Pattern: media.PatternSeasonEpisode}

	got, err := Resolve(context.Background(), showNameClient(), e, []media.Candidate{candidate})
	if err != nil {
		t.Fatalf("Resolve() = %v", err)
	}
	want := &Match{
		Entry:      e,
		Series:     tvdb.SeriesRecord{ID: 42, CanonicalName: "Show Name", Aliases: []string{"The Show"}},
		Episode:    tvdb.EpisodeRecord{ID: 2, Season: 1, Episode: 2, CanonicalTitle: "Pilot Returns"},
		Confidence: Exact,
		Source:     candidate,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Resolve() mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveMatchesAlias(t *testing.T) {
	e := scan.RawEntry{Name: "The.Show.S01E01.mkv"}
	client := showNameClient()
	client.series["the show"] = client.series["show name"]

	got, err := Resolve(context.Background(), client, e, []media.Candidate{
		{SeriesText: "The Show", Season: 1, Episode: 1},
	})
	if err != nil {
		t.Fatalf("Resolve() = %v", err)
	}
	if got.Series.ID != 42 || got.Episode.CanonicalTitle != "Pilot" {
		t.Errorf("Resolve() = series %d episode %q, want 42/Pilot", got.Series.ID, got.Episode.CanonicalTitle)
	}
}

func TestResolveNoSeriesMatch(t *testing.T) {
	e := scan.RawEntry{Name: "Unknown.Show.S01E01.mkv"}
	_, err := Resolve(context.Background(), showNameClient(), e, []media.Candidate{
		{SeriesText: "Unknown Show", Season: 1, Episode: 1},
	})

	var u *Unresolved
	if !errors.As(err, &u) || u.Reason != NoSeriesMatch {
		t.Fatalf("Resolve() = %v, want unresolved %s", err, NoSeriesMatch)
	}
}

func TestResolveNoEpisodeMatch(t *testing.T) {
	tests := []struct {
		name      string
		candidate media.Candidate
	}{
		{name: "EpisodeNumberNotAired", candidate: media.Candidate{SeriesText: "Show Name", Season: 1, Episode: 99}},
		{name: "SeasonUnknown", candidate: media.Candidate{SeriesText: "Show Name", Season: 7, Episode: 1}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Resolve(context.Background(), showNameClient(), scan.RawEntry{}, []media.Candidate{tc.candidate})
			var u *Unresolved
			if !errors.As(err, &u) || u.Reason != NoEpisodeMatch {
				t.Fatalf("Resolve() = %v, want unresolved %s", err, NoEpisodeMatch)
			}
		})
	}
}

func TestResolveAmbiguousSeries(t *testing.T) {
	client := showNameClient()
	client.series["show name"] = []tvdb.SeriesRecord{
		{ID: 42, CanonicalName: "Show Name"},
		{ID: 43, CanonicalName: "Show Name"},
	}

	_, err := Resolve(context.Background(), client, scan.RawEntry{}, []media.Candidate{
		{SeriesText: "Show Name", Season: 1, Episode: 2},
	})
	var u *Unresolved
	if !errors.As(err, &u) || u.Reason != AmbiguousSeries {
		t.Fatalf("Resolve() = %v, want unresolved %s", err, AmbiguousSeries)
	}
}

func TestResolveNearMissIsNotAMatch(t *testing.T) {
	// The provider returns a similar series but nothing equal to the parsed
	// text, so resolution must refuse rather than guess.
	_, err := Resolve(context.Background(), showNameClient(), scan.RawEntry{}, []media.Candidate{
		{SeriesText: "Show Name", Season: 1, Episode: 2},
	})
	if err != nil {
		t.Fatalf("exact control case failed: %v", err)
	}

	client := showNameClient()
	client.series["show nam"] = client.series["show name"]
	_, err = Resolve(context.Background(), client, scan.RawEntry{}, []media.Candidate{
		{SeriesText: "Show Nam", Season: 1, Episode: 2},
	})
	var u *Unresolved
	if !errors.As(err, &u) || u.Reason != NoSeriesMatch {
		t.Fatalf("Resolve() = %v, want unresolved %s", err, NoSeriesMatch)
	}
}

func TestResolveFallsThroughToNextCandidate(t *testing.T) {
	// First candidate misses, second resolves.
	got, err := Resolve(context.Background(), showNameClient(), scan.RawEntry{}, []media.Candidate{
		{SeriesText: "Unknown Show", Season: 4, Episode: 5},
		{SeriesText: "Show Name", Season: 1, Episode: 2},
	})
	if err != nil {
		t.Fatalf("Resolve() = %v", err)
	}
	if got.Episode.CanonicalTitle != "Pilot Returns" {
		t.Errorf("Resolve() episode = %q, want %q", got.Episode.CanonicalTitle, "Pilot Returns")
	}
}

func TestResolvePropagatesLookupErrors(t *testing.T) {
	wantErr := &tvdb.LookupError{Kind: tvdb.LookupTransient, Query: "show name"}
	client := &fakeClient{err: wantErr}

	_, err := Resolve(context.Background(), client, scan.RawEntry{}, []media.Candidate{
		{SeriesText: "Show Name", Season: 1, Episode: 2},
	})
	var le *tvdb.LookupError
	if !errors.As(err, &le) || le.Kind != tvdb.LookupTransient {
		t.Fatalf("Resolve() = %v, want transient lookup error to propagate", err)
	}
}

func TestResolveEmptyCandidates(t *testing.T) {
	_, err := Resolve(context.Background(), showNameClient(), scan.RawEntry{}, nil)
	var u *Unresolved
	if !errors.As(err, &u) || u.Reason != NoSeriesMatch {
		t.Fatalf("Resolve() = %v, want unresolved %s", err, NoSeriesMatch)
	}
}
