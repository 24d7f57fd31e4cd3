package tvdb

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// testServer wraps an httptest server that speaks enough of the v3 API for
// the client: /login issues a token and every other route requires it.
type testServer struct {
	*httptest.Server
	loginCount  int64
	searchCount int64
	episodeHits int64
	handle      func(w http.ResponseWriter, r *http.Request)
}

func newTestServer(t *testing.T, handle func(w http.ResponseWriter, r *http.Request)) *testServer {
	t.Helper()
	ts := &testServer{handle: handle}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" {
			atomic.AddInt64(&ts.loginCount, 1)
			fmt.Fprint(w, `{"token":"test-token"}`)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization header = %q, want %q", got, "Bearer test-token")
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"Error":"missing token"}`)
			return
		}
		ts.handle(w, r)
	}))
	t.Cleanup(ts.Server.Close)
	return ts
}

func newTestClient(t *testing.T, srv *testServer, opts Options) *Client {
	t.Helper()
	opts.BaseURL = srv.URL
	if opts.RequestsPerSec == 0 {
		opts.RequestsPerSec = 1000
	}
	if opts.Burst == 0 {
		opts.Burst = 1000
	}
	c := NewClient(Credentials{APIKey: "k", UserKey: "u", Username: "n"}, opts)
	if err := c.Login(context.Background()); err != nil {
		t.Fatalf("Login() = %v", err)
	}
	return c
}

func seriesHandler(ts *testServer) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/series" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		atomic.AddInt64(&ts.searchCount, 1)
		if r.URL.Query().Get("name") != "show name" {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"Error":"Resource not found"}`)
			return
		}
		fmt.Fprint(w, `{"data":[{"id":42,"seriesName":"Show Name","aliases":["The Show"]}]}`)
	}
}

func TestFindSeriesCachesResults(t *testing.T) {
	var ts *testServer
	ts = newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		seriesHandler(ts)(w, r)
	})
	c := newTestClient(t, ts, Options{})

	want := []SeriesRecord{{ID: 42, CanonicalName: "Show Name", Aliases: []string{"The Show"}}}
	for i := 0; i < 3; i++ {
		got, err := c.FindSeries(context.Background(), "Show  Name ")
		if err != nil {
			t.Fatalf("FindSeries() = %v", err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("FindSeries() mismatch (-want +got):\n%s", diff)
		}
	}
	if n := atomic.LoadInt64(&ts.searchCount); n != 1 {
		t.Errorf("search requests = %d, want 1 (repeat lookups must be served from cache)", n)
	}
}

func TestFindSeriesCachesNegativeResults(t *testing.T) {
	var ts *testServer
	ts = newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		seriesHandler(ts)(w, r)
	})
	c := newTestClient(t, ts, Options{})

	for i := 0; i < 2; i++ {
		_, err := c.FindSeries(context.Background(), "Unknown Show")
		if !IsNotFound(err) {
			t.Fatalf("FindSeries() = %v, want not-found lookup error", err)
		}
	}
	if n := atomic.LoadInt64(&ts.searchCount); n != 1 {
		t.Errorf("search requests = %d, want 1 (negative answers must be cached)", n)
	}
}

func TestFindSeriesCoalescesConcurrentLookups(t *testing.T) {
	var ts *testServer
	ts = newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		seriesHandler(ts)(w, r)
	})
	c := newTestClient(t, ts, Options{})

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.FindSeries(context.Background(), "Show Name")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("FindSeries() goroutine %d = %v", i, err)
		}
	}
	if n := atomic.LoadInt64(&ts.searchCount); n != 1 {
		t.Errorf("search requests = %d, want 1 (identical in-flight lookups must coalesce)", n)
	}
}

func TestFindSeriesRetriesTransientFailures(t *testing.T) {
	var attempts int64
	var ts *testServer
	ts = newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&attempts, 1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"Error":"upstream hiccup"}`)
			return
		}
		seriesHandler(ts)(w, r)
	})
	c := newTestClient(t, ts, Options{})

	got, err := c.FindSeries(context.Background(), "Show Name")
	if err != nil {
		t.Fatalf("FindSeries() = %v", err)
	}
	if len(got) != 1 || got[0].ID != 42 {
		t.Errorf("FindSeries() = %+v, want series 42", got)
	}
	if n := atomic.LoadInt64(&attempts); n != 3 {
		t.Errorf("attempts = %d, want 3 (two failures then success)", n)
	}
}

func TestFindSeriesExhaustsRetryBudget(t *testing.T) {
	var attempts int64
	ts := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&attempts, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	c := newTestClient(t, ts, Options{MaxRetries: 1})

	_, err := c.FindSeries(context.Background(), "Show Name")
	var le *LookupError
	if !errors.As(err, &le) || le.Kind != LookupTransient {
		t.Fatalf("FindSeries() = %v, want transient lookup error", err)
	}
	if n := atomic.LoadInt64(&attempts); n != 2 {
		t.Errorf("attempts = %d, want 2 (initial try plus one retry)", n)
	}

	// Transient failures must not poison the cache.
	if _, ok := c.lookupCached("series:show name"); ok {
		t.Error("transient failure was cached")
	}
}

func TestFindSeriesUnauthorizedIsFatal(t *testing.T) {
	var attempts int64
	ts := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&attempts, 1)
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"Error":"token expired"}`)
	})
	// Bypass the test server's own auth check: it already passed, the API
	// itself rejects the token.
	c := newTestClient(t, ts, Options{})

	_, err := c.FindSeries(context.Background(), "Show Name")
	var ae *AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("FindSeries() = %v, want auth error", err)
	}
	if n := atomic.LoadInt64(&attempts); n != 1 {
		t.Errorf("attempts = %d, want 1 (auth failures must not be retried)", n)
	}
}

func TestGetEpisodesWalksPages(t *testing.T) {
	var ts *testServer
	ts = newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/series/42/episodes/query" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		atomic.AddInt64(&ts.episodeHits, 1)
		if r.URL.Query().Get("airedSeason") != "1" {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"Error":"No results"}`)
			return
		}
		switch r.URL.Query().Get("page") {
		case "1":
			fmt.Fprint(w, `{"data":[
				{"id":1,"airedSeason":1,"airedEpisodeNumber":1,"episodeName":"Pilot"},
				{"id":2,"airedSeason":1,"airedEpisodeNumber":2,"episodeName":"Pilot Returns"}],
				"links":{"next":2,"last":2}}`)
		case "2":
			fmt.Fprint(w, `{"data":[
				{"id":3,"airedSeason":1,"airedEpisodeNumber":3,"episodeName":"Third"}],
				"links":{"next":null,"last":2}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	c := newTestClient(t, ts, Options{})

	got, err := c.GetEpisodes(context.Background(), 42, 1)
	if err != nil {
		t.Fatalf("GetEpisodes() = %v", err)
	}
	want := []EpisodeRecord{
		{ID: 1, SeriesID: 42, Season: 1, Episode: 1, CanonicalTitle: "Pilot"},
		{ID: 2, SeriesID: 42, Season: 1, Episode: 2, CanonicalTitle: "Pilot Returns"},
		{ID: 3, SeriesID: 42, Season: 1, Episode: 3, CanonicalTitle: "Third"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("GetEpisodes() mismatch (-want +got):\n%s", diff)
	}
	if n := atomic.LoadInt64(&ts.episodeHits); n != 2 {
		t.Errorf("episode requests = %d, want 2 (one per page)", n)
	}

	// Second call for the same (series, season) is a cache hit.
	if _, err := c.GetEpisodes(context.Background(), 42, 1); err != nil {
		t.Fatalf("GetEpisodes() second call = %v", err)
	}
	if n := atomic.LoadInt64(&ts.episodeHits); n != 2 {
		t.Errorf("episode requests after cached call = %d, want 2", n)
	}
}

func TestGetEpisodesUnknownSeasonCachedNotFound(t *testing.T) {
	var ts *testServer
	ts = newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&ts.episodeHits, 1)
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"Error":"No results"}`)
	})
	c := newTestClient(t, ts, Options{})

	for i := 0; i < 2; i++ {
		_, err := c.GetEpisodes(context.Background(), 42, 9)
		if !IsNotFound(err) {
			t.Fatalf("GetEpisodes() = %v, want not-found lookup error", err)
		}
	}
	if n := atomic.LoadInt64(&ts.episodeHits); n != 1 {
		t.Errorf("episode requests = %d, want 1", n)
	}
}

func TestInvalidateAllForcesRefetch(t *testing.T) {
	var ts *testServer
	ts = newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		seriesHandler(ts)(w, r)
	})
	c := newTestClient(t, ts, Options{})

	if _, err := c.FindSeries(context.Background(), "Show Name"); err != nil {
		t.Fatalf("FindSeries() = %v", err)
	}
	c.InvalidateAll()
	if _, err := c.FindSeries(context.Background(), "Show Name"); err != nil {
		t.Fatalf("FindSeries() after invalidation = %v", err)
	}
	if n := atomic.LoadInt64(&ts.searchCount); n != 2 {
		t.Errorf("search requests = %d, want 2 (invalidation must force a refetch)", n)
	}
}

func TestLoginRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"Error":"Invalid credentials"}`)
	}))
	defer srv.Close()

	c := NewClient(Credentials{APIKey: "bad"}, Options{BaseURL: srv.URL})
	err := c.Login(context.Background())
	var ae *AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("Login() = %v, want auth error", err)
	}
}

func TestLookupsRequireLogin(t *testing.T) {
	ts := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})
	c := NewClient(Credentials{}, Options{BaseURL: ts.URL, RequestsPerSec: 1000, Burst: 1000})

	_, err := c.FindSeries(context.Background(), "Show Name")
	var ae *AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("FindSeries() before Login = %v, want auth error", err)
	}
}

func TestNormalizeQuery(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Show Name", "show name"},
		{"  Show   Name  ", "show name"},
		{"SHOW\tNAME", "show name"},
		{"", ""},
	}
	for _, tc := range tests {
		if got := NormalizeQuery(tc.input); got != tc.want {
			t.Errorf("NormalizeQuery(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestMatchesName(t *testing.T) {
	s := SeriesRecord{CanonicalName: "Show Name", Aliases: []string{"The Show"}}
	tests := []struct {
		query string
		want  bool
	}{
		{"show name", true},
		{"Show  Name ", true},
		{"the show", true},
		{"show", false},
		{"show name returns", false},
		{"", false},
	}
	for _, tc := range tests {
		if got := s.MatchesName(tc.query); got != tc.want {
			t.Errorf("MatchesName(%q) = %v, want %v", tc.query, got, tc.want)
		}
	}
}
