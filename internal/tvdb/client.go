package tvdb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.thetvdb.com"

// TVDB v3 tokens are valid for 24 hours; refresh a little early so an
// in-flight request never races the expiry.
const tokenValidity = 23 * time.Hour

// Credentials are the v3 login keys, typically loaded from the config file.
type Credentials struct {
	APIKey   string `json:"apikey"`
	UserKey  string `json:"userkey"`
	Username string `json:"username"`
}

// Options tunes client behavior. The zero value picks the documented TVDB
// limits.
type Options struct {
	BaseURL        string
	HTTPClient     *http.Client
	RequestsPerSec float64
	Burst          int
	MaxRetries     uint64
	RequestTimeout time.Duration
}

// Client is the rate-respecting gateway to TVDB. All lookups share one token
// bucket and one response cache, so concurrent resolutions never exceed the
// provider's limit and identical queries are answered once.
type Client struct {
	baseURL    string
	httpClient *http.Client
	creds      Credentials

	limiter    *rate.Limiter
	cache      *cache.Cache
	group      singleflight.Group
	maxRetries uint64
	timeout    time.Duration

	mu       sync.Mutex
	token    string
	issuedAt time.Time
}

// cachedLookup is the cache entry payload. NotFound records an authoritative
// negative answer so repeated misses stay off the network.
type cachedLookup struct {
	Series   []SeriesRecord
	Episodes []EpisodeRecord
	NotFound bool
}

// NewClient builds an unauthenticated client. Call Login before lookups.
func NewClient(creds Credentials, opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.RequestsPerSec <= 0 {
		opts.RequestsPerSec = 4
	}
	if opts.Burst <= 0 {
		opts.Burst = 4
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}

	return &Client{
		baseURL:    opts.BaseURL,
		httpClient: opts.HTTPClient,
		creds:      creds,
		limiter:    rate.NewLimiter(rate.Limit(opts.RequestsPerSec), opts.Burst),
		cache:      cache.New(cache.NoExpiration, 0),
		maxRetries: opts.MaxRetries,
		timeout:    opts.RequestTimeout,
	}
}

// Limit returns the sustained request rate the client enforces. The engine
// sizes its resolution worker pool below this so the limiter stays the single
// throttling point.
func (c *Client) Limit() float64 {
	return float64(c.limiter.Limit())
}

// Login exchanges the credentials for a bearer token.
func (c *Client) Login(ctx context.Context) error {
	body, err := json.Marshal(c.creds)
	if err != nil {
		return &AuthError{Message: "encoding credentials", Err: err}
	}

	status, respBody, err := c.do(ctx, http.MethodPost, "/login", "", bytes.NewReader(body))
	if err != nil {
		return &AuthError{Message: "login request failed", Err: err}
	}
	if status != http.StatusOK {
		return &AuthError{Message: fmt.Sprintf("login rejected (%d): %s", status, apiErrorMessage(respBody))}
	}

	var tok struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(respBody, &tok); err != nil || tok.Token == "" {
		return &AuthError{Message: "unparseable login response", Err: err}
	}

	c.mu.Lock()
	c.token = tok.Token
	c.issuedAt = time.Now()
	c.mu.Unlock()
	return nil
}

// ensureToken refreshes the bearer token when it is close to expiry. The
// refresh is retried once; a second failure falls back to a full login, and
// only when that fails too does the call surface AuthError.
func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	token := c.token
	fresh := token != "" && time.Since(c.issuedAt) < tokenValidity
	c.mu.Unlock()

	if token == "" {
		return "", &AuthError{Message: "not logged in"}
	}
	if fresh {
		return token, nil
	}

	if err := c.refreshToken(ctx, token); err != nil {
		if err := c.refreshToken(ctx, token); err != nil {
			if err := c.Login(ctx); err != nil {
				return "", err
			}
		}
	}

	c.mu.Lock()
	token = c.token
	c.mu.Unlock()
	return token, nil
}

func (c *Client) refreshToken(ctx context.Context, current string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/refresh_token", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+current)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("refresh rejected (%d): %s", resp.StatusCode, apiErrorMessage(body))
	}

	var tok struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &tok); err != nil || tok.Token == "" {
		return fmt.Errorf("unparseable refresh response")
	}

	c.mu.Lock()
	c.token = tok.Token
	c.issuedAt = time.Now()
	c.mu.Unlock()
	return nil
}

// FindSeries searches the provider for series matching query. Results,
// including authoritative "no results", are cached under the normalized query
// for the process lifetime. Concurrent identical queries coalesce into one
// request.
func (c *Client) FindSeries(ctx context.Context, query string) ([]SeriesRecord, error) {
	normalized := NormalizeQuery(query)
	if normalized == "" {
		return nil, &LookupError{Kind: LookupNotFound, Query: query}
	}
	key := "series:" + normalized

	if entry, ok := c.lookupCached(key); ok {
		if entry.NotFound {
			return nil, &LookupError{Kind: LookupNotFound, Query: normalized}
		}
		return entry.Series, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// A concurrent caller may have populated the cache while this
		// goroutine waited on the flight group.
		if entry, ok := c.lookupCached(key); ok {
			return entry, nil
		}

		records, err := c.searchSeries(ctx, normalized)
		if err != nil {
			if IsNotFound(err) {
				c.cache.Set(key, cachedLookup{NotFound: true}, cache.NoExpiration)
			}
			return nil, err
		}

		entry := cachedLookup{Series: records}
		c.cache.Set(key, entry, cache.NoExpiration)
		return entry, nil
	})
	if err != nil {
		return nil, err
	}

	entry := v.(cachedLookup)
	if entry.NotFound {
		return nil, &LookupError{Kind: LookupNotFound, Query: normalized}
	}
	return entry.Series, nil
}

// GetEpisodes fetches all episodes of one aired season, walking result pages
// until the provider reports no next page. Cache discipline matches
// FindSeries, keyed by (series, season).
func (c *Client) GetEpisodes(ctx context.Context, seriesID, season int) ([]EpisodeRecord, error) {
	key := fmt.Sprintf("episodes:%d:%d", seriesID, season)

	if entry, ok := c.lookupCached(key); ok {
		if entry.NotFound {
			return nil, &LookupError{Kind: LookupNotFound, Query: key}
		}
		return entry.Episodes, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if entry, ok := c.lookupCached(key); ok {
			return entry, nil
		}

		episodes, err := c.fetchSeasonEpisodes(ctx, seriesID, season)
		if err != nil {
			if IsNotFound(err) {
				c.cache.Set(key, cachedLookup{NotFound: true}, cache.NoExpiration)
			}
			return nil, err
		}

		entry := cachedLookup{Episodes: episodes}
		c.cache.Set(key, entry, cache.NoExpiration)
		return entry, nil
	})
	if err != nil {
		return nil, err
	}

	entry := v.(cachedLookup)
	if entry.NotFound {
		return nil, &LookupError{Kind: LookupNotFound, Query: key}
	}
	return entry.Episodes, nil
}

// InvalidateAll drops every cached lookup. There is no automatic TTL
// eviction; the process lifetime bounds staleness.
func (c *Client) InvalidateAll() {
	c.cache.Flush()
}

func (c *Client) lookupCached(key string) (cachedLookup, bool) {
	if v, ok := c.cache.Get(key); ok {
		if entry, ok := v.(cachedLookup); ok {
			return entry, true
		}
	}
	return cachedLookup{}, false
}

func (c *Client) searchSeries(ctx context.Context, query string) ([]SeriesRecord, error) {
	params := url.Values{}
	params.Set("name", query)

	body, err := c.getJSON(ctx, "/search/series", params.Encode(), query)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Data []SeriesRecord `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &LookupError{Kind: LookupMalformed, Query: query, Err: err}
	}
	if len(payload.Data) == 0 {
		return nil, &LookupError{Kind: LookupNotFound, Query: query}
	}
	return payload.Data, nil
}

func (c *Client) fetchSeasonEpisodes(ctx context.Context, seriesID, season int) ([]EpisodeRecord, error) {
	query := fmt.Sprintf("series %d season %d", seriesID, season)

	var all []EpisodeRecord
	page := 1
	for {
		params := url.Values{}
		params.Set("airedSeason", fmt.Sprint(season))
		params.Set("page", fmt.Sprint(page))

		body, err := c.getJSON(ctx, fmt.Sprintf("/series/%d/episodes/query", seriesID), params.Encode(), query)
		if err != nil {
			// Past the first page a 404 just means the pages ran out.
			if page > 1 && IsNotFound(err) {
				break
			}
			return nil, err
		}

		var payload struct {
			Data  []EpisodeRecord `json:"data"`
			Links struct {
				Next *int `json:"next"`
				Last *int `json:"last"`
			} `json:"links"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, &LookupError{Kind: LookupMalformed, Query: query, Err: err}
		}

		for _, ep := range payload.Data {
			ep.SeriesID = seriesID
			all = append(all, ep)
		}

		if payload.Links.Next == nil || *payload.Links.Next <= page {
			break
		}
		page = *payload.Links.Next
	}

	if len(all) == 0 {
		return nil, &LookupError{Kind: LookupNotFound, Query: query}
	}
	return all, nil
}

// getJSON performs an authenticated GET with rate limiting and bounded
// retries. Each attempt takes a limiter token and runs under the per-request
// timeout; a timed-out attempt counts against the retry budget.
func (c *Client) getJSON(ctx context.Context, path, rawQuery, query string) ([]byte, error) {
	var result []byte

	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		token, err := c.ensureToken(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		status, body, err := c.doAuthed(attemptCtx, path, rawQuery, token)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			// Transport errors and per-attempt timeouts are retryable.
			return err
		}

		switch {
		case status == http.StatusOK:
			result = body
			return nil
		case status == http.StatusNotFound:
			return backoff.Permanent(&LookupError{Kind: LookupNotFound, Query: query})
		case status == http.StatusUnauthorized:
			return backoff.Permanent(&AuthError{Message: apiErrorMessage(body)})
		case status == http.StatusTooManyRequests || status >= 500:
			return fmt.Errorf("tvdb responded %d: %s", status, apiErrorMessage(body))
		default:
			return backoff.Permanent(&LookupError{Kind: LookupMalformed, Query: query,
				Err: fmt.Errorf("unexpected status %d: %s", status, apiErrorMessage(body))})
		}
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(newBackOff(), c.maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		var le *LookupError
		var ae *AuthError
		if errors.As(err, &le) || errors.As(err, &ae) {
			return nil, err
		}
		return nil, &LookupError{Kind: LookupTransient, Query: query, Err: err}
	}
	return result, nil
}

func newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	// RandomizationFactor default provides the jitter.
	b.MaxElapsedTime = 0
	return b
}

func (c *Client) doAuthed(ctx context.Context, path, rawQuery, token string) (int, []byte, error) {
	u := c.baseURL + path
	if rawQuery != "" {
		u += "?" + rawQuery
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

func (c *Client) do(ctx context.Context, method, path, rawQuery string, body io.Reader) (int, []byte, error) {
	u := c.baseURL + path
	if rawQuery != "" {
		u += "?" + rawQuery
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, respBody, nil
}

// apiErrorMessage extracts the {"Error": "..."} body TVDB returns on failures,
// falling back to the raw body.
func apiErrorMessage(body []byte) string {
	var payload struct {
		Error string `json:"Error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return string(bytes.TrimSpace(body))
}
