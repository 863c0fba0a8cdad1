// Package omdb is a client for the OMDb movie metadata API
// (https://www.omdbapi.com). Lookups are keyed by title text with an
// optional release-year hint; the free tier enforces a daily request quota,
// which callers account for.
package omdb

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/reeldata/marquee/internal/resilience"
)

const defaultBaseURL = "https://www.omdbapi.com/"

// Client performs metadata lookups against the OMDb API.
type Client interface {
	// ByTitle looks up a single movie by exact title. A year <= 0 omits the
	// year parameter. A response with no match returns Found=false, not an
	// error.
	ByTitle(ctx context.Context, title string, year int) (*Result, error)

	// Search runs a free-text title search and returns candidate matches,
	// used as a fuzzy fallback when the exact-title lookup finds nothing.
	Search(ctx context.Context, query string, year int) ([]SearchHit, error)
}

// Result is the outcome of a ByTitle lookup.
type Result struct {
	Found bool
	Movie *Movie
}

// Movie holds the raw string fields OMDb returns. "N/A" values are mapped
// to empty strings; numeric conversion is left to the caller.
type Movie struct {
	Title      string
	Year       string
	Rated      string
	Released   string
	Runtime    string
	Genre      string
	Director   string
	Actors     string
	Plot       string
	Language   string
	Country    string
	Awards     string
	Poster     string
	Metascore  string
	IMDBRating string
	IMDBVotes  string
	IMDBID     string
	BoxOffice  string
}

// SearchHit is one candidate from a title search.
type SearchHit struct {
	Title  string `json:"Title"`
	Year   string `json:"Year"`
	IMDBID string `json:"imdbID"`
	Type   string `json:"Type"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithLimiter overrides the default request rate limiter.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *httpClient) {
		c.limiter = l
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates an OMDb API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(5, 1),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// payload mirrors the OMDb single-title response body.
type payload struct {
	Response   string      `json:"Response"`
	Error      string      `json:"Error"`
	Title      string      `json:"Title"`
	Year       string      `json:"Year"`
	Rated      string      `json:"Rated"`
	Released   string      `json:"Released"`
	Runtime    string      `json:"Runtime"`
	Genre      string      `json:"Genre"`
	Director   string      `json:"Director"`
	Actors     string      `json:"Actors"`
	Plot       string      `json:"Plot"`
	Language   string      `json:"Language"`
	Country    string      `json:"Country"`
	Awards     string      `json:"Awards"`
	Poster     string      `json:"Poster"`
	Metascore  string      `json:"Metascore"`
	IMDBRating string      `json:"imdbRating"`
	IMDBVotes  string      `json:"imdbVotes"`
	IMDBID     string      `json:"imdbID"`
	BoxOffice  string      `json:"BoxOffice"`
	Search     []SearchHit `json:"Search"`
}

func (c *httpClient) ByTitle(ctx context.Context, title string, year int) (*Result, error) {
	params := url.Values{}
	params.Set("t", title)
	params.Set("type", "movie")
	params.Set("plot", "short")
	if year > 0 {
		params.Set("y", strconv.Itoa(year))
	}

	body, err := c.get(ctx, params)
	if err != nil {
		return nil, err
	}

	if body.Response != "True" {
		// OMDb reports "Movie not found!" with Response=False; that is a
		// clean no-match, not a failure.
		return &Result{Found: false}, nil
	}

	return &Result{Found: true, Movie: body.movie()}, nil
}

func (c *httpClient) Search(ctx context.Context, query string, year int) ([]SearchHit, error) {
	params := url.Values{}
	params.Set("s", query)
	params.Set("type", "movie")
	if year > 0 {
		params.Set("y", strconv.Itoa(year))
	}

	body, err := c.get(ctx, params)
	if err != nil {
		return nil, err
	}
	if body.Response != "True" {
		return nil, nil
	}
	return body.Search, nil
}

func (c *httpClient) get(ctx context.Context, params url.Values) (*payload, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "omdb: rate limit wait")
	}

	params.Set("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "omdb: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "omdb: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "omdb: read response")
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("omdb: unexpected status %d: %s", resp.StatusCode, string(respBody))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	var body payload
	if err := json.Unmarshal(respBody, &body); err != nil {
		return nil, eris.Wrap(err, "omdb: unmarshal response")
	}

	return &body, nil
}

func (p *payload) movie() *Movie {
	return &Movie{
		Title:      clean(p.Title),
		Year:       clean(p.Year),
		Rated:      clean(p.Rated),
		Released:   clean(p.Released),
		Runtime:    clean(p.Runtime),
		Genre:      clean(p.Genre),
		Director:   clean(p.Director),
		Actors:     clean(p.Actors),
		Plot:       clean(p.Plot),
		Language:   clean(p.Language),
		Country:    clean(p.Country),
		Awards:     clean(p.Awards),
		Poster:     clean(p.Poster),
		Metascore:  clean(p.Metascore),
		IMDBRating: clean(p.IMDBRating),
		IMDBVotes:  clean(p.IMDBVotes),
		IMDBID:     clean(p.IMDBID),
		BoxOffice:  clean(p.BoxOffice),
	}
}

// clean maps OMDb's "N/A" placeholder to the empty string.
func clean(s string) string {
	if s == "N/A" {
		return ""
	}
	return s
}
