package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/reeldeck/reeldeck/pkg/userdata"
)

const (
	defaultBaseURL      = "https://api.themoviedb.org/3"
	defaultImageBaseURL = "https://image.tmdb.org/t/p"
)

// MediaType distinguishes movies from series in catalog lookups.
type MediaType string

const (
	MediaMovie  MediaType = "movie"
	MediaSeries MediaType = "tv"
)

// Title is catalog metadata for one movie or series.
type Title struct {
	ID           string    `json:"id"`
	MediaType    MediaType `json:"media_type"`
	Name         string    `json:"name"`
	Overview     string    `json:"overview,omitempty"`
	PosterPath   string    `json:"poster_path,omitempty"`
	BackdropPath string    `json:"backdrop_path,omitempty"`
	ReleaseDate  time.Time `json:"release_date,omitempty"`
	Rating       float64   `json:"rating,omitempty"`
	Genres       []string  `json:"genres,omitempty"`
}

// Ref converts a title to the reference shape the user-data stores keep.
func (t Title) Ref() userdata.ContentRef {
	return userdata.ContentRef{
		ID:         t.ID,
		Title:      t.Name,
		MediaType:  string(t.MediaType),
		PosterPath: t.PosterPath,
	}
}

// StatusError is returned when the catalog answers with a non-200 status.
type StatusError struct {
	Code int
}

func (e StatusError) Error() string {
	return fmt.Sprintf("catalog returned status %d", e.Code)
}

// Client is a read-only catalog client. It never writes anything upstream.
type Client struct {
	apiKey   string
	baseURL  string
	imageURL string
	http     *http.Client
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// ClientOption configures Client behavior.
type ClientOption func(*clientConfig)

type clientConfig struct {
	baseURL  string
	imageURL string
	http     *http.Client
	limit    rate.Limit
	burst    int
	logger   *slog.Logger
}

// WithBaseURL overrides the catalog API base URL.
func WithBaseURL(u string) ClientOption {
	return func(c *clientConfig) {
		c.baseURL = u
	}
}

// WithImageBaseURL overrides the image host base URL.
func WithImageBaseURL(u string) ClientOption {
	return func(c *clientConfig) {
		c.imageURL = u
	}
}

// WithHTTPClient sets the underlying HTTP client.
// Default: 10 second timeout.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *clientConfig) {
		c.http = hc
	}
}

// WithRateLimit sets the request rate limit and burst.
// Default: 40 requests/second, burst 10.
func WithRateLimit(limit rate.Limit, burst int) ClientOption {
	return func(c *clientConfig) {
		c.limit = limit
		c.burst = burst
	}
}

// WithClientLogger sets the logger.
// Default: slog.Default().
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *clientConfig) {
		c.logger = logger
	}
}

// NewClient creates a catalog client authenticated with apiKey.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	cfg := &clientConfig{
		baseURL:  defaultBaseURL,
		imageURL: defaultImageBaseURL,
		http:     &http.Client{Timeout: 10 * time.Second},
		limit:    rate.Limit(40),
		burst:    10,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &Client{
		apiKey:   apiKey,
		baseURL:  cfg.baseURL,
		imageURL: cfg.imageURL,
		http:     cfg.http,
		limiter:  rate.NewLimiter(cfg.limit, cfg.burst),
		logger:   cfg.logger.With("component", "catalog_client"),
	}
}

type searchResponse struct {
	Results []titleResponse `json:"results"`
}

type titleResponse struct {
	ID           int     `json:"id"`
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	ReleaseDate  string  `json:"release_date"`
	FirstAirDate string  `json:"first_air_date"`
	Overview     string  `json:"overview"`
	PosterPath   string  `json:"poster_path"`
	BackdropPath string  `json:"backdrop_path"`
	VoteAverage  float64 `json:"vote_average"`
	Genres       []struct {
		Name string `json:"name"`
	} `json:"genres"`
}

func (r titleResponse) toTitle(mediaType MediaType) Title {
	name := r.Title
	if name == "" {
		name = r.Name
	}
	dateStr := r.ReleaseDate
	if dateStr == "" {
		dateStr = r.FirstAirDate
	}
	date, _ := time.Parse("2006-01-02", dateStr)

	var genres []string
	for _, g := range r.Genres {
		genres = append(genres, g.Name)
	}

	return Title{
		ID:           strconv.Itoa(r.ID),
		MediaType:    mediaType,
		Name:         name,
		Overview:     r.Overview,
		PosterPath:   r.PosterPath,
		BackdropPath: r.BackdropPath,
		ReleaseDate:  date,
		Rating:       r.VoteAverage,
		Genres:       genres,
	}
}

// Search finds titles matching the query.
func (c *Client) Search(ctx context.Context, query string, mediaType MediaType) ([]Title, error) {
	params := url.Values{}
	params.Set("query", query)

	var res searchResponse
	if err := c.get(ctx, "/search/"+string(mediaType), params, &res); err != nil {
		return nil, err
	}

	titles := make([]Title, 0, len(res.Results))
	for _, r := range res.Results {
		titles = append(titles, r.toTitle(mediaType))
	}
	return titles, nil
}

// Details fetches full metadata for one title.
func (c *Client) Details(ctx context.Context, mediaType MediaType, id string) (*Title, error) {
	var res titleResponse
	if err := c.get(ctx, "/"+string(mediaType)+"/"+id, nil, &res); err != nil {
		return nil, err
	}

	title := res.toTitle(mediaType)
	return &title, nil
}

// Trending lists the day's trending titles.
func (c *Client) Trending(ctx context.Context, mediaType MediaType) ([]Title, error) {
	var res searchResponse
	if err := c.get(ctx, "/trending/"+string(mediaType)+"/day", nil, &res); err != nil {
		return nil, err
	}

	titles := make([]Title, 0, len(res.Results))
	for _, r := range res.Results {
		titles = append(titles, r.toTitle(mediaType))
	}
	return titles, nil
}

// PosterURL builds the full image URL for a poster path.
func (c *Client) PosterURL(path string) string {
	if path == "" {
		return ""
	}
	return c.imageURL + "/w500" + path
}

// BackdropURL builds the full image URL for a backdrop path.
func (c *Client) BackdropURL(path string) string {
	if path == "" {
		return ""
	}
	return c.imageURL + "/original" + path
}

// get performs one rate-limited GET and decodes the JSON response into out.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	u, err := url.Parse(c.baseURL + endpoint)
	if err != nil {
		return err
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", c.apiKey)
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("catalog request failed",
			"endpoint", endpoint,
			"status", resp.StatusCode)
		return StatusError{Code: resp.StatusCode}
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
