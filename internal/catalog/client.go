// Package catalog searches an external music catalog for tracks that fit a
// scene mood and scores them with local heuristics.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/amillerrr/video2music/internal/config"
	"github.com/amillerrr/video2music/internal/metrics"
	"github.com/amillerrr/video2music/internal/moods"
	"github.com/amillerrr/video2music/pkg/models"
)

var tracer = otel.Tracer("video2music-catalog")

// Defaults used when Config leaves a field empty.
const (
	DefaultMarket       = "US"
	DefaultSearchLimit  = 5
	SceneSearchLimit    = 3
	defaultPopularity   = 50
	unknownGenre        = "Various"
	maxErrorBodyPreview = 512
)

// Config configures a Client.
type Config struct {
	ClientID          string
	ClientSecret      string
	TokenURL          string
	APIBaseURL        string
	Market            string
	RequestsPerSecond float64
	Timeout           time.Duration
}

// ConfigFrom extracts the catalog settings from the application config.
func ConfigFrom(cfg *config.Config) Config {
	c := Config{
		ClientID:          cfg.Catalog.ClientID,
		ClientSecret:      cfg.Catalog.ClientSecret,
		TokenURL:          cfg.Catalog.TokenURL,
		APIBaseURL:        cfg.Catalog.APIBaseURL,
		Market:            cfg.Catalog.Market,
		RequestsPerSecond: cfg.Catalog.RequestsPerSecond,
		Timeout:           cfg.Catalog.Timeout,
	}
	if !cfg.CatalogConfigured() {
		c.ClientID, c.ClientSecret = "", ""
	}
	return c
}

// ConfigError reports that catalog credentials are absent or placeholders.
type ConfigError struct{}

func (e *ConfigError) Error() string { return "catalog credentials not configured" }

// AuthRequestError reports a rejected client-credentials exchange.
type AuthRequestError struct {
	StatusCode int
	Body       string
}

func (e *AuthRequestError) Error() string {
	return fmt.Sprintf("catalog auth failed: %d", e.StatusCode)
}

// Client is a long-lived catalog client. Construct one per process.
//
// The access token is cached for the lifetime of the Client and never
// refreshed. Concurrent first calls may each fetch a token; the last one
// stored wins.
type Client struct {
	cfg     Config
	http    *http.Client
	log     *slog.Logger
	limiter *rate.Limiter
	token   atomic.Pointer[string]
}

// New creates a Client. A nil httpClient gets a traced client with cfg.Timeout.
func New(cfg Config, httpClient *http.Client, log *slog.Logger) *Client {
	if cfg.Market == "" {
		cfg.Market = DefaultMarket
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = config.DefaultCatalogTokenURL
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = config.DefaultCatalogAPIBaseURL
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = config.DefaultCatalogTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   cfg.Timeout,
		}
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Client{
		cfg:     cfg,
		http:    httpClient,
		log:     log.With("component", "catalog"),
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Configured reports whether credentials are available. Callers treat false
// as "no external recommendations" rather than as a failure.
func (c *Client) Configured() bool {
	return c.cfg.ClientID != "" &&
		c.cfg.ClientSecret != "" &&
		c.cfg.ClientID != config.PlaceholderCatalogClientID
}

// AccessToken returns the cached bearer token, fetching it on first use.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	if tok := c.token.Load(); tok != nil {
		return *tok, nil
	}
	if !c.Configured() {
		return "", &ConfigError{}
	}

	cc := clientcredentials.Config{
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret,
		TokenURL:     c.cfg.TokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	tok, err := cc.Token(context.WithValue(ctx, oauth2.HTTPClient, c.http))
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			return "", &AuthRequestError{
				StatusCode: retrieveErr.Response.StatusCode,
				Body:       truncate(string(retrieveErr.Body), maxErrorBodyPreview),
			}
		}
		return "", fmt.Errorf("catalog token request: %w", err)
	}

	access := tok.AccessToken
	c.token.Store(&access)
	c.log.InfoContext(ctx, "Obtained catalog access token")
	return access, nil
}

// Query describes one catalog search.
type Query struct {
	Mood           string
	VisualElements []string
	// Preferences is the user's free-text description of the music they want.
	Preferences string
	Limit       int
	YearStart   int
	YearEnd     int
}

// Text returns the search string sent to the catalog.
func (q Query) Text() string {
	text := moods.Query(q.Mood, q.VisualElements, q.Preferences)
	if q.YearStart > 0 && q.YearEnd >= q.YearStart {
		text += fmt.Sprintf(" year:%d-%d", q.YearStart, q.YearEnd)
	}
	return text
}

// SearchTracksByMood searches with the mood and visual context and returns
// at most limit scored recommendations. It never fails: every error path
// yields an empty list.
func (c *Client) SearchTracksByMood(ctx context.Context, mood string, visualElements []string, limit int) []models.MusicRecommendation {
	return c.Search(ctx, Query{Mood: mood, VisualElements: visualElements, Limit: limit})
}

// Search runs q against the catalog. Like SearchTracksByMood it returns an
// empty list instead of an error.
func (c *Client) Search(ctx context.Context, q Query) []models.MusicRecommendation {
	if q.Limit <= 0 {
		q.Limit = DefaultSearchLimit
	}
	text := q.Text()

	ctx, span := tracer.Start(ctx, "catalog-search")
	defer span.End()
	span.SetAttributes(
		attribute.String("catalog.query", text),
		attribute.String("catalog.mood", q.Mood),
	)

	recs, outcome, err := c.search(ctx, q, text)
	if err != nil {
		span.RecordError(err)
		var cfgErr *ConfigError
		if errors.As(err, &cfgErr) {
			c.log.WarnContext(ctx, "Catalog credentials not configured")
		} else {
			c.log.ErrorContext(ctx, "Catalog search failed", "query", text, "error", err)
		}
	}

	metrics.RecordSearch(outcome, len(recs))
	span.SetAttributes(attribute.Int("catalog.tracks", len(recs)))
	return recs
}

func (c *Client) search(ctx context.Context, q Query, text string) ([]models.MusicRecommendation, string, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		var cfgErr *ConfigError
		if errors.As(err, &cfgErr) {
			return []models.MusicRecommendation{}, "unconfigured", err
		}
		return []models.MusicRecommendation{}, "auth_error", err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return []models.MusicRecommendation{}, "error", err
	}

	params := url.Values{}
	params.Set("q", text)
	params.Set("type", "track")
	params.Set("limit", strconv.Itoa(q.Limit))
	params.Set("market", c.cfg.Market)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.APIBaseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return []models.MusicRecommendation{}, "error", err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return []models.MusicRecommendation{}, "error", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyPreview))
		return []models.MusicRecommendation{}, "error",
			fmt.Errorf("search returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return []models.MusicRecommendation{}, "error", fmt.Errorf("decode search response: %w", err)
	}

	items := payload.Tracks.Items
	if len(items) == 0 {
		c.log.WarnContext(ctx, "No catalog tracks found", "query", text)
		return []models.MusicRecommendation{}, "empty", nil
	}
	if len(items) > q.Limit {
		items = items[:q.Limit]
	}

	recs := make([]models.MusicRecommendation, 0, len(items))
	for _, item := range items {
		recs = append(recs, Enrich(item, q.Mood, q.VisualElements))
	}
	return recs, "ok", nil
}

// Scene is the analysed scene used to look up recommendations.
type Scene struct {
	Description    string
	Mood           string
	VisualElements []string
	AmbientTags    []string
	Preferences    string
	YearStart      int
	YearEnd        int
}

// GetRecommendationsByScene searches for the scene mood. When that yields
// nothing for a non-default mood it retries once with the default mood.
func (c *Client) GetRecommendationsByScene(ctx context.Context, s Scene) []models.MusicRecommendation {
	q := Query{
		Mood:           s.Mood,
		VisualElements: s.VisualElements,
		Preferences:    s.Preferences,
		Limit:          SceneSearchLimit,
		YearStart:      s.YearStart,
		YearEnd:        s.YearEnd,
	}

	recs := c.Search(ctx, q)
	if len(recs) == 0 && s.Mood != moods.Default {
		c.log.InfoContext(ctx, "Retrying catalog search with default mood", "mood", s.Mood)
		q.Mood = moods.Default
		recs = c.Search(ctx, q)
	}
	return recs
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
