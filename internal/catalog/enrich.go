package catalog

import (
	"math"
	"strings"

	"github.com/amillerrr/video2music/internal/moods"
	"github.com/amillerrr/video2music/pkg/models"
)

type searchResponse struct {
	Tracks struct {
		Items []Track `json:"items"`
	} `json:"tracks"`
}

// Track is the subset of catalog track metadata the client reads.
type Track struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Artists      []Artist `json:"artists"`
	PreviewURL   *string  `json:"preview_url"`
	ExternalURLs struct {
		Spotify string `json:"spotify"`
	} `json:"external_urls"`
	Popularity *int `json:"popularity"`
}

// Artist is a credited track artist.
type Artist struct {
	Name string `json:"name"`
}

// Enrich turns a catalog track into a scored recommendation. Audio features
// are estimated from the scene mood since the search endpoint omits them.
func Enrich(t Track, sceneMood string, visualElements []string) models.MusicRecommendation {
	profile := moods.Map(sceneMood)
	dance := moods.Danceability(sceneMood, visualElements)
	tempo := profile.Tempo

	popularity := defaultPopularity
	if t.Popularity != nil {
		popularity = *t.Popularity
	}

	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}

	rec := models.MusicRecommendation{
		Title:           t.Name,
		Artist:          strings.Join(names, ", "),
		Genre:           unknownGenre,
		Mood:            moods.EstimateTrackMood(t.Name, sceneMood),
		EnergyLevel:     profile.Energy,
		Valence:         profile.Valence,
		Danceability:    &dance,
		Tempo:           &tempo,
		ConfidenceScore: Confidence(t.Name, sceneMood, popularity),
		CatalogID:       t.ID,
		ExternalURL:     t.ExternalURLs.Spotify,
	}
	if t.PreviewURL != nil {
		rec.PreviewURL = *t.PreviewURL
	}
	return rec
}

// Confidence blends popularity (0-100) with title keyword relevance.
func Confidence(title, sceneMood string, popularity int) float64 {
	relevance := 0.5
	if moods.TitleMatches(title, moods.RelevanceWords(sceneMood)) {
		relevance += 0.3
	}
	pop := models.Clamp01(float64(popularity) / 100)
	return math.Min(1, pop*0.4+relevance*0.6)
}
