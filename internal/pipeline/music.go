package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/amillerrr/video2music/internal/catalog"
	"github.com/amillerrr/video2music/internal/moods"
	"github.com/amillerrr/video2music/internal/simulation"
	"github.com/amillerrr/video2music/pkg/models"
)

// Model version tags for the music stage.
const (
	CatalogVersion  = "search-v1"
	FallbackVersion = "fallback-library"
)

const (
	fallbackPicks    = 3
	fallbackStep     = 7
	maxBoostedScore  = 0.95
	ambientBoost     = 0.05
	visualMatchBoost = 0.03
)

// Recommender looks up catalog tracks for an analysed scene.
// *catalog.Client satisfies it.
type Recommender interface {
	GetRecommendationsByScene(ctx context.Context, s catalog.Scene) []models.MusicRecommendation
}

// MusicQuerier asks the catalog for tracks and falls back to a built-in
// library when the catalog has nothing to offer.
type MusicQuerier struct {
	Catalog Recommender
	Logger  *slog.Logger
}

func (MusicQuerier) Name() string { return StageMusic }

func (q MusicQuerier) Run(ctx context.Context, s State) (Partial, error) {
	mood := deref(s.SceneMood)
	if mood == "" {
		mood = moods.Default
	}

	var recs []models.MusicRecommendation
	if q.Catalog != nil {
		recs = q.Catalog.GetRecommendationsByScene(ctx, catalog.Scene{
			Description:    deref(s.SceneDescription),
			Mood:           mood,
			VisualElements: s.VisualElements,
			AmbientTags:    s.AmbientTags,
			Preferences:    s.Description,
			YearStart:      s.YearStart,
			YearEnd:        s.YearEnd,
		})
	}

	versions := map[string]string{
		"music_filter": fmt.Sprintf("year-range-%d-%d", s.YearStart, s.YearEnd),
	}

	if len(recs) > 0 {
		versions["catalog"] = CatalogVersion
		return Partial{
			Recommendations: recs,
			Reasoning:       ptr(catalogReasoning(s, mood)),
			ModelVersions:   versions,
		}, nil
	}

	if q.Logger != nil {
		q.Logger.InfoContext(ctx, "Using fallback music library", "requestId", s.RequestID)
	}
	versions["catalog"] = FallbackVersion
	return Partial{
		Recommendations: fallbackRecommendations(s),
		Reasoning:       ptr(fallbackReasoning(s, mood)),
		ModelVersions:   versions,
	}, nil
}

func fallbackRecommendations(s State) []models.MusicRecommendation {
	c := simulation.Hashes(s.RequestID, s.VideoURL).Combined
	n := uint64(len(fallbackLibrary))

	used := make(map[uint64]bool, fallbackPicks)
	recs := make([]models.MusicRecommendation, 0, fallbackPicks)
	for i := uint64(0); i < fallbackPicks; i++ {
		idx := (c + i*fallbackStep) % n
		for used[idx] {
			idx = (idx + 1) % n
		}
		used[idx] = true

		t := fallbackLibrary[idx]
		score := t.confidence
		if matchesAny(s.AmbientTags, t.genre, t.mood) {
			score = math.Min(maxBoostedScore, score+ambientBoost)
		}
		if matchesAny(s.VisualElements, t.mood) {
			score = math.Min(maxBoostedScore, score+visualMatchBoost)
		}

		recs = append(recs, models.MusicRecommendation{
			Title:           t.title,
			Artist:          t.artist,
			Genre:           t.genre,
			Mood:            t.mood,
			EnergyLevel:     t.energy,
			Valence:         t.valence,
			ConfidenceScore: math.Round(score*1000) / 1000,
		})
	}
	return recs
}

// matchesAny reports whether any tag occurs, case-insensitively, in one of fields.
func matchesAny(tags []string, fields ...string) bool {
	for _, tag := range tags {
		t := strings.ToLower(tag)
		for _, f := range fields {
			if strings.Contains(strings.ToLower(f), t) {
				return true
			}
		}
	}
	return false
}

func catalogReasoning(s State, mood string) string {
	elements := "various visual elements"
	if len(s.VisualElements) > 0 {
		elements = strings.Join(firstN(s.VisualElements, 3), ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Based on the %s scene with elements like %s", strings.ToLower(mood), elements)
	if s.Description != "" {
		fmt.Fprintf(&b, " (user requested: %q)", s.Description)
	}
	if s.YearStart != models.DefaultYearStart || s.YearEnd != models.DefaultYearEnd {
		fmt.Fprintf(&b, " focusing on music from %d-%d", s.YearStart, s.YearEnd)
	}
	b.WriteString(", these catalog tracks match the mood and energy of the video content.")
	return b.String()
}

func fallbackReasoning(s State, mood string) string {
	return fmt.Sprintf(
		"Based on the %s scene featuring %s with %s audio elements, these tracks are selected to complement the unique characteristics of video %s.",
		strings.ToLower(mood),
		strings.Join(firstN(s.VisualElements, 2), " and "),
		strings.Join(firstN(s.AmbientTags, 2), " and "),
		models.ShortID(s.RequestID, 6),
	)
}

func firstN(list []string, n int) []string {
	if len(list) < n {
		return list
	}
	return list[:n]
}
