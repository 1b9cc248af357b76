// Package pipeline runs the analysis stages that turn a video reference into
// a scene reading and a set of music recommendations.
package pipeline

import (
	"fmt"
	"sort"

	"github.com/amillerrr/video2music/pkg/models"
)

// Input is what the caller knows about the video before analysis starts.
type Input struct {
	RequestID   string
	VideoURL    string
	Description string
	YearStart   int
	YearEnd     int
}

// Validate checks the required fields and fills in the default year range.
func (in *Input) Validate() error {
	if in.RequestID == "" {
		return models.ErrMissingRequestID
	}
	if in.VideoURL == "" {
		return models.ErrMissingVideoURL
	}
	if in.YearStart == 0 {
		in.YearStart = models.DefaultYearStart
	}
	if in.YearEnd == 0 {
		in.YearEnd = models.DefaultYearEnd
	}
	return nil
}

// Partial is the set of fields one stage produced. Nil means "not set".
type Partial struct {
	ExtractedFrames  []string
	Transcription    *string
	AmbientTags      []string
	SceneDescription *string
	VisualElements   []string
	SceneMood        *string
	Recommendations  []models.MusicRecommendation
	Reasoning        *string
	ModelVersions    map[string]string
}

// State is the accumulated analysis of one video.
type State struct {
	Input
	Partial
}

// FieldConflictError reports two stages writing the same field.
type FieldConflictError struct {
	Field string
}

func (e *FieldConflictError) Error() string {
	return fmt.Sprintf("field %q already set by an earlier stage", e.Field)
}

// Merge folds p into s. Every field may be written once; a second write
// returns *FieldConflictError and leaves s unchanged.
func (s *State) Merge(p Partial) error {
	if err := s.conflicts(p); err != nil {
		return err
	}

	if p.ExtractedFrames != nil {
		s.ExtractedFrames = p.ExtractedFrames
	}
	if p.Transcription != nil {
		s.Transcription = p.Transcription
	}
	if p.AmbientTags != nil {
		s.AmbientTags = p.AmbientTags
	}
	if p.SceneDescription != nil {
		s.SceneDescription = p.SceneDescription
	}
	if p.VisualElements != nil {
		s.VisualElements = p.VisualElements
	}
	if p.SceneMood != nil {
		s.SceneMood = p.SceneMood
	}
	if p.Recommendations != nil {
		s.Recommendations = p.Recommendations
	}
	if p.Reasoning != nil {
		s.Reasoning = p.Reasoning
	}
	if len(p.ModelVersions) > 0 && s.ModelVersions == nil {
		s.ModelVersions = make(map[string]string, len(p.ModelVersions))
	}
	for k, v := range p.ModelVersions {
		s.ModelVersions[k] = v
	}
	return nil
}

func (s *State) conflicts(p Partial) error {
	checks := []struct {
		field         string
		set, incoming bool
	}{
		{"extracted_frames", s.ExtractedFrames != nil, p.ExtractedFrames != nil},
		{"transcription", s.Transcription != nil, p.Transcription != nil},
		{"ambient_tags", s.AmbientTags != nil, p.AmbientTags != nil},
		{"scene_description", s.SceneDescription != nil, p.SceneDescription != nil},
		{"visual_elements", s.VisualElements != nil, p.VisualElements != nil},
		{"scene_mood", s.SceneMood != nil, p.SceneMood != nil},
		{"recommendations", s.Recommendations != nil, p.Recommendations != nil},
		{"reasoning", s.Reasoning != nil, p.Reasoning != nil},
	}
	for _, c := range checks {
		if c.set && c.incoming {
			return &FieldConflictError{Field: c.field}
		}
	}

	keys := make([]string, 0, len(p.ModelVersions))
	for k := range p.ModelVersions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, ok := s.ModelVersions[k]; ok {
			return &FieldConflictError{Field: "model_versions." + k}
		}
	}
	return nil
}

// Snapshot returns a copy of s that stages can read without racing on the
// shared maps.
func (s *State) Snapshot() State {
	cp := *s
	if s.ModelVersions != nil {
		cp.ModelVersions = make(map[string]string, len(s.ModelVersions))
		for k, v := range s.ModelVersions {
			cp.ModelVersions[k] = v
		}
	}
	return cp
}

// Result converts the accumulated state into the persisted result shape.
func (s *State) Result(duration float64) *models.ProcessingResult {
	r := &models.ProcessingResult{
		SceneDescription:   deref(s.SceneDescription),
		SceneMood:          deref(s.SceneMood),
		VisualElements:     s.VisualElements,
		Transcription:      deref(s.Transcription),
		AmbientTags:        s.AmbientTags,
		Recommendations:    s.Recommendations,
		Reasoning:          deref(s.Reasoning),
		ProcessingDuration: duration,
		ModelVersions:      s.ModelVersions,
		ExtractedFrames:    s.ExtractedFrames,
	}
	return r.Normalize()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func ptr(s string) *string { return &s }
