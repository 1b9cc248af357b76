package pipeline

import (
	"errors"
	"testing"

	"github.com/amillerrr/video2music/pkg/models"
)

func TestInput_Validate(t *testing.T) {
	tests := []struct {
		name    string
		in      Input
		wantErr error
	}{
		{"missing request id", Input{VideoURL: "http://x/v.mp4"}, models.ErrMissingRequestID},
		{"missing video url", Input{RequestID: "r1"}, models.ErrMissingVideoURL},
		{"valid", Input{RequestID: "r1", VideoURL: "http://x/v.mp4"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestInput_ValidateDefaultsYears(t *testing.T) {
	in := Input{RequestID: "r1", VideoURL: "http://x/v.mp4"}
	if err := in.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if in.YearStart != models.DefaultYearStart || in.YearEnd != models.DefaultYearEnd {
		t.Errorf("years = %d-%d, want defaults", in.YearStart, in.YearEnd)
	}

	in = Input{RequestID: "r1", VideoURL: "http://x/v.mp4", YearStart: 1990, YearEnd: 1999}
	in.Validate()
	if in.YearStart != 1990 || in.YearEnd != 1999 {
		t.Errorf("years = %d-%d, want 1990-1999", in.YearStart, in.YearEnd)
	}
}

func TestState_MergeDisjoint(t *testing.T) {
	s := &State{}
	if err := s.Merge(Partial{Transcription: ptr("hello"), ModelVersions: map[string]string{"a": "1"}}); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if err := s.Merge(Partial{AmbientTags: []string{"Wind"}, ModelVersions: map[string]string{"b": "2"}}); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	if deref(s.Transcription) != "hello" {
		t.Errorf("Transcription = %q", deref(s.Transcription))
	}
	if len(s.AmbientTags) != 1 || s.AmbientTags[0] != "Wind" {
		t.Errorf("AmbientTags = %v", s.AmbientTags)
	}
	if s.ModelVersions["a"] != "1" || s.ModelVersions["b"] != "2" {
		t.Errorf("ModelVersions = %v", s.ModelVersions)
	}
}

func TestState_MergeConflict(t *testing.T) {
	tests := []struct {
		name      string
		first     Partial
		second    Partial
		wantField string
	}{
		{
			name:      "same string field",
			first:     Partial{SceneMood: ptr("Calm")},
			second:    Partial{SceneMood: ptr("Dramatic")},
			wantField: "scene_mood",
		},
		{
			name:      "same slice field",
			first:     Partial{VisualElements: []string{"Lighting"}},
			second:    Partial{VisualElements: []string{"Depth"}},
			wantField: "visual_elements",
		},
		{
			name:      "empty slice counts as set",
			first:     Partial{Recommendations: []models.MusicRecommendation{}},
			second:    Partial{Recommendations: []models.MusicRecommendation{{Title: "x"}}},
			wantField: "recommendations",
		},
		{
			name:      "same model version key",
			first:     Partial{ModelVersions: map[string]string{"catalog": "a"}},
			second:    Partial{ModelVersions: map[string]string{"catalog": "b"}},
			wantField: "model_versions.catalog",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &State{}
			if err := s.Merge(tt.first); err != nil {
				t.Fatalf("first Merge() error = %v", err)
			}

			err := s.Merge(tt.second)
			var conflict *FieldConflictError
			if !errors.As(err, &conflict) {
				t.Fatalf("second Merge() error = %v, want *FieldConflictError", err)
			}
			if conflict.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", conflict.Field, tt.wantField)
			}
		})
	}
}

func TestState_MergeConflictLeavesStateUnchanged(t *testing.T) {
	s := &State{}
	s.Merge(Partial{SceneMood: ptr("Calm")})

	err := s.Merge(Partial{Reasoning: ptr("because"), SceneMood: ptr("Dramatic")})
	if err == nil {
		t.Fatal("Merge() error = nil, want conflict")
	}
	if s.Reasoning != nil {
		t.Errorf("Reasoning = %q, want unset after failed merge", *s.Reasoning)
	}
	if deref(s.SceneMood) != "Calm" {
		t.Errorf("SceneMood = %q, want Calm", deref(s.SceneMood))
	}
}

func TestState_SnapshotCopiesVersions(t *testing.T) {
	s := &State{}
	s.Merge(Partial{ModelVersions: map[string]string{"a": "1"}})

	snap := s.Snapshot()
	snap.ModelVersions["a"] = "changed"

	if s.ModelVersions["a"] != "1" {
		t.Errorf("original ModelVersions mutated through snapshot")
	}
}

func TestState_ResultNormalizes(t *testing.T) {
	s := &State{}
	r := s.Result(1.5)

	if r.VisualElements == nil || r.AmbientTags == nil || r.Recommendations == nil ||
		r.ExtractedFrames == nil || r.ModelVersions == nil {
		t.Errorf("Result() left nil collections: %+v", r)
	}
	if r.ProcessingDuration != 1.5 {
		t.Errorf("ProcessingDuration = %v, want 1.5", r.ProcessingDuration)
	}
}
