package pipeline

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/amillerrr/video2music/internal/simulation"
	"github.com/amillerrr/video2music/pkg/models"
)

// Stage is one step of the analysis graph. Run reads the state as of the
// start of the step and returns only the fields it produces.
type Stage interface {
	Name() string
	Run(ctx context.Context, s State) (Partial, error)
}

// Stage names, also used as span names and metric labels.
const (
	StageFrames        = "extract_frames"
	StageTranscription = "transcribe_voice"
	StageAmbient       = "tag_ambient"
	StageScene         = "analyze_scene"
	StageMood          = "reason_mood"
	StageMusic         = "query_music"
)

const (
	minFrames       = 5
	frameIntervalMs = 2000
)

// FrameExtractor produces frame references for the video.
type FrameExtractor struct{}

func (FrameExtractor) Name() string { return StageFrames }

func (FrameExtractor) Run(_ context.Context, s State) (Partial, error) {
	seed := simulation.Hashes(s.RequestID, s.VideoURL)
	count := minFrames + int(seed.VideoSeed%3)

	frames := make([]string, count)
	for i := range frames {
		frames[i] = fmt.Sprintf("%s_frame_%03d_%dms.jpg", s.RequestID, i+1, i*frameIntervalMs)
	}
	return Partial{
		ExtractedFrames: frames,
		ModelVersions:   map[string]string{"frames": "reference-v1"},
	}, nil
}

// Transcriber describes the audio track, keyed on what the video URL says
// about the content.
type Transcriber struct{}

func (Transcriber) Name() string { return StageTranscription }

func (Transcriber) Run(_ context.Context, s State) (Partial, error) {
	kind := contentKind(s.VideoURL)
	templates := transcriptionTemplates[kind]

	lead := leadRune(models.ShortID(s.RequestID, 4))
	urlLen := utf8.RuneCountInString(s.VideoURL)
	text := templates[(lead+urlLen)%len(templates)]

	switch lead % 4 {
	case 0:
		text += fmt.Sprintf(" Audio duration analysis suggests %d distinct segments.", 3+urlLen%7)
	case 1:
		text += fmt.Sprintf(" Recording quality indicates professional-grade equipment with %d-channel audio.", urlLen%3+2)
	case 2:
		text += fmt.Sprintf(" Temporal audio markers show consistent %s energy levels throughout.", energyLevels[urlLen%3])
	default:
		seed := simulation.Hashes(s.RequestID, s.VideoURL)
		text += fmt.Sprintf(" Acoustic signature suggests %s recording environment.", environments[seed.Combined%3])
	}

	return Partial{
		Transcription: ptr(text),
		ModelVersions: map[string]string{"transcription": "content-aware-" + kind},
	}, nil
}

// AmbientTagger picks ambient sound tags from a fixed set of categories.
type AmbientTagger struct{}

func (AmbientTagger) Name() string { return StageAmbient }

func (AmbientTagger) Run(_ context.Context, s State) (Partial, error) {
	c := simulation.Hashes(s.RequestID, s.VideoURL).Combined
	n := uint64(len(tagCategories))

	primary := c % n
	tags := append([]string(nil), tagCategories[primary]...)
	if secondary := (c * 7) % n; secondary != primary {
		tags = append(tags, tagCategories[secondary][0])
	}
	tags = dedupe(tags)
	if limit := 3 + int(c%3); len(tags) > limit {
		tags = tags[:limit]
	}

	return Partial{
		AmbientTags:   tags,
		ModelVersions: map[string]string{"ambient": "category-v1"},
	}, nil
}

// SceneAnalyzer writes the scene description and visual elements. It runs
// alongside the audio stages and only sees the extracted frames.
type SceneAnalyzer struct{}

func (SceneAnalyzer) Name() string { return StageScene }

func (SceneAnalyzer) Run(_ context.Context, s State) (Partial, error) {
	seed := simulation.Hashes(s.RequestID, s.VideoURL)
	frameCount := len(s.ExtractedFrames)
	if frameCount == 0 {
		frameCount = minFrames
	}

	variant := int(seed.IDHash % uint64(len(sceneTemplates)))
	setting := contentSettings[contentKind(s.VideoURL)]
	description := fmt.Sprintf(sceneTemplates[variant], setting, frameCount)

	return Partial{
		SceneDescription: ptr(description),
		VisualElements:   visualElements(seed.IDHash+uint64(variant), seed.URLHash, frameCount),
		ModelVersions:    map[string]string{"scene": "content-aware-v1"},
	}, nil
}

func visualElements(videoHash, urlHash uint64, frameCount int) []string {
	c := videoHash + urlHash + uint64(frameCount)

	out := make([]string, 0, 5)
	for i := uint64(0); i < 3; i++ {
		out = append(out, sceneBaseElements[(c+i*7)%uint64(len(sceneBaseElements))])
	}
	for i := uint64(0); i < 2; i++ {
		out = append(out, sceneContextElements[(c+i*11)%uint64(len(sceneContextElements))])
	}
	out = dedupe(out)
	if limit := 4 + int(c%3); len(out) > limit {
		out = out[:limit]
	}
	return out
}

// MoodReasoner settles the scene mood once the audio stages have reported.
// Musical ambience pulls toward the energetic moods, natural or peaceful
// ambience toward the calm ones.
type MoodReasoner struct{}

func (MoodReasoner) Name() string { return StageMood }

func (MoodReasoner) Run(_ context.Context, s State) (Partial, error) {
	seed := simulation.Hashes(s.RequestID, s.VideoURL)
	variant := seed.IDHash % uint64(len(sceneTemplates))
	h := seed.IDHash + variant

	ambient := strings.Join(s.AmbientTags, " ")
	var idx uint64
	switch {
	case strings.Contains(ambient, "Music") || strings.Contains(ambient, "Rhythm"):
		idx = h % 2
	case strings.Contains(ambient, "Nature") || strings.Contains(ambient, "Peaceful"):
		idx = 1 + h%2
	default:
		idx = h % uint64(len(sceneMoods))
	}

	return Partial{SceneMood: ptr(sceneMoods[idx])}, nil
}

func contentKind(videoURL string) string {
	u := strings.ToLower(videoURL)
	switch {
	case strings.Contains(u, "sample") || strings.Contains(u, "demo"):
		return "demo"
	case strings.Contains(u, "music") || strings.Contains(u, "song"):
		return "music"
	case strings.Contains(u, "nature") || strings.Contains(u, "outdoor"):
		return "nature"
	case strings.Contains(u, "urban") || strings.Contains(u, "city"):
		return "urban"
	}
	return "general"
}

func leadRune(s string) int {
	r, _ := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return 0
	}
	return int(r)
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0:0]
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
