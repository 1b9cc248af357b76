// Package simulation produces deterministic synthetic analysis results for
// deployments without AI credentials.
//
// The output depends only on (request id, video url). Hashing uses xxhash so
// results are stable across processes and restarts.
package simulation

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"

	"github.com/amillerrr/video2music/pkg/models"
)

const (
	versionPrefix   = "simulation-v"
	frameIntervalMs = 2000
	trackCount      = 3
	trackStep       = 7
)

// Seed holds the hash inputs every selector is derived from.
type Seed struct {
	IDHash    uint64
	URLHash   uint64
	Combined  uint64
	VideoSeed uint64
}

// Hashes derives the selector seed for a request.
func Hashes(requestID, videoURL string) Seed {
	idHash := xxhash.Sum64String(models.ShortID(requestID, 8)) & 0xffffffff

	var urlHash uint64
	for _, r := range videoURL {
		urlHash += uint64(r)
	}

	return Seed{
		IDHash:    idHash,
		URLHash:   urlHash,
		Combined:  idHash + urlHash,
		VideoSeed: xxhash.Sum64String(requestID+"_"+videoURL) % 10000,
	}
}

// MoodIndex returns the index into the mood pool selected by s.
func (s Seed) MoodIndex() int {
	return int((s.Combined*3 + s.IDHash + s.URLHash) % uint64(len(moodPool)))
}

// Moods returns a copy of the mood label pool.
func Moods() []string {
	return append([]string(nil), moodPool...)
}

// Generate builds a complete synthetic result for the request.
func Generate(requestID, videoURL string) *models.ProcessingResult {
	s := Hashes(requestID, videoURL)
	c := s.Combined
	shortID := models.ShortID(requestID, 6)

	frameCount := 4 + int(c%4)
	frames := make([]string, frameCount)
	for i := range frames {
		frames[i] = fmt.Sprintf("%s_frame_%03d_%dms.jpg", requestID, i+1, i*frameIntervalMs)
	}

	category := ambientCategories[c%uint64(len(ambientCategories))]
	ambient := append([]string(nil), category[:3+int(c%2)]...)

	visual := make([]string, 0, 4)
	for i := uint64(0); i < 4; i++ {
		if i < 2 {
			visual = append(visual, visualBase[(c+i*7)%uint64(len(visualBase))])
		} else {
			visual = append(visual, visualContext[(c+i*11)%uint64(len(visualContext))])
		}
	}

	mood := moodPool[s.MoodIndex()]
	moodLower := strings.ToLower(mood)
	visualPair := strings.ToLower(strings.Join(visual[:2], ", "))
	ambientPair := strings.ToLower(strings.Join(ambient[:2], ", "))

	descriptions := []string{
		fmt.Sprintf("Captivating %d-frame sequence with %s undertones. Audio features %s elements while visuals emphasize %s throughout the composition.",
			frameCount, moodLower, ambientPair, visualPair),
		fmt.Sprintf("Rich visual narrative spanning %d distinct moments, characterized by %s energy. The footage highlights %s complemented by %s soundscape.",
			frameCount, moodLower, visualPair, ambientPair),
		fmt.Sprintf("Compelling video analysis revealing %d key frames with %s atmosphere. Content showcases %s enhanced by %s audio signature.",
			frameCount, moodLower, visualPair, ambientPair),
	}
	description := descriptions[(s.IDHash+c)%uint64(len(descriptions))]

	firstTag := strings.ToLower(ambient[0])
	transcriptions := []string{
		fmt.Sprintf("Audio analysis of video %s reveals %s elements with varied tonal qualities.", shortID, firstTag),
		fmt.Sprintf("Voice and environmental audio detected in sequence %s with %s characteristics.", shortID, firstTag),
		fmt.Sprintf("Complex audio landscape in video %s featuring %s components and ambient soundscape.", shortID, firstTag),
	}
	transcription := transcriptions[c%uint64(len(transcriptions))]

	reasoning := fmt.Sprintf(
		"Based on the %s scene analysis featuring %s and %s with %s audio elements, these recommendations complement the unique characteristics of video %s.",
		moodLower, strings.ToLower(visual[0]), strings.ToLower(visual[1]), firstTag, shortID)

	result := &models.ProcessingResult{
		SceneDescription:   description,
		SceneMood:          mood,
		VisualElements:     visual,
		Transcription:      transcription,
		AmbientTags:        ambient,
		Recommendations:    recommend(s, utf8.RuneCountInString(videoURL)),
		Reasoning:          reasoning,
		ProcessingDuration: 4.5 + float64(c%20)/10,
		ModelVersions: map[string]string{
			"video_analysis": fmt.Sprintf("%s%d.%d", versionPrefix, 1+c%3, c%10),
			"audio_analysis": fmt.Sprintf("content-aware-v%d.%d", 1+c%2, (c*7)%10),
		},
		ExtractedFrames: frames,
	}
	return result
}

// recommend picks three distinct library tracks.
func recommend(s Seed, urlLen int) []models.MusicRecommendation {
	n := uint64(len(library))
	confidence := 0.78 + float64(s.Combined%20)/100 + float64(s.VideoSeed%10)/100
	confidence = math.Round(math.Min(0.99, confidence)*1000) / 1000

	used := make(map[uint64]bool, trackCount)
	recs := make([]models.MusicRecommendation, 0, trackCount)
	for i := uint64(0); i < trackCount; i++ {
		sel := (s.Combined*(i+1) + s.VideoSeed + uint64(urlLen)*i) % n
		for used[sel] {
			sel = (sel + trackStep) % n
		}
		used[sel] = true

		t := library[sel]
		recs = append(recs, models.MusicRecommendation{
			Title:           t.title,
			Artist:          t.artist,
			Genre:           t.genre,
			Mood:            t.mood,
			EnergyLevel:     t.energy,
			Valence:         t.valence,
			ConfidenceScore: confidence,
		})
	}
	return recs
}

// IsSimulated reports whether result was produced by Generate.
func IsSimulated(result *models.ProcessingResult) bool {
	if result == nil {
		return false
	}
	return strings.HasPrefix(result.ModelVersions["video_analysis"], versionPrefix)
}
