package models

// ProcessingResult is the terminal analysis payload embedded in a completed request.
type ProcessingResult struct {
	SceneDescription   string                `dynamodbav:"scene_description" json:"scene_description"`
	SceneMood          string                `dynamodbav:"scene_mood" json:"scene_mood"`
	VisualElements     []string              `dynamodbav:"visual_elements" json:"visual_elements"`
	Transcription      string                `dynamodbav:"transcription" json:"transcription"`
	AmbientTags        []string              `dynamodbav:"ambient_tags" json:"ambient_tags"`
	Recommendations    []MusicRecommendation `dynamodbav:"recommendations" json:"recommendations"`
	Reasoning          string                `dynamodbav:"reasoning" json:"reasoning"`
	ProcessingDuration float64               `dynamodbav:"processing_duration" json:"processing_duration"`
	ModelVersions      map[string]string     `dynamodbav:"model_versions" json:"model_versions"`
	ExtractedFrames    []string              `dynamodbav:"extracted_frames" json:"extracted_frames"`
}

// Normalize replaces nil collections with empty ones so they serialize as [] and {}.
func (r *ProcessingResult) Normalize() *ProcessingResult {
	if r.VisualElements == nil {
		r.VisualElements = []string{}
	}
	if r.AmbientTags == nil {
		r.AmbientTags = []string{}
	}
	if r.Recommendations == nil {
		r.Recommendations = []MusicRecommendation{}
	}
	if r.ModelVersions == nil {
		r.ModelVersions = map[string]string{}
	}
	if r.ExtractedFrames == nil {
		r.ExtractedFrames = []string{}
	}
	return r
}

// MusicRecommendation is one suggested track.
type MusicRecommendation struct {
	Title           string   `dynamodbav:"title" json:"title"`
	Artist          string   `dynamodbav:"artist" json:"artist"`
	Genre           string   `dynamodbav:"genre" json:"genre"`
	Mood            string   `dynamodbav:"mood" json:"mood"`
	EnergyLevel     float64  `dynamodbav:"energy_level" json:"energy_level"`
	Valence         float64  `dynamodbav:"valence" json:"valence"`
	Danceability    *float64 `dynamodbav:"danceability,omitempty" json:"danceability,omitempty"`
	Tempo           *float64 `dynamodbav:"tempo,omitempty" json:"tempo,omitempty"`
	ConfidenceScore float64  `dynamodbav:"confidence_score" json:"confidence_score"`
	PreviewURL      string   `dynamodbav:"preview_url,omitempty" json:"preview_url,omitempty"`
	CatalogID       string   `dynamodbav:"catalog_id,omitempty" json:"catalog_id,omitempty"`
	ExternalURL     string   `dynamodbav:"external_url,omitempty" json:"external_url,omitempty"`
}

// Clamp01 bounds v to [0,1].
func Clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
