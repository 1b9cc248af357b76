// Package moods maps coarse scene mood labels to audio-feature targets and
// catalog search keywords.
package moods

import "strings"

// Known mood labels.
const (
	JoyfulEnergetic = "Joyful and Energetic"
	CalmPeaceful    = "Calm and Peaceful"
	DramaticIntense = "Dramatic and Intense"
	Romantic        = "Romantic"
	Mysterious      = "Mysterious"

	// Labels produced by the analysis pipeline's mood reasoning.
	EnergeticVibrant     = "Energetic and Vibrant"
	CalmContemplative    = "Calm and Contemplative"
	PlayfulLighthearted  = "Playful and Lighthearted"
	MysteriousIntriguing = "Mysterious and Intriguing"
	WarmInviting         = "Warm and Inviting"
	CoolProfessional     = "Cool and Professional"
	NostalgicReflective  = "Nostalgic and Reflective"

	// Default is used whenever a label has no profile of its own.
	Default = JoyfulEnergetic
)

const (
	danceBoost     = 0.2
	maxSearchTerms = 3
)

// Profile is the audio-feature target for a mood.
type Profile struct {
	Valence      float64
	Energy       float64
	Danceability float64
	TempoBand    string
	Tempo        float64
	Genres       []string
}

var profiles = map[string]Profile{
	JoyfulEnergetic: {Valence: 0.8, Energy: 0.9, Danceability: 0.8, TempoBand: "120-140", Tempo: 130,
		Genres: []string{"pop", "dance", "funk", "upbeat"}},
	CalmPeaceful: {Valence: 0.6, Energy: 0.3, Danceability: 0.4, TempoBand: "60-100", Tempo: 80,
		Genres: []string{"ambient", "chill", "acoustic", "folk"}},
	DramaticIntense: {Valence: 0.4, Energy: 0.8, Danceability: 0.5, TempoBand: "100-130", Tempo: 120,
		Genres: []string{"rock", "cinematic", "epic", "orchestral"}},
	Romantic: {Valence: 0.7, Energy: 0.4, Danceability: 0.6, TempoBand: "70-110", Tempo: 90,
		Genres: []string{"love songs", "ballad", "romantic", "r&b"}},
	Mysterious: {Valence: 0.3, Energy: 0.6, Danceability: 0.4, TempoBand: "80-120", Tempo: 100,
		Genres: []string{"dark", "electronic", "ambient", "experimental"}},
	EnergeticVibrant: {Valence: 0.85, Energy: 0.9, Danceability: 0.85, TempoBand: "120-140", Tempo: 128,
		Genres: []string{"dance", "electronic", "pop", "house"}},
	CalmContemplative: {Valence: 0.5, Energy: 0.25, Danceability: 0.3, TempoBand: "60-90", Tempo: 75,
		Genres: []string{"acoustic", "indie", "folk", "ambient"}},
	PlayfulLighthearted: {Valence: 0.85, Energy: 0.7, Danceability: 0.75, TempoBand: "110-130", Tempo: 120,
		Genres: []string{"pop", "indie", "electronic", "funk"}},
	MysteriousIntriguing: {Valence: 0.3, Energy: 0.55, Danceability: 0.4, TempoBand: "80-120", Tempo: 100,
		Genres: []string{"dark", "electronic", "ambient", "experimental"}},
	WarmInviting: {Valence: 0.75, Energy: 0.45, Danceability: 0.55, TempoBand: "80-110", Tempo: 95,
		Genres: []string{"indie", "folk", "acoustic", "jazz"}},
	CoolProfessional: {Valence: 0.5, Energy: 0.6, Danceability: 0.6, TempoBand: "100-125", Tempo: 115,
		Genres: []string{"electronic", "minimal", "techno", "ambient"}},
	NostalgicReflective: {Valence: 0.45, Energy: 0.4, Danceability: 0.4, TempoBand: "70-100", Tempo: 85,
		Genres: []string{"indie", "alternative", "folk", "classical"}},
}

var searchKeywords = map[string][]string{
	JoyfulEnergetic: {"happy", "upbeat", "energetic", "fun"},
	CalmPeaceful:    {"calm", "peaceful", "chill", "relaxing"},
	DramaticIntense: {"dramatic", "intense", "epic", "powerful"},
	Romantic:        {"love", "romantic", "sweet", "tender"},

	EnergeticVibrant:     {"energetic", "vibrant", "dance", "upbeat"},
	CalmContemplative:    {"calm", "acoustic", "reflective", "folk"},
	PlayfulLighthearted:  {"playful", "fun", "cheerful", "pop"},
	MysteriousIntriguing: {"mysterious", "dark", "atmospheric", "ambient"},
	WarmInviting:         {"warm", "cozy", "acoustic", "jazz"},
	CoolProfessional:     {"minimal", "electronic", "focus", "techno"},
	NostalgicReflective:  {"nostalgic", "retro", "reflective", "indie"},
}

var genericKeywords = []string{"music", "popular", "trending"}

// Title words that make a track count as mood-appropriate when scoring
// relevance. Only these two moods earn a title bonus.
var relevanceWords = map[string][]string{
	JoyfulEnergetic: {"happy", "joy", "fun", "party", "dance", "upbeat"},
	CalmPeaceful:    {"calm", "peace", "chill", "relax", "quiet"},
}

type preferenceRule struct {
	triggers []string
	terms    []string
}

// Musical preferences recognised in a user's description. A later rule's
// terms are placed ahead of an earlier one's.
var preferenceRules = []preferenceRule{
	{[]string{"electronic", "techno", "edm"}, []string{"electronic", "techno", "edm"}},
	{[]string{"acoustic", "guitar"}, []string{"acoustic", "guitar"}},
	{[]string{"instrumental", "no vocals"}, []string{"instrumental"}},
	{[]string{"upbeat", "energetic"}, []string{"upbeat", "energetic"}},
	{[]string{"chill", "relaxing"}, []string{"chill", "relaxing"}},
	{[]string{"rock", "metal"}, []string{"rock"}},
	{[]string{"jazz", "blues"}, []string{"jazz"}},
	{[]string{"classical", "orchestral"}, []string{"classical", "orchestral"}},
	{[]string{"hip hop", "rap"}, []string{"hip hop", "rap"}},
	{[]string{"pop", "mainstream"}, []string{"pop"}},
}

type titleRule struct {
	words []string
	mood  string
}

// Checked in order; the first rule with a matching word wins.
var titleRules = []titleRule{
	{[]string{"happy", "joy", "fun", "party", "dance"}, "Upbeat and Joyful"},
	{[]string{"love", "heart", "romantic"}, Romantic},
	{[]string{"calm", "peace", "chill", "relax"}, CalmPeaceful},
	{[]string{"intense", "power", "strong", "epic"}, "Intense and Dramatic"},
}

// Map returns the audio-feature profile for label. Unknown labels get the
// Joyful and Energetic profile.
func Map(label string) Profile {
	p, ok := profiles[label]
	if !ok {
		p = profiles[Default]
	}
	p.Genres = append([]string(nil), p.Genres...)
	return p
}

// Known reports whether label has its own profile.
func Known(label string) bool {
	_, ok := profiles[label]
	return ok
}

// Keywords returns the search keywords for label.
func Keywords(label string) []string {
	if kw, ok := searchKeywords[label]; ok {
		return append([]string(nil), kw...)
	}
	return append([]string(nil), genericKeywords...)
}

// VisualKeywords returns context search terms implied by visual elements.
func VisualKeywords(elements []string) []string {
	var out []string
	if contains(elements, "Dancing") {
		out = append(out, "dance")
	}
	if contains(elements, "Nature") {
		out = append(out, "nature")
	}
	if contains(elements, "Party") || contains(elements, "Celebration") {
		out = append(out, "party")
	}
	return out
}

// SearchTerms returns mood keywords followed by visual keywords, deduplicated.
func SearchTerms(label string, elements []string) []string {
	return dedupe(append(Keywords(label), VisualKeywords(elements)...))
}

// Preferences extracts search terms for the musical styles a user asked for
// in their description.
func Preferences(description string) []string {
	d := strings.ToLower(description)
	if d == "" {
		return nil
	}
	var out []string
	for i := len(preferenceRules) - 1; i >= 0; i-- {
		rule := preferenceRules[i]
		if TitleMatches(d, rule.triggers) {
			out = append(out, rule.terms...)
		}
	}
	return out
}

// Query joins the top search terms into a catalog query string. Terms taken
// from the user's description come before the mood and visual terms.
func Query(label string, elements []string, description string) string {
	terms := dedupe(append(Preferences(description), SearchTerms(label, elements)...))
	if len(terms) > maxSearchTerms {
		terms = terms[:maxSearchTerms]
	}
	return strings.Join(terms, " ")
}

// RelevanceWords returns the title words that mark a track as fitting label.
func RelevanceWords(label string) []string {
	return relevanceWords[label]
}

// TitleMatches reports whether the lowercased title contains any of words.
func TitleMatches(title string, words []string) bool {
	t := strings.ToLower(title)
	for _, w := range words {
		if strings.Contains(t, w) {
			return true
		}
	}
	return false
}

// EstimateTrackMood guesses a track's mood from its title, falling back to sceneMood.
func EstimateTrackMood(title, sceneMood string) string {
	for _, rule := range titleRules {
		if TitleMatches(title, rule.words) {
			return rule.mood
		}
	}
	return sceneMood
}

// Danceability returns the profile danceability for label, boosted when the
// scene shows dancing or a party.
func Danceability(label string, elements []string) float64 {
	d := Map(label).Danceability
	if contains(elements, "Dancing") || contains(elements, "Party") {
		d += danceBoost
		if d > 1 {
			d = 1
		}
	}
	return d
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, term := range in {
		if seen[term] {
			continue
		}
		seen[term] = true
		out = append(out, term)
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
