package pipeline

import "github.com/amillerrr/video2music/internal/moods"

var transcriptionTemplates = map[string][]string{
	"demo": {
		"Demo video audio analysis: Clear narration explaining features and functionality. Background music with professional tone and occasional sound effects for emphasis.",
		"Sample video content: Instructional dialogue with step-by-step explanations. Ambient background audio with clean, crisp voice-over throughout the demonstration.",
		"Professional demo recording: Technical explanations with clear articulation. Subtle background music and interface sound effects enhancing the user experience.",
	},
	"music": {
		"Musical composition detected: Rich instrumental arrangements with varied melodic progressions. Dynamic tempo changes and harmonic layers creating an engaging auditory experience.",
		"Audio contains musical performance: Live recording with audience ambiance. Clear instrumental sections alternating with vocal performances and crowd interaction.",
		"Music video audio: Studio-quality recording with balanced mixing. Multiple instrument tracks layered with professional vocal production and spatial audio effects.",
	},
	"nature": {
		"Natural environment recording: Ambient sounds of wind through foliage, distant bird calls, and gentle water movement. Peaceful atmosphere with organic acoustic elements.",
		"Outdoor scene audio: Environmental soundscape featuring wildlife activity, natural acoustics, and atmospheric conditions. Minimal human voice with nature taking precedence.",
		"Nature documentary style: Soft narration over natural ambiance. Bird songs, rustling leaves, and distant animal calls creating an immersive outdoor experience.",
	},
	"urban": {
		"Urban environment audio: City ambiance with traffic flow, pedestrian activity, and distant urban sounds. Occasional conversation and mechanical ambient noise.",
		"Street scene recording: Dynamic urban soundscape with vehicle movement, footsteps on pavement, and urban life atmosphere. Varied acoustic environments.",
		"City life audio: Bustling metropolitan environment with multiple audio layers. Traffic, conversations, construction, and urban technology sounds blending naturally.",
	},
	"general": {
		"Video audio analysis reveals diverse acoustic elements: Speech patterns indicating conversational content with varied emotional tones and clear articulation throughout.",
		"Complex audio landscape detected: Multiple audio sources including dialogue, ambient environmental sounds, and subtle background elements creating rich soundscape.",
		"Professional audio production: Balanced mix of voice content with environmental acoustics. Clear communication enhanced by appropriate ambient audio levels.",
	},
}

var (
	energyLevels = []string{"low", "medium", "high"}
	environments = []string{"indoor", "outdoor", "studio"}
)

var tagCategories = [][]string{
	{"Music", "Instruments", "Melody", "Rhythm"},
	{"Nature", "Birds", "Wind", "Water", "Outdoor"},
	{"Urban", "Traffic", "City", "Voices", "Machinery"},
	{"Indoor", "Conversation", "Footsteps", "Ambient", "Room tone"},
	{"Electronic", "Synthesizer", "Digital", "Technology"},
	{"Laughter", "Celebration", "Applause", "Joy"},
	{"Peaceful", "Calm", "Meditation", "Silence"},
	{"Energetic", "Movement", "Activity", "Dynamic"},
}

var contentSettings = map[string]string{
	"demo":    "presentation",
	"music":   "performance",
	"nature":  "natural",
	"urban":   "urban",
	"general": "everyday",
}

// Each template takes the setting and the frame count.
var sceneTemplates = []string{
	"Dynamic video content in a %s setting with %d key visual sequences. The footage shows varied lighting and movement patterns with steady pacing throughout.",
	"Cinematic sequence with a %s atmosphere across %d distinct frames. The visual narrative includes smooth transitions and contextual depth.",
	"Rich visual content with %s characteristics over %d analyzed frames. The sequence demonstrates environmental storytelling elements.",
}

var sceneBaseElements = []string{
	"Color Palette", "Lighting", "Movement", "Composition", "Depth",
	"Texture", "Contrast", "Perspective", "Focus", "Atmosphere",
	"Characters", "Objects", "Environment", "Transitions", "Framing",
}

var sceneContextElements = []string{
	"Dynamic Motion", "Static Beauty", "Rhythmic Patterns", "Organic Flow",
	"Geometric Shapes", "Natural Forms", "Urban Elements", "Rural Scenery",
	"Indoor Ambiance", "Outdoor Expanse", "Close-ups", "Wide Shots",
}

// The first three indexes are picked by the ambient bias in MoodReasoner.
var sceneMoods = []string{
	moods.EnergeticVibrant,
	moods.CalmContemplative,
	moods.DramaticIntense,
	moods.PlayfulLighthearted,
	moods.MysteriousIntriguing,
	moods.WarmInviting,
	moods.CoolProfessional,
	moods.NostalgicReflective,
}

type fallbackTrack struct {
	title      string
	artist     string
	genre      string
	mood       string
	energy     float64
	valence    float64
	confidence float64
}

var fallbackLibrary = []fallbackTrack{
	{"Upbeat Journey", "Dynamic Ensemble", "Electronic Pop", "Energetic", 0.85, 0.9, 0.88},
	{"Serene Moments", "Ambient Collective", "Ambient", "Peaceful", 0.2, 0.7, 0.92},
	{"Urban Pulse", "City Sounds", "Hip-Hop", "Urban", 0.8, 0.75, 0.85},
	{"Natural Flow", "Organic Waves", "Folk Electronic", "Nature-inspired", 0.6, 0.8, 0.87},
	{"Contemplative Space", "Reflective Minds", "Neo-Classical", "Contemplative", 0.3, 0.6, 0.91},
	{"Vibrant Energy", "Colorful Beats", "Dance", "Vibrant", 0.95, 0.92, 0.89},
	{"Mysterious Depths", "Shadow Harmonics", "Dark Ambient", "Mysterious", 0.4, 0.3, 0.86},
	{"Warm Nostalgia", "Memory Lane", "Indie Folk", "Nostalgic", 0.5, 0.65, 0.90},
	{"Professional Focus", "Corporate Vibes", "Minimal Techno", "Professional", 0.7, 0.55, 0.83},
	{"Dramatic Tension", "Cinematic Orchestra", "Orchestral", "Dramatic", 0.9, 0.4, 0.93},
}
