package simulation

var ambientCategories = [][]string{
	{"Music", "Instruments", "Melody", "Harmony"},
	{"Nature", "Birds", "Wind", "Water", "Outdoor"},
	{"Urban", "Traffic", "City", "Voices", "Street"},
	{"Indoor", "Conversation", "Footsteps", "Ambient", "Room"},
	{"Electronic", "Synthesizer", "Digital", "Technology"},
	{"Celebration", "Laughter", "Applause", "Joy", "Party"},
	{"Peaceful", "Calm", "Meditation", "Quiet", "Serene"},
	{"Energetic", "Movement", "Activity", "Dynamic", "Vibrant"},
}

var visualBase = []string{
	"Lighting", "Color Dynamics", "Movement Patterns", "Composition",
	"Depth", "Texture", "Contrast", "Perspective", "Focus",
}

var visualContext = []string{
	"Cinematic Flow", "Natural Beauty", "Rhythmic Motion", "Organic Shapes",
	"Geometric Forms", "Atmospheric Depth", "Character Interaction", "Environmental Context",
}

var moodPool = []string{
	"Energetic and Vibrant", "Calm and Contemplative", "Dramatic and Intense",
	"Playful and Lighthearted", "Mysterious and Intriguing", "Warm and Inviting",
	"Cool and Professional", "Nostalgic and Reflective", "Adventurous and Bold",
	"Romantic and Dreamy", "Suspenseful and Tense", "Uplifting and Inspiring",
	"Melancholic and Thoughtful", "Chaotic and Energetic", "Serene and Peaceful",
	"Dark and Moody", "Bright and Cheerful", "Sophisticated and Elegant",
	"Raw and Authentic", "Futuristic and Modern", "Whimsical and Creative",
}

type track struct {
	title   string
	artist  string
	genre   string
	mood    string
	energy  float64
	valence float64
}

var library = []track{
	{"Dynamic Rhythm", "Pulse Collective", "Electronic", "Energetic", 0.85, 0.9},
	{"Serene Flow", "Ambient Waters", "Ambient", "Calm", 0.25, 0.7},
	{"Urban Beats", "City Pulse", "Hip-Hop", "Urban", 0.8, 0.75},
	{"Natural Harmony", "Organic Sound", "Folk", "Peaceful", 0.4, 0.8},
	{"Cinematic Journey", "Epic Sounds", "Orchestral", "Dramatic", 0.9, 0.6},
	{"Contemplative Space", "Mindful Tones", "Neo-Classical", "Reflective", 0.3, 0.65},
	{"Vibrant Energy", "Colorful Beats", "Dance", "Joyful", 0.95, 0.92},
	{"Mysterious Depths", "Shadow Music", "Dark Ambient", "Mysterious", 0.4, 0.35},
	{"Sunset Vibes", "Golden Hour", "Chill Pop", "Warm", 0.6, 0.8},
	{"Digital Dreams", "Synth Collective", "Synthwave", "Futuristic", 0.7, 0.7},
	{"Mountain Echo", "Valley Sounds", "Acoustic", "Nature", 0.5, 0.75},
	{"Night Drive", "Midnight Express", "Electronic Rock", "Adventurous", 0.85, 0.65},
	{"Coffee Shop Melody", "Café Musicians", "Jazz", "Cozy", 0.4, 0.8},
	{"Ocean Waves", "Seaside Harmony", "Ambient Nature", "Tranquil", 0.2, 0.9},
	{"City Lights", "Metro Vibes", "Lo-Fi Hip Hop", "Modern", 0.6, 0.6},
	{"Storm Brewing", "Thunder Collective", "Dark Rock", "Intense", 0.95, 0.3},
	{"Pixel Perfect", "Retro Gaming", "Chiptune", "Playful", 0.8, 0.9},
	{"Forest Path", "Woodland Ensemble", "Celtic", "Mystical", 0.5, 0.7},
}
