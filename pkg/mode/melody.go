package mode

const (
	StrategyMotif   = "motif"
	StrategyLearned = "learned"

	SamplingGreedy   = "greedy"
	SamplingWeighted = "weighted"

	CorpusInstrument = "instrument"
	CorpusSynthetic  = "synthetic"
)

// Melody configures the melody part of a mode. Zero values are replaced by
// the defaults of the mode.
type Melody struct {
	Strategy      string    `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	Instrument    string    `json:"instrument,omitempty" yaml:"instrument,omitempty"`
	Scale         []string  `json:"scale,omitempty" yaml:"scale,omitempty"`
	Durations     []float64 `json:"durations,omitempty" yaml:"durations,omitempty"`
	Velocity      int       `json:"velocity,omitempty" yaml:"velocity,omitempty"`
	Sampling      string    `json:"sampling,omitempty" yaml:"sampling,omitempty"`
	PersistMotif  bool      `json:"persist_motif,omitempty" yaml:"persist_motif,omitempty"`
	VariationRate float64   `json:"variation_rate,omitempty" yaml:"variation_rate,omitempty"`
	Epochs        int       `json:"epochs,omitempty" yaml:"epochs,omitempty"`
	Corpus        string    `json:"corpus,omitempty" yaml:"corpus,omitempty"`
}

var (
	focusDurations = []float64{0.5, 1.0, 1.5}
	calmDurations  = []float64{1.0, 2.0}
)

var defaultMelodies = map[string]Melody{
	"focus": {
		Instrument: "Electric Piano",
		Scale:      []string{"C4", "D4", "E4", "G4", "A4", "C5", "D5", "E5"},
		Durations:  focusDurations,
		Velocity:   50,
	},
	"relax": {
		Instrument: "Piano",
		Scale:      []string{"A3", "C4", "D4", "E4", "G4", "A4", "C5"},
		Durations:  calmDurations,
		Velocity:   40,
	},
	"sleep": {
		Instrument: "Felt Piano",
		Scale:      []string{"C3", "E3", "G3", "A3", "C4", "D4", "E4"},
		Durations:  calmDurations,
		Velocity:   30,
	},
}

var fallbackScale = []string{"C4", "D4", "E4", "F4", "G4", "A4", "B4", "C5"}

// MelodyConfig returns the melody settings with defaults applied.
func (m *Mode) MelodyConfig() Melody {
	var mel Melody
	if m.Melody != nil {
		mel = *m.Melody
	}
	def, ok := defaultMelodies[m.Name]
	if !ok {
		def = Melody{
			Instrument: "Piano",
			Scale:      m.Pitches(),
			Durations:  calmDurations,
			Velocity:   40,
		}
		if len(def.Scale) == 0 {
			def.Scale = fallbackScale
		}
	}
	if mel.Strategy == "" {
		mel.Strategy = StrategyMotif
	}
	if mel.Instrument == "" {
		mel.Instrument = def.Instrument
	}
	if len(mel.Scale) == 0 {
		mel.Scale = def.Scale
	}
	if len(mel.Durations) == 0 {
		mel.Durations = def.Durations
	}
	if mel.Velocity == 0 {
		mel.Velocity = def.Velocity
	}
	if mel.Sampling == "" {
		mel.Sampling = SamplingWeighted
	}
	if mel.VariationRate == 0 {
		mel.VariationRate = 0.5
	}
	if mel.Epochs == 0 {
		mel.Epochs = 20
	}
	if mel.Corpus == "" {
		mel.Corpus = CorpusInstrument
	}
	return mel
}
