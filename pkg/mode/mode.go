package mode

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/igolaizola/xenotune/pkg/score"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned for missing or malformed mode configurations.
var ErrInvalid = errors.New("invalid mode")

const (
	MinTempo = 20
	MaxTempo = 300
)

// Config holds every mode of a configuration file, keyed by mode name.
type Config map[string]*Mode

// Mode describes tempo, instruments and section ordering of a generation.
type Mode struct {
	Name        string        `json:"-" yaml:"-"`
	Tempo       int           `json:"tempo" yaml:"tempo"`
	Instruments []*Instrument `json:"instruments" yaml:"instruments"`
	Structure   []string      `json:"structure" yaml:"structure"`
	Shuffle     bool          `json:"shuffle,omitempty" yaml:"shuffle,omitempty"`
	Melody      *Melody       `json:"melody,omitempty" yaml:"melody,omitempty"`
}

type Instrument struct {
	Name    string   `json:"name" yaml:"name"`
	Style   Tags     `json:"style,omitempty" yaml:"style,omitempty"`
	Notes   []string `json:"notes,omitempty" yaml:"notes,omitempty"`
	Chords  []Chord  `json:"chords,omitempty" yaml:"chords,omitempty"`
	Samples []string `json:"samples,omitempty" yaml:"samples,omitempty"`
}

// Contributes reports whether the instrument can produce audible events.
// Sample based instruments are played by the host and never rendered.
func (i *Instrument) Contributes() bool {
	if len(i.Samples) > 0 {
		return false
	}
	return len(i.Notes) > 0 || len(i.Chords) > 0
}

// Load reads a json or yaml mode file.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("mode: couldn't read config file: %w", err)
	}
	var cfg Config
	switch ext := filepath.Ext(path); ext {
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("mode: couldn't unmarshal json: %w: %v", ErrInvalid, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("mode: couldn't unmarshal yaml: %w: %v", ErrInvalid, err)
		}
	default:
		return nil, fmt.Errorf("mode: unsupported config format: %s", ext)
	}
	// Mode names are case insensitive
	folded := Config{}
	for name, m := range cfg {
		if m == nil {
			return nil, fmt.Errorf("mode: %w: %q is empty", ErrInvalid, name)
		}
		key := strings.ToLower(strings.TrimSpace(name))
		if _, ok := folded[key]; ok {
			return nil, fmt.Errorf("mode: %w: duplicate mode %q", ErrInvalid, key)
		}
		m.Name = key
		folded[key] = m
	}
	return folded, nil
}

// Save writes the configuration back using the format given by the extension.
func Save(path string, cfg Config) error {
	var b []byte
	var err error
	switch ext := filepath.Ext(path); ext {
	case ".json":
		b, err = json.MarshalIndent(cfg, "", "    ")
	case ".yaml", ".yml":
		b, err = yaml.Marshal(cfg)
	default:
		return fmt.Errorf("mode: unsupported config format: %s", ext)
	}
	if err != nil {
		return fmt.Errorf("mode: couldn't marshal config: %w", err)
	}
	if err := os.WriteFile(path, b, 0644); err != nil {
		return fmt.Errorf("mode: couldn't write config file: %w", err)
	}
	return nil
}

// Get returns the validated mode with the given name.
func (c Config) Get(name string) (*Mode, error) {
	m, ok := c[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("mode: %w: unknown mode %q", ErrInvalid, name)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Names returns the sorted mode names.
func (c Config) Names() []string {
	var names []string
	for n := range c {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Validate checks the invariants of the mode. Instruments without notes or
// chords are not an error, they are skipped at composition time.
func (m *Mode) Validate() error {
	if m.Tempo < MinTempo || m.Tempo > MaxTempo {
		return fmt.Errorf("mode: %w: %s tempo %d out of range [%d, %d]", ErrInvalid, m.Name, m.Tempo, MinTempo, MaxTempo)
	}
	if len(m.Structure) == 0 {
		return fmt.Errorf("mode: %w: %s structure is empty", ErrInvalid, m.Name)
	}
	for _, inst := range m.Instruments {
		if inst == nil {
			return fmt.Errorf("mode: %w: %s has an empty instrument", ErrInvalid, m.Name)
		}
		for _, n := range inst.Notes {
			if _, err := score.ParsePitch(n); err != nil {
				return fmt.Errorf("mode: %w: %s/%s: %v", ErrInvalid, m.Name, inst.Name, err)
			}
		}
		for _, c := range inst.Chords {
			for _, n := range c.Pitches {
				if _, err := score.ParsePitch(n); err != nil {
					return fmt.Errorf("mode: %w: %s/%s chord: %v", ErrInvalid, m.Name, inst.Name, err)
				}
			}
		}
	}
	mel := m.MelodyConfig()
	for _, n := range mel.Scale {
		if _, err := score.ParsePitch(n); err != nil {
			return fmt.Errorf("mode: %w: %s melody scale: %v", ErrInvalid, m.Name, err)
		}
	}
	if mel.Velocity < 0 || mel.Velocity > 127 {
		return fmt.Errorf("mode: %w: %s melody velocity %d out of range [0, 127]", ErrInvalid, m.Name, mel.Velocity)
	}
	for _, d := range mel.Durations {
		if d <= 0 {
			return fmt.Errorf("mode: %w: %s melody duration %v must be positive", ErrInvalid, m.Name, d)
		}
	}
	switch mel.Strategy {
	case StrategyMotif, StrategyLearned:
	default:
		return fmt.Errorf("mode: %w: %s unknown melody strategy %q", ErrInvalid, m.Name, mel.Strategy)
	}
	switch mel.Sampling {
	case SamplingGreedy, SamplingWeighted:
	default:
		return fmt.Errorf("mode: %w: %s unknown sampling %q", ErrInvalid, m.Name, mel.Sampling)
	}
	switch mel.Corpus {
	case CorpusInstrument, CorpusSynthetic:
	default:
		return fmt.Errorf("mode: %w: %s unknown corpus %q", ErrInvalid, m.Name, mel.Corpus)
	}
	return nil
}

// Pitches returns the unique instrument notes of the mode sorted by key.
func (m *Mode) Pitches() []string {
	seen := map[string]bool{}
	var pitches []string
	for _, inst := range m.Instruments {
		if inst == nil {
			continue
		}
		for _, n := range inst.Notes {
			if seen[n] {
				continue
			}
			seen[n] = true
			pitches = append(pitches, n)
		}
	}
	score.SortPitches(pitches)
	return pitches
}

// Title is the score title for the mode.
func (m *Mode) Title() string {
	name := m.Name
	if name != "" {
		name = strings.ToUpper(name[:1]) + name[1:]
	}
	return fmt.Sprintf("Xenotune - %s Mode", name)
}
