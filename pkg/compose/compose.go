package compose

import (
	"fmt"
	"math/rand"

	"github.com/igolaizola/xenotune/pkg/lstm"
	"github.com/igolaizola/xenotune/pkg/mode"
	"github.com/igolaizola/xenotune/pkg/score"
)

// DefaultJitter is the maximum tempo perturbation in bpm.
const DefaultJitter = 2

// Composer assembles the score of a mode.
type Composer struct {
	Policy      Policy
	Sections    mode.Sections
	BeatsPerBar int
	// Models provides cached sequence models for the learned strategy. A
	// fresh model is trained on each call when nil.
	Models ModelSource
	// Jitter is the maximum tempo perturbation in bpm, applied once per score.
	Jitter int
}

// New returns a composer with the default style policy and section table.
func New() *Composer {
	return &Composer{
		Policy:      NewStylePolicy(),
		Sections:    mode.DefaultSections,
		BeatsPerBar: mode.BeatsPerBar,
		Jitter:      DefaultJitter,
	}
}

// Compose builds a score with one track per contributing instrument followed
// by the melody track. All randomness is drawn from rng.
func (c *Composer) Compose(m *mode.Mode, rng *rand.Rand) (*score.Score, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	structure := make([]string, len(m.Structure))
	copy(structure, m.Structure)
	if m.Shuffle {
		rng.Shuffle(len(structure), func(i, j int) {
			structure[i], structure[j] = structure[j], structure[i]
		})
	}

	s := &score.Score{
		Tempo: c.tempo(m.Tempo, rng),
		Title: m.Title(),
	}

	b := c.builder()
	for _, inst := range m.Instruments {
		t := b.Build(rng, inst, structure)
		if len(t.Events) == 0 {
			continue
		}
		s.Tracks = append(s.Tracks, t)
	}

	mel := m.MelodyConfig()
	gen, err := c.melody(rng, m, mel)
	if err != nil {
		return nil, err
	}
	events, err := gen.Melody(rng, b.Budgets(structure))
	if err != nil {
		return nil, err
	}
	if len(events) > 0 {
		s.Tracks = append(s.Tracks, &score.Track{
			Name:    mel.Instrument,
			Program: mode.Program(mel.Instrument),
			Events:  events,
		})
	}

	if len(s.Tracks) == 0 {
		return nil, fmt.Errorf("compose: %w: %s produced no tracks", mode.ErrInvalid, m.Name)
	}
	return s, nil
}

func (c *Composer) builder() *Builder {
	b := &Builder{
		Policy:      c.Policy,
		Sections:    c.Sections,
		BeatsPerBar: c.BeatsPerBar,
	}
	if b.Policy == nil {
		b.Policy = NewStylePolicy()
	}
	if b.Sections == nil {
		b.Sections = mode.DefaultSections
	}
	if b.BeatsPerBar <= 0 {
		b.BeatsPerBar = mode.BeatsPerBar
	}
	return b
}

func (c *Composer) tempo(base int, rng *rand.Rand) int {
	tempo := base
	if c.Jitter > 0 {
		tempo += rng.Intn(2*c.Jitter+1) - c.Jitter
	}
	if tempo < mode.MinTempo {
		tempo = mode.MinTempo
	}
	if tempo > mode.MaxTempo {
		tempo = mode.MaxTempo
	}
	return tempo
}

func (c *Composer) melody(rng *rand.Rand, m *mode.Mode, mel mode.Melody) (Melody, error) {
	if mel.Strategy != mode.StrategyLearned {
		return NewMotifMelody(mel), nil
	}
	var model *lstm.Model
	var err error
	if c.Models != nil {
		model, err = c.Models.Model(m, mel)
	} else {
		model, err = lstm.TrainMode(rng, m, mel, lstm.Options{})
	}
	if err != nil {
		return nil, fmt.Errorf("compose: couldn't get melody model: %w", err)
	}
	return &LearnedMelody{
		Model:     model,
		Seed:      lstm.Seed(rng, model.Vocabulary(), melodySeed(m)),
		Durations: mel.Durations,
		Velocity:  uint8(mel.Velocity),
		Sampling:  mel.Sampling,
	}, nil
}
