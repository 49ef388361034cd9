package compose

import (
	"fmt"
	"math/rand"

	"github.com/igolaizola/xenotune/pkg/mode"
	"github.com/igolaizola/xenotune/pkg/score"
)

// Motif is a short melodic fragment of 3 or 4 pitches.
type Motif []string

// NewMotif draws 3 or 4 independent pitches from the scale.
func NewMotif(rng *rand.Rand, scale []string) Motif {
	n := 3 + rng.Intn(2)
	m := make(Motif, n)
	for i := range m {
		m[i] = scale[rng.Intn(len(scale))]
	}
	return m
}

// Restate returns an unchanged copy of the motif.
func (m Motif) Restate() Motif {
	c := make(Motif, len(m))
	copy(c, m)
	return c
}

// Vary replaces each pitch with a random scale pitch with probability rate.
func (m Motif) Vary(rng *rand.Rand, scale []string, rate float64) Motif {
	c := m.Restate()
	for i := range c {
		if rng.Float64() < rate {
			c[i] = scale[rng.Intn(len(scale))]
		}
	}
	return c
}

// Retrograde returns the motif reversed.
func (m Motif) Retrograde() Motif {
	c := make(Motif, len(m))
	for i, p := range m {
		c[len(m)-1-i] = p
	}
	return c
}

// Develop picks one of restatement, variation or retrograde uniformly.
func (m Motif) Develop(rng *rand.Rand, scale []string, rate float64) Motif {
	switch rng.Intn(3) {
	case 0:
		return m.Restate()
	case 1:
		return m.Vary(rng, scale, rate)
	default:
		return m.Retrograde()
	}
}

// MotifMelody builds a melody by composing a motif per section and
// developing it until the section budget is filled.
type MotifMelody struct {
	Scale         []string
	Durations     []float64
	Velocity      uint8
	VariationRate float64
	// Persist keeps developing the same motif across sections instead of
	// composing a fresh one for each section.
	Persist bool
}

func NewMotifMelody(mel mode.Melody) *MotifMelody {
	return &MotifMelody{
		Scale:         mel.Scale,
		Durations:     mel.Durations,
		Velocity:      uint8(mel.Velocity),
		VariationRate: mel.VariationRate,
		Persist:       mel.PersistMotif,
	}
}

func (g *MotifMelody) Melody(rng *rand.Rand, budgets []float64) ([]score.Event, error) {
	if len(g.Scale) == 0 {
		return nil, fmt.Errorf("compose: %w: empty melody scale", mode.ErrInvalid)
	}
	if len(g.Durations) == 0 {
		return nil, fmt.Errorf("compose: %w: empty melody durations", mode.ErrInvalid)
	}
	var events []score.Event
	var motif Motif
	for _, target := range budgets {
		if motif == nil || !g.Persist {
			motif = NewMotif(rng, g.Scale)
		}
		var beats float64
		for beats < target {
			phrase := motif.Develop(rng, g.Scale, g.VariationRate)
			for _, p := range phrase {
				d := g.Durations[rng.Intn(len(g.Durations))]
				events = append(events, score.NewNote(p, d, g.Velocity))
				beats += d
				if beats >= target {
					break
				}
			}
			if g.Persist {
				motif = phrase
			}
		}
	}
	return events, nil
}
