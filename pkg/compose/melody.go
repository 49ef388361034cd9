package compose

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/igolaizola/xenotune/pkg/lstm"
	"github.com/igolaizola/xenotune/pkg/mode"
	"github.com/igolaizola/xenotune/pkg/score"
)

// Melody generates the melody part given the beat budget of each section.
type Melody interface {
	Melody(rng *rand.Rand, budgets []float64) ([]score.Event, error)
}

// ModelSource provides trained sequence models for a mode.
type ModelSource interface {
	Model(m *mode.Mode, mel mode.Melody) (*lstm.Model, error)
}

// LearnedMelody samples pitches from a trained sequence model. Each section
// continues from the last pitches of the previous one.
type LearnedMelody struct {
	Model     *lstm.Model
	Seed      []string
	Durations []float64
	Velocity  uint8
	Sampling  string
}

func (g *LearnedMelody) Melody(rng *rand.Rand, budgets []float64) ([]score.Event, error) {
	if len(g.Durations) == 0 {
		return nil, fmt.Errorf("compose: %w: empty melody durations", mode.ErrInvalid)
	}
	seed := g.Seed
	if len(seed) == 0 {
		seed = lstm.Seed(rng, g.Model.Vocabulary(), nil)
	}
	shortest := g.Durations[0]
	for _, d := range g.Durations {
		if d <= 0 {
			return nil, fmt.Errorf("compose: %w: melody duration %v must be positive", mode.ErrInvalid, d)
		}
		if d < shortest {
			shortest = d
		}
	}
	var events []score.Event
	for _, target := range budgets {
		n := int(math.Ceil(target / shortest))
		pitches, err := g.Model.Generate(rng, seed, n, g.Sampling)
		if err != nil {
			return nil, fmt.Errorf("compose: couldn't generate melody: %w", err)
		}
		var beats float64
		for _, p := range pitches {
			if beats >= target {
				break
			}
			d := g.Durations[rng.Intn(len(g.Durations))]
			events = append(events, score.NewNote(p, d, g.Velocity))
			beats += d
		}
		seed = pitches[len(pitches)-lstm.ContextSize:]
	}
	return events, nil
}

// melodySeed picks the notes of the first contributing instrument.
func melodySeed(m *mode.Mode) []string {
	for _, inst := range m.Instruments {
		if inst != nil && inst.Contributes() && len(inst.Notes) > 0 {
			return inst.Notes
		}
	}
	return nil
}
