package compose

import (
	"math/rand"

	"github.com/igolaizola/xenotune/pkg/mode"
	"github.com/igolaizola/xenotune/pkg/score"
)

// Builder expands an instrument over the section sequence of a mode.
type Builder struct {
	Policy      Policy
	Sections    mode.Sections
	BeatsPerBar int
}

// Budgets returns the beat budget of every section in the structure.
func (b *Builder) Budgets(structure []string) []float64 {
	budgets := make([]float64, len(structure))
	for i, s := range structure {
		budgets[i] = b.Sections.Beats(s, b.BeatsPerBar)
	}
	return budgets
}

// Build returns the part of the instrument. The track is empty when the
// instrument has nothing to play.
func (b *Builder) Build(rng *rand.Rand, inst *mode.Instrument, structure []string) *score.Track {
	t := &score.Track{
		Name:    inst.Name,
		Program: mode.Program(inst.Name),
	}
	if !inst.Contributes() {
		return t
	}
	for _, target := range b.Budgets(structure) {
		events, _ := b.BuildSection(rng, inst, target)
		t.Events = append(t.Events, events...)
	}
	return t
}

// BuildSection applies the policy until the section budget is reached and
// returns the events along with the beats they span. The total is never
// below the target unless the policy has nothing to emit.
func (b *Builder) BuildSection(rng *rand.Rand, inst *mode.Instrument, target float64) ([]score.Event, float64) {
	var events []score.Event
	var beats float64
	for beats < target {
		em, ok := b.Policy.Emit(rng, inst, target-beats)
		if !ok || em.Beats <= 0 {
			break
		}
		events = append(events, em.Events...)
		beats += em.Beats
	}
	return events, beats
}
