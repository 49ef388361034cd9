package lstm

import (
	"fmt"
	"math/rand"

	"github.com/igolaizola/xenotune/pkg/mode"
)

// Rewrite replaces the notes of every instrument in the configuration with
// a greedy continuation of its current notes, and its chords with the
// three-note windows of the new sequence.
func Rewrite(rng *rand.Rand, model *Model, cfg mode.Config, length int) error {
	for _, name := range cfg.Names() {
		m := cfg[name]
		for _, inst := range m.Instruments {
			if inst == nil || len(inst.Samples) > 0 {
				continue
			}
			seed := Seed(rng, model.vocab, inst.Notes)
			notes, err := model.Generate(rng, seed, length, mode.SamplingGreedy)
			if err != nil {
				return fmt.Errorf("lstm: %s/%s: %w", name, inst.Name, err)
			}
			inst.Notes = notes
			inst.Chords = nil
			for i := 0; i+3 <= len(notes); i++ {
				pitches := make([]string, 3)
				copy(pitches, notes[i:i+3])
				inst.Chords = append(inst.Chords, mode.Chord{Pitches: pitches})
			}
		}
	}
	return nil
}
