package lstm

import (
	"fmt"
	"math/rand"

	"github.com/igolaizola/xenotune/pkg/mode"
	"gonum.org/v1/gonum/floats"
)

// Next selects the pitch that follows the context, either the most likely
// one (greedy) or a draw weighted by the predicted distribution.
func (m *Model) Next(rng *rand.Rand, context []int, sampling string) int {
	probs := m.Predict(context)
	if sampling == mode.SamplingGreedy {
		return floats.MaxIdx(probs)
	}
	r := rng.Float64()
	var acc float64
	for i, p := range probs {
		acc += p
		if r < acc {
			return i
		}
	}
	return len(probs) - 1
}

// Generate returns the seed followed by n predicted pitches. The context
// window slides over the output as it grows.
func (m *Model) Generate(rng *rand.Rand, seed []string, n int, sampling string) ([]string, error) {
	if len(seed) == 0 {
		return nil, fmt.Errorf("lstm: empty seed")
	}
	context := make([]int, 0, len(seed))
	for _, p := range seed {
		tok, ok := m.vocab.Encode(p)
		if !ok {
			return nil, fmt.Errorf("lstm: seed pitch %q not in vocabulary", p)
		}
		context = append(context, tok)
	}
	if len(context) > ContextSize {
		context = context[len(context)-ContextSize:]
	}
	out := make([]string, len(seed), len(seed)+n)
	copy(out, seed)
	for i := 0; i < n; i++ {
		next := m.Next(rng, context, sampling)
		out = append(out, m.vocab.Decode(next))
		if len(context) == ContextSize {
			context = append(context[:0], context[1:]...)
		}
		context = append(context, next)
	}
	return out, nil
}

// Seed builds a context from the first known notes, padded with random
// vocabulary pitches.
func Seed(rng *rand.Rand, vocab *Vocabulary, notes []string) []string {
	var seed []string
	for _, n := range notes {
		if len(seed) == ContextSize {
			break
		}
		if i, ok := vocab.Encode(n); ok {
			seed = append(seed, vocab.Decode(i))
		}
	}
	for len(seed) < ContextSize {
		seed = append(seed, vocab.Decode(rng.Intn(vocab.Size())))
	}
	return seed
}
