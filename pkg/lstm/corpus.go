package lstm

import (
	"fmt"
	"math/rand"

	"github.com/igolaizola/xenotune/pkg/mode"
)

const (
	// corpusRepeat inflates a small pitch list into a training corpus.
	corpusRepeat = 15
	syntheticSize = 500
)

// Windows returns every context window of the sequence with its target.
func Windows(vocab *Vocabulary, seq []string) ([]Sample, error) {
	toks := make([]int, len(seq))
	for i, p := range seq {
		tok, ok := vocab.Encode(p)
		if !ok {
			return nil, fmt.Errorf("lstm: pitch %q not in vocabulary", p)
		}
		toks[i] = tok
	}
	var samples []Sample
	for i := 0; i+ContextSize < len(toks); i++ {
		var s Sample
		copy(s.Context[:], toks[i:i+ContextSize])
		s.Target = toks[i+ContextSize]
		samples = append(samples, s)
	}
	return samples, nil
}

// InstrumentCorpus repeats the pitches and shuffles them into one long
// sequence before slicing it into windows.
func InstrumentCorpus(rng *rand.Rand, vocab *Vocabulary, pitches []string, repeat int) ([]Sample, error) {
	if repeat <= 0 {
		repeat = corpusRepeat
	}
	seq := make([]string, 0, len(pitches)*repeat)
	for i := 0; i < repeat; i++ {
		seq = append(seq, pitches...)
	}
	rng.Shuffle(len(seq), func(i, j int) { seq[i], seq[j] = seq[j], seq[i] })
	return Windows(vocab, seq)
}

// SyntheticCorpus draws n random windows over the vocabulary.
func SyntheticCorpus(rng *rand.Rand, vocab *Vocabulary, n int) []Sample {
	if n <= 0 {
		n = syntheticSize
	}
	samples := make([]Sample, n)
	for i := range samples {
		for j := range samples[i].Context {
			samples[i].Context[j] = rng.Intn(vocab.Size())
		}
		samples[i].Target = rng.Intn(vocab.Size())
	}
	return samples
}

// TrainMode builds the vocabulary and corpus selected by the melody
// settings and trains a fresh model on them.
func TrainMode(rng *rand.Rand, m *mode.Mode, mel mode.Melody, opts Options) (*Model, error) {
	var vocab *Vocabulary
	var samples []Sample
	switch mel.Corpus {
	case mode.CorpusSynthetic:
		vocab = DefaultVocabulary()
		samples = SyntheticCorpus(rng, vocab, syntheticSize)
	default:
		v, err := NewVocabulary(m.Pitches())
		if err != nil {
			return nil, fmt.Errorf("lstm: mode %s: %w", m.Name, err)
		}
		vocab = v
		s, err := InstrumentCorpus(rng, vocab, vocab.Pitches(), corpusRepeat)
		if err != nil {
			return nil, err
		}
		samples = s
	}
	if opts.Epochs == 0 {
		opts.Epochs = mel.Epochs
	}
	model := New(rng, vocab, opts)
	if _, err := model.Train(rng, samples); err != nil {
		return nil, fmt.Errorf("lstm: mode %s: %w", m.Name, err)
	}
	return model, nil
}
