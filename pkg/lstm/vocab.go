package lstm

import (
	"errors"
	"fmt"

	"github.com/igolaizola/xenotune/pkg/score"
)

// ErrVocabularyTooSmall is returned when there are not enough unique
// pitches to train a model.
var ErrVocabularyTooSmall = errors.New("vocabulary too small")

// MinVocabulary is the minimum number of unique pitches to train.
const MinVocabulary = 5

// Vocabulary is a sorted set of pitches with a stable integer encoding.
type Vocabulary struct {
	pitches []string
	index   map[string]int
}

var defaultPitches = []string{
	"C2", "D2", "E2", "F2", "G2", "A2", "B2",
	"C3", "D3", "E3", "F#3", "G3", "A3", "B3",
	"C4", "D4", "E4", "F#4", "G4", "A4",
	"C5", "D5", "E5", "F#5", "G5", "A5", "B5",
}

// DefaultVocabulary returns the fixed vocabulary used for synthetic corpora.
func DefaultVocabulary() *Vocabulary {
	v, err := NewVocabulary(defaultPitches)
	if err != nil {
		panic(err)
	}
	return v
}

// NewVocabulary deduplicates the pitches by key and sorts them. Enharmonic
// spellings share one entry named with sharps.
func NewVocabulary(pitches []string) (*Vocabulary, error) {
	seen := map[uint8]bool{}
	var unique []string
	for _, p := range pitches {
		key, err := score.ParsePitch(p)
		if err != nil {
			return nil, fmt.Errorf("lstm: %w", err)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, score.PitchName(key))
	}
	if len(unique) < MinVocabulary {
		return nil, fmt.Errorf("lstm: %w: %d unique pitches, need %d", ErrVocabularyTooSmall, len(unique), MinVocabulary)
	}
	score.SortPitches(unique)
	index := make(map[string]int, len(unique))
	for i, p := range unique {
		index[p] = i
	}
	return &Vocabulary{pitches: unique, index: index}, nil
}

// Size returns the number of pitches.
func (v *Vocabulary) Size() int {
	return len(v.pitches)
}

// Encode returns the token of a pitch in any spelling of its key.
func (v *Vocabulary) Encode(p string) (int, bool) {
	key, err := score.ParsePitch(p)
	if err != nil {
		return 0, false
	}
	i, ok := v.index[score.PitchName(key)]
	return i, ok
}

// Decode returns the pitch name of a token.
func (v *Vocabulary) Decode(i int) string {
	return v.pitches[i]
}

func (v *Vocabulary) Pitches() []string {
	ps := make([]string, len(v.pitches))
	copy(ps, v.pitches)
	return ps
}
