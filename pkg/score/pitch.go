package score

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

var semitones = map[byte]int{
	'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11,
}

var names = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// ParsePitch converts a scientific pitch name (C4, F#3, Bb2) to a MIDI key.
func ParsePitch(p string) (uint8, error) {
	p = strings.TrimSpace(p)
	if len(p) < 2 {
		return 0, fmt.Errorf("score: invalid pitch %q", p)
	}
	semi, ok := semitones[strings.ToUpper(p[:1])[0]]
	if !ok {
		return 0, fmt.Errorf("score: invalid pitch letter %q", p)
	}
	rest := p[1:]
	switch rest[0] {
	case '#':
		semi++
		rest = rest[1:]
	case 'b', '-':
		// '-' is the music21 flat sign
		semi--
		rest = rest[1:]
	}
	octave, err := strconv.Atoi(rest)
	if err != nil {
		return 0, fmt.Errorf("score: invalid pitch octave %q", p)
	}
	key := (octave+1)*12 + semi
	if key < 0 || key > 127 {
		return 0, fmt.Errorf("score: pitch %q out of range", p)
	}
	return uint8(key), nil
}

// PitchName returns the scientific pitch name of a MIDI key using sharps.
func PitchName(key uint8) string {
	return fmt.Sprintf("%s%d", names[int(key)%12], int(key)/12-1)
}

// SortPitches sorts pitch names by key. Invalid names go last.
func SortPitches(pitches []string) {
	sort.SliceStable(pitches, func(i, j int) bool {
		a, errA := ParsePitch(pitches[i])
		b, errB := ParsePitch(pitches[j])
		switch {
		case errA != nil && errB != nil:
			return pitches[i] < pitches[j]
		case errA != nil:
			return false
		case errB != nil:
			return true
		}
		return a < b
	})
}
