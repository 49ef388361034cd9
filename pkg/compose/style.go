package compose

import (
	"math/rand"

	"github.com/igolaizola/xenotune/pkg/mode"
	"github.com/igolaizola/xenotune/pkg/score"
)

var (
	sustainedTags = []string{"slow", "sustained", "ambient", "harmony"}
	arpeggioTags  = []string{"arp", "arpeggio", "plucked", "fingerpick"}
)

// Emission is the output of a single policy step.
type Emission struct {
	Events []score.Event
	Beats  float64
}

// Policy decides which events an instrument emits next. It returns false
// when the instrument has nothing to play.
type Policy interface {
	Emit(rng *rand.Rand, inst *mode.Instrument, remaining float64) (Emission, bool)
}

// StylePolicy dispatches on the style tags of the instrument. The first
// matching rule wins: sustained chords, arpeggiated runs, plain chords.
type StylePolicy struct {
	SustainedDuration float64
	SustainedVelocity uint8
	ArpeggioDuration  float64
	ArpeggioVelocity  uint8
	DefaultDuration   float64
	DefaultVelocity   uint8
}

func NewStylePolicy() *StylePolicy {
	return &StylePolicy{
		SustainedDuration: 2.0,
		SustainedVelocity: 10,
		ArpeggioDuration:  0.5,
		ArpeggioVelocity:  9,
		DefaultDuration:   1.0,
		DefaultVelocity:   15,
	}
}

// MaxDuration is the longest single event the policy can emit.
func (p *StylePolicy) MaxDuration() float64 {
	max := p.SustainedDuration
	if p.ArpeggioDuration > max {
		max = p.ArpeggioDuration
	}
	if p.DefaultDuration > max {
		max = p.DefaultDuration
	}
	return max
}

func (p *StylePolicy) Emit(rng *rand.Rand, inst *mode.Instrument, remaining float64) (Emission, bool) {
	if len(inst.Notes) == 0 && !hasChord(inst.Chords) {
		return Emission{}, false
	}
	switch {
	case inst.Style.Has(sustainedTags...):
		pitches := chordPitches(rng, inst)
		return Emission{
			Events: []score.Event{score.NewChord(pitches, p.SustainedDuration, p.SustainedVelocity)},
			Beats:  p.SustainedDuration,
		}, true
	case inst.Style.Has(arpeggioTags...):
		pitches := inst.Notes
		if len(pitches) == 0 {
			pitches = chordPitches(rng, inst)
		}
		var em Emission
		for _, n := range pitches {
			em.Events = append(em.Events, score.NewNote(n, p.ArpeggioDuration, p.ArpeggioVelocity))
			em.Beats += p.ArpeggioDuration
			if em.Beats >= remaining {
				break
			}
		}
		return em, true
	default:
		pitches := chordPitches(rng, inst)
		return Emission{
			Events: []score.Event{score.NewChord(pitches, p.DefaultDuration, p.DefaultVelocity)},
			Beats:  p.DefaultDuration,
		}, true
	}
}

// chordPitches picks a random palette chord or falls back to every note of
// the instrument.
func chordPitches(rng *rand.Rand, inst *mode.Instrument) []string {
	var palette []mode.Chord
	for _, c := range inst.Chords {
		if len(c.Pitches) > 0 {
			palette = append(palette, c)
		}
	}
	if len(palette) > 0 {
		return palette[rng.Intn(len(palette))].Pitches
	}
	return inst.Notes
}

func hasChord(chords []mode.Chord) bool {
	for _, c := range chords {
		if len(c.Pitches) > 0 {
			return true
		}
	}
	return false
}
