package score

import (
	"fmt"
	"time"
)

// Event is a note or a chord. Position in a track is implied by the
// cumulative duration of the previous events.
type Event struct {
	Pitches []string
	// Duration in quarter notes.
	Duration float64
	Velocity uint8
}

func NewNote(pitch string, duration float64, velocity uint8) Event {
	return Event{Pitches: []string{pitch}, Duration: duration, Velocity: velocity}
}

func NewChord(pitches []string, duration float64, velocity uint8) Event {
	ps := make([]string, len(pitches))
	copy(ps, pitches)
	return Event{Pitches: ps, Duration: duration, Velocity: velocity}
}

func (e Event) IsChord() bool {
	return len(e.Pitches) > 1
}

func (e Event) String() string {
	if e.IsChord() {
		return fmt.Sprintf("chord%v/%v", e.Pitches, e.Duration)
	}
	return fmt.Sprintf("note%v/%v", e.Pitches, e.Duration)
}

// Track is a flat ordered sequence of events for one instrument.
type Track struct {
	Name    string
	Program uint8
	Events  []Event
}

func (t *Track) Append(e Event) {
	t.Events = append(t.Events, e)
}

// Beats returns the total duration of the track in quarter notes.
func (t *Track) Beats() float64 {
	var total float64
	for _, e := range t.Events {
		total += e.Duration
	}
	return total
}

// Score is a multi-track composition ready to be serialized.
type Score struct {
	Tempo  int
	Title  string
	Tracks []*Track
}

// FileName returns the MIDI file name of a generation.
func FileName(mode string, t time.Time) string {
	return fmt.Sprintf("%s_%s.mid", mode, t.Format("20060102150405"))
}
