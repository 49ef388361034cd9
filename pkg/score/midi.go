package score

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// Resolution is the number of ticks per quarter note.
const Resolution = 480

const drumChannel = 9

func ticks(quarters float64) uint32 {
	return uint32(math.Round(quarters * Resolution))
}

// channel assigns a MIDI channel to a track, skipping the drum channel.
func channel(i int) uint8 {
	ch := i % 15
	if ch >= drumChannel {
		ch++
	}
	return uint8(ch)
}

// Write serializes the score as a format 1 standard MIDI file. The first
// track carries the title and the tempo, every score track follows in order.
func (s *Score) Write(w io.Writer) error {
	f := smf.New()
	f.TimeFormat = smf.MetricTicks(Resolution)

	var meta smf.Track
	meta.Add(0, smf.MetaTrackSequenceName(s.Title))
	meta.Add(0, smf.MetaMeter(4, 4))
	meta.Add(0, smf.MetaTempo(float64(s.Tempo)))
	meta.Close(0)
	if err := f.Add(meta); err != nil {
		return fmt.Errorf("score: couldn't add tempo track: %w", err)
	}

	for i, t := range s.Tracks {
		tr, err := encodeTrack(t, channel(i))
		if err != nil {
			return err
		}
		if err := f.Add(tr); err != nil {
			return fmt.Errorf("score: couldn't add track %s: %w", t.Name, err)
		}
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("score: couldn't write midi: %w", err)
	}
	return nil
}

func encodeTrack(t *Track, ch uint8) (smf.Track, error) {
	var tr smf.Track
	tr.Add(0, smf.MetaTrackSequenceName(t.Name))
	tr.Add(0, midi.ProgramChange(ch, t.Program))
	for _, e := range t.Events {
		keys, err := eventKeys(e)
		if err != nil {
			return nil, fmt.Errorf("score: track %s: %w", t.Name, err)
		}
		vel := e.Velocity
		if vel == 0 {
			// velocity 0 is a note off
			vel = 1
		}
		if vel > 127 {
			vel = 127
		}
		for _, k := range keys {
			tr.Add(0, midi.NoteOn(ch, k, vel))
		}
		for j, k := range keys {
			var delta uint32
			if j == 0 {
				delta = ticks(e.Duration)
			}
			tr.Add(delta, midi.NoteOff(ch, k))
		}
	}
	tr.Close(0)
	return tr, nil
}

func eventKeys(e Event) ([]uint8, error) {
	seen := map[uint8]bool{}
	var keys []uint8
	for _, p := range e.Pitches {
		k, err := ParsePitch(p)
		if err != nil {
			return nil, err
		}
		if seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("score: empty event")
	}
	return keys, nil
}

// Bytes returns the serialized score.
func (s *Score) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := s.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Score) WriteFile(path string) error {
	b, err := s.Bytes()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0644); err != nil {
		return fmt.Errorf("score: couldn't write %s: %w", path, err)
	}
	return nil
}

// Read parses a MIDI file written by Write. Durations are rounded to the
// file resolution.
func Read(r io.Reader) (*Score, error) {
	f, err := smf.ReadFrom(r)
	if err != nil {
		return nil, fmt.Errorf("score: couldn't read midi: %w", err)
	}
	if len(f.Tracks) == 0 {
		return nil, fmt.Errorf("score: midi file has no tracks")
	}
	res := uint32(Resolution)
	if mt, ok := f.TimeFormat.(smf.MetricTicks); ok {
		res = uint32(mt)
	}

	s := &Score{}
	for _, ev := range f.Tracks[0] {
		var bpm float64
		var name string
		switch {
		case ev.Message.GetMetaTempo(&bpm):
			s.Tempo = int(math.Round(bpm))
		case ev.Message.GetMetaTrackName(&name):
			s.Title = name
		}
	}
	for _, tr := range f.Tracks[1:] {
		s.Tracks = append(s.Tracks, decodeTrack(tr, res))
	}
	return s, nil
}

func ReadFile(path string) (*Score, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("score: couldn't open %s: %w", path, err)
	}
	defer f.Close()
	return Read(f)
}

func decodeTrack(tr smf.Track, res uint32) *Track {
	t := &Track{}
	type onset struct {
		tick uint32
		end  uint32
		keys []uint8
		vel  uint8
	}
	var onsets []*onset
	open := map[uint8]*onset{}
	var abs uint32
	for _, ev := range tr {
		abs += ev.Delta
		var name string
		var ch, key, vel, prog uint8
		msg := midi.Message(ev.Message)
		switch {
		case ev.Message.GetMetaTrackName(&name):
			t.Name = name
		case msg.GetProgramChange(&ch, &prog):
			t.Program = prog
		case msg.GetNoteStart(&ch, &key, &vel):
			var o *onset
			if n := len(onsets); n > 0 && onsets[n-1].tick == abs {
				o = onsets[n-1]
			} else {
				o = &onset{tick: abs, vel: vel}
				onsets = append(onsets, o)
			}
			o.keys = append(o.keys, key)
			open[key] = o
		case msg.GetNoteEnd(&ch, &key):
			if o, ok := open[key]; ok {
				if o.end < abs {
					o.end = abs
				}
				delete(open, key)
			}
		}
	}
	for _, o := range onsets {
		var pitches []string
		for _, k := range o.keys {
			pitches = append(pitches, PitchName(k))
		}
		d := float64(o.end-o.tick) / float64(res)
		if o.end < o.tick {
			d = 0
		}
		t.Events = append(t.Events, Event{Pitches: pitches, Duration: d, Velocity: o.vel})
	}
	return t
}
