package xenotune

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/igolaizola/xenotune/pkg/mode"
	"github.com/igolaizola/xenotune/pkg/render"
	"github.com/igolaizola/xenotune/pkg/score"
)

const modes = `{
    "focus": {
        "tempo": 90,
        "instruments": [
            {"name": "Electric Piano", "style": "ambient", "notes": ["C4", "E4", "G4", "B4", "D5"]},
            {"name": "Harp", "style": "arp", "notes": ["A3", "C4", "E4"]}
        ],
        "structure": ["intro", "loop", "outro"]
    },
    "sleep": {
        "tempo": 50,
        "instruments": [
            {"name": "Felt Piano", "style": "slow", "chords": [["C3", "G3", "C4"], ["A2", "E3", "A3"]]}
        ],
        "structure": ["intro", "soothing_loop"],
        "melody": {"strategy": "learned", "corpus": "synthetic", "epochs": 1}
    }
}`

func newGenerator(t *testing.T) *Generator {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(modes), 0644); err != nil {
		t.Fatal(err)
	}
	g, err := New(&Config{
		Modes:     path,
		Output:    filepath.Join(dir, "output"),
		Seed:      1,
		MIDIOnly:  true,
		Embedding: 4,
		Hidden:    8,
	})
	if err != nil {
		t.Fatalf("New() err = %v; want nil", err)
	}
	return g
}

func TestGenerate(t *testing.T) {
	ctx := context.Background()
	g := newGenerator(t)
	if got := strings.Join(g.Modes(), ","); got != "focus,sleep" {
		t.Fatalf("Modes() = %s; want focus,sleep", got)
	}
	for _, name := range []string{"focus", "Sleep"} {
		t.Run(name, func(t *testing.T) {
			r, err := g.Generate(ctx, name)
			if err != nil {
				t.Fatalf("Generate() err = %v; want nil", err)
			}
			if r.Audio != "" {
				t.Fatalf("Audio = %q; want empty", r.Audio)
			}
			if !strings.HasPrefix(filepath.Base(r.MIDI), strings.ToLower(name)+"_") {
				t.Fatalf("MIDI = %q; want mode prefix", r.MIDI)
			}
			s, err := score.ReadFile(r.MIDI)
			if err != nil {
				t.Fatalf("ReadFile() err = %v; want nil", err)
			}
			if len(s.Tracks) != len(r.Score.Tracks) || s.Title != r.Score.Title {
				t.Fatalf("ReadFile() = %d tracks %q; want %d %q", len(s.Tracks), s.Title, len(r.Score.Tracks), r.Score.Title)
			}
		})
	}
}

func TestGenerateSeed(t *testing.T) {
	ctx := context.Background()
	g := newGenerator(t)
	a, err := g.GenerateSeed(ctx, "focus", 42)
	if err != nil {
		t.Fatal(err)
	}
	b, err := g.GenerateSeed(ctx, "focus", 42)
	if err != nil {
		t.Fatal(err)
	}
	if a.MIDI == b.MIDI {
		t.Fatalf("both generations wrote %s", a.MIDI)
	}
	ba, _ := os.ReadFile(a.MIDI)
	bb, _ := os.ReadFile(b.MIDI)
	if !bytes.Equal(ba, bb) {
		t.Fatalf("GenerateSeed() with the same seed produced different files")
	}
}

func TestGenerateUnknownMode(t *testing.T) {
	g := newGenerator(t)
	if _, err := g.Generate(context.Background(), "party"); !errors.Is(err, mode.ErrInvalid) {
		t.Fatalf("Generate() err = %v; want ErrInvalid", err)
	}
}

func TestNewWithoutSoundfont(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(modes), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := New(&Config{Modes: path, Output: dir})
	if !errors.Is(err, render.ErrPipeline) {
		t.Fatalf("New() err = %v; want ErrPipeline", err)
	}
}

func TestMIDI(t *testing.T) {
	g := newGenerator(t)
	g.midiOnly = false
	r, err := g.MIDI(context.Background(), "focus")
	if err != nil {
		t.Fatalf("MIDI() err = %v; want nil", err)
	}
	if r.Audio != "" {
		t.Fatalf("Audio = %q; want empty", r.Audio)
	}
}
