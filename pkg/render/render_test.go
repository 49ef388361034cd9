package render

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/igolaizola/xenotune/pkg/compose"
	"github.com/igolaizola/xenotune/pkg/mode"
	"github.com/igolaizola/xenotune/pkg/sound"
	"github.com/igolaizola/xenotune/pkg/sound/fluidsynth"
)

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	sf := filepath.Join(dir, "font.sf2")
	if err := os.WriteFile(sf, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		p    Pipeline
	}{
		{"no soundfont", Pipeline{}},
		{"missing soundfont", Pipeline{Soundfont: filepath.Join(dir, "missing.sf2")}},
		{"missing background", Pipeline{Soundfont: sf, Background: filepath.Join(dir, "rain.mp3")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.p.Check(); !errors.Is(err, ErrPipeline) {
				t.Fatalf("Check() err = %v; want ErrPipeline", err)
			}
		})
	}
}

func TestMissingBinary(t *testing.T) {
	dir := t.TempDir()
	sf := filepath.Join(dir, "font.sf2")
	if err := os.WriteFile(sf, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	bin := fluidsynth.BinPath
	fluidsynth.BinPath = filepath.Join(dir, "no-fluidsynth")
	defer func() { fluidsynth.BinPath = bin }()

	p := &Pipeline{Soundfont: sf}
	if _, err := p.Render(context.Background(), filepath.Join(dir, "a.mid")); !errors.Is(err, ErrPipeline) {
		t.Fatalf("Render() err = %v; want ErrPipeline", err)
	}
}

func TestRender(t *testing.T) {
	sf := os.Getenv("XENOTUNE_SOUNDFONT")
	if sf == "" {
		t.Skip("XENOTUNE_SOUNDFONT not set")
	}
	for _, bin := range []string{"fluidsynth", "ffmpeg"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not installed", bin)
		}
	}
	m := &mode.Mode{
		Name:        "relax",
		Tempo:       120,
		Instruments: []*mode.Instrument{{Name: "Piano", Style: mode.Tags{"slow"}, Notes: []string{"C4", "E4", "G4"}}},
		Structure:   []string{"intro"},
	}
	s, err := compose.New().Compose(m, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	midi := filepath.Join(dir, "relax.mid")
	if err := s.WriteFile(midi); err != nil {
		t.Fatal(err)
	}
	p := &Pipeline{Soundfont: sf}
	out, err := p.Render(context.Background(), midi)
	if err != nil {
		t.Fatalf("Render() err = %v; want nil", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "relax.wav")); !os.IsNotExist(err) {
		t.Fatalf("wav file was not removed")
	}
	a, err := sound.NewAnalyzer(out)
	if err != nil {
		t.Fatalf("NewAnalyzer() err = %v; want nil", err)
	}
	// 4 bars of 4 beats at 120 bpm
	if a.Duration().Seconds() < 7 {
		t.Fatalf("Duration() = %s; want at least 7s", a.Duration())
	}
}
