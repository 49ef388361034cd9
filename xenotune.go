package xenotune

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/igolaizola/xenotune/pkg/compose"
	"github.com/igolaizola/xenotune/pkg/lstm"
	"github.com/igolaizola/xenotune/pkg/mode"
	"github.com/igolaizola/xenotune/pkg/render"
	"github.com/igolaizola/xenotune/pkg/score"
)

type Config struct {
	Debug bool

	// Modes is the json or yaml mode configuration file.
	Modes string
	// Sections is an optional csv or json table of section lengths.
	Sections    string
	BeatsPerBar int
	Jitter      int
	Output      string
	// Seed of the generator, zero for a time based seed.
	Seed int64

	// MIDIOnly skips audio rendering.
	MIDIOnly         bool
	Soundfont        string
	SampleRate       int
	Background       string
	MusicVolume      float64
	BackgroundVolume float64
	FadeOut          time.Duration
	KeepWav          bool

	// Model options of the learned melody strategy.
	Embedding int
	Hidden    int
}

// Result is the output of a generation call.
type Result struct {
	Mode  string
	Seed  int64
	Score *score.Score
	MIDI  string
	// Audio is empty when rendering is disabled.
	Audio string
}

// Generator composes, serializes and renders soundscapes. It is safe for
// concurrent use.
type Generator struct {
	modes    mode.Config
	composer *compose.Composer
	pipeline *render.Pipeline
	output   string
	midiOnly bool
	debug    bool

	mu   sync.Mutex
	seed *rand.Rand
}

func New(cfg *Config) (*Generator, error) {
	modes, err := mode.Load(cfg.Modes)
	if err != nil {
		return nil, fmt.Errorf("xenotune: couldn't load modes: %w", err)
	}
	for _, name := range modes.Names() {
		if err := modes[name].Validate(); err != nil {
			return nil, fmt.Errorf("xenotune: %w", err)
		}
	}
	sections, err := mode.LoadSections(cfg.Sections)
	if err != nil {
		return nil, fmt.Errorf("xenotune: couldn't load sections: %w", err)
	}
	output := cfg.Output
	if output == "" {
		output = "output"
	}
	if err := os.MkdirAll(output, 0755); err != nil {
		return nil, fmt.Errorf("xenotune: couldn't create output folder: %w", err)
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	jitter := cfg.Jitter
	if jitter < 0 {
		jitter = 0
	} else if jitter == 0 {
		jitter = compose.DefaultJitter
	}

	pipeline := &render.Pipeline{
		Soundfont:        cfg.Soundfont,
		SampleRate:       cfg.SampleRate,
		Background:       cfg.Background,
		MusicVolume:      cfg.MusicVolume,
		BackgroundVolume: cfg.BackgroundVolume,
		FadeOut:          cfg.FadeOut,
		KeepWav:          cfg.KeepWav,
	}
	if !cfg.MIDIOnly {
		if err := pipeline.Check(); err != nil {
			return nil, fmt.Errorf("xenotune: %w", err)
		}
	}

	return &Generator{
		modes: modes,
		composer: &compose.Composer{
			Policy:      compose.NewStylePolicy(),
			Sections:    sections,
			BeatsPerBar: cfg.BeatsPerBar,
			Models: lstm.NewCache(seed, lstm.Options{
				Embedding: cfg.Embedding,
				Hidden:    cfg.Hidden,
			}),
			Jitter: jitter,
		},
		pipeline: pipeline,
		output:   output,
		midiOnly: cfg.MIDIOnly,
		debug:    cfg.Debug,
		seed:     rand.New(rand.NewSource(seed)),
	}, nil
}

// Modes returns the names of the configured modes.
func (g *Generator) Modes() []string {
	return g.modes.Names()
}

func (g *Generator) nextSeed() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seed.Int63()
}

// Generate produces a new soundscape of the given mode.
func (g *Generator) Generate(ctx context.Context, name string) (*Result, error) {
	return g.GenerateSeed(ctx, name, g.nextSeed())
}

// GenerateSeed produces the soundscape of the given mode and seed. The same
// mode and seed always produce the same MIDI file.
func (g *Generator) GenerateSeed(ctx context.Context, name string, seed int64) (*Result, error) {
	return g.generate(ctx, name, seed, !g.midiOnly)
}

// MIDI composes a soundscape of the given mode without rendering it.
func (g *Generator) MIDI(ctx context.Context, name string) (*Result, error) {
	return g.generate(ctx, name, g.nextSeed(), false)
}

func (g *Generator) generate(ctx context.Context, name string, seed int64, render bool) (*Result, error) {
	m, err := g.modes.Get(name)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	s, err := g.composer.Compose(m, rand.New(rand.NewSource(seed)))
	if err != nil {
		return nil, fmt.Errorf("xenotune: couldn't compose %s: %w", m.Name, err)
	}
	if g.debug {
		log.Printf("xenotune: composed %s with %d tracks at %d bpm in %s\n", m.Name, len(s.Tracks), s.Tempo, time.Since(start))
	}

	midi, err := g.writeMIDI(s, m.Name, start)
	if err != nil {
		return nil, err
	}
	r := &Result{
		Mode:  m.Name,
		Seed:  seed,
		Score: s,
		MIDI:  midi,
	}
	if !render {
		return r, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("xenotune: %w", err)
	}
	audio, err := g.pipeline.Render(ctx, midi)
	if err != nil {
		return nil, fmt.Errorf("xenotune: couldn't render %s: %w", midi, err)
	}
	r.Audio = audio
	if g.debug {
		log.Printf("xenotune: rendered %s in %s\n", audio, time.Since(start))
	}
	return r, nil
}

// writeMIDI claims a file name derived from the mode and the time, adding a
// counter when another generation already took it.
func (g *Generator) writeMIDI(s *score.Score, name string, t time.Time) (string, error) {
	b, err := s.Bytes()
	if err != nil {
		return "", fmt.Errorf("xenotune: couldn't serialize score: %w", err)
	}
	base := score.FileName(name, t)
	for i := 1; ; i++ {
		file := base
		if i > 1 {
			file = fmt.Sprintf("%s_%d.mid", strings.TrimSuffix(base, ".mid"), i)
		}
		path := filepath.Join(g.output, file)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("xenotune: couldn't create %s: %w", path, err)
		}
		if _, err := f.Write(b); err != nil {
			_ = f.Close()
			return "", fmt.Errorf("xenotune: couldn't write %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("xenotune: couldn't close %s: %w", path, err)
		}
		return path, nil
	}
}
