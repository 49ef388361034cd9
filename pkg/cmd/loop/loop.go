package loop

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/igolaizola/xenotune"
	"github.com/igolaizola/xenotune/pkg/playback"
)

type Config struct {
	Debug bool
	Mode  string
	// Wait is the pause after a failed generation.
	Wait time.Duration
	// Volume of the music, from 0 to 1.
	Volume float64
	// Ambience is an optional audio file looped while playing.
	Ambience       string
	AmbienceVolume float64

	Generator xenotune.Config
}

// Run generates and plays soundscapes of a mode until the context is done.
func Run(ctx context.Context, cfg *Config) error {
	log.Println("loop: process started")
	defer log.Println("loop: process ended")

	if cfg.Mode == "" {
		return fmt.Errorf("loop: mode is required")
	}
	cfg.Generator.Debug = cfg.Debug
	cfg.Generator.MIDIOnly = false
	generator, err := xenotune.New(&cfg.Generator)
	if err != nil {
		return fmt.Errorf("loop: couldn't create generator: %w", err)
	}

	rate := cfg.Generator.SampleRate
	if rate == 0 {
		rate = playback.DefaultRate
	}
	session, err := playback.NewSession(rate)
	if err != nil {
		return fmt.Errorf("loop: %w", err)
	}
	defer session.Stop()
	if cfg.Volume > 0 {
		session.SetVolume(cfg.Volume)
	}
	if cfg.Ambience != "" {
		vol := cfg.AmbienceVolume
		if vol <= 0 {
			vol = 0.3
		}
		if err := session.Background(cfg.Ambience, vol); err != nil {
			return fmt.Errorf("loop: %w", err)
		}
	}

	l := &playback.Loop{
		Session: session,
		Wait:    cfg.Wait,
		Next: func(ctx context.Context) (string, error) {
			r, err := generator.Generate(ctx, cfg.Mode)
			if err != nil {
				return "", err
			}
			return r.Audio, nil
		},
	}
	go func() {
		<-ctx.Done()
		l.Stop()
	}()
	return l.Run(ctx)
}
