package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/igolaizola/xenotune/pkg/sound"
	"github.com/igolaizola/xenotune/pkg/sound/ffmpeg"
	"github.com/igolaizola/xenotune/pkg/sound/fluidsynth"
)

// ErrPipeline is returned when an external tool is missing or fails.
var ErrPipeline = errors.New("render pipeline failed")

// Pipeline turns a MIDI file into an mp3 file: synthesis with fluidsynth,
// encoding or mixing with ffmpeg and an optional fade out.
type Pipeline struct {
	Soundfont  string
	SampleRate int
	// Background is an optional audio file looped under the music.
	Background       string
	MusicVolume      float64
	BackgroundVolume float64
	FadeOut          time.Duration
	// KeepWav keeps the intermediate waveform next to the mp3.
	KeepWav bool
}

func pipelineError(err error) error {
	return fmt.Errorf("render: %w: %w", ErrPipeline, err)
}

// Check validates the soundfont, the background and the binaries.
func (p *Pipeline) Check() error {
	if p.Soundfont == "" {
		return pipelineError(errors.New("soundfont not set"))
	}
	if _, err := os.Stat(p.Soundfont); err != nil {
		return pipelineError(err)
	}
	if p.Background != "" {
		if _, err := os.Stat(p.Background); err != nil {
			return pipelineError(err)
		}
	}
	for _, bin := range []string{fluidsynth.BinPath, ffmpeg.BinPath} {
		if _, err := exec.LookPath(bin); err != nil {
			return pipelineError(err)
		}
	}
	return nil
}

// Render returns the path of the mp3 file rendered from the MIDI file.
func (p *Pipeline) Render(ctx context.Context, midi string) (string, error) {
	if err := p.Check(); err != nil {
		return "", err
	}
	base := strings.TrimSuffix(midi, filepath.Ext(midi))
	wav := base + ".wav"
	mp3 := base + ".mp3"

	if err := fluidsynth.Render(ctx, p.Soundfont, midi, wav, p.SampleRate); err != nil {
		return "", pipelineError(err)
	}
	if !p.KeepWav {
		defer func() { _ = os.Remove(wav) }()
	}

	if p.Background != "" {
		music, bg := p.MusicVolume, p.BackgroundVolume
		if music <= 0 {
			music = 1
		}
		if bg <= 0 {
			bg = 0.5
		}
		if err := ffmpeg.Mix(ctx, wav, music, p.Background, bg, mp3); err != nil {
			return "", pipelineError(err)
		}
	} else {
		if err := ffmpeg.Convert(ctx, wav, mp3); err != nil {
			return "", pipelineError(err)
		}
	}

	if p.FadeOut > 0 {
		a, err := sound.NewAnalyzer(mp3)
		if err != nil {
			return "", pipelineError(err)
		}
		if err := ffmpeg.FadeOut(ctx, mp3, mp3, a.Duration(), p.FadeOut); err != nil {
			return "", pipelineError(err)
		}
	}
	return mp3, nil
}
