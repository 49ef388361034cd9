package analyze

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/igolaizola/xenotune/pkg/filestore"
	"github.com/igolaizola/xenotune/pkg/sound"
	"github.com/igolaizola/xenotune/pkg/sound/aubio"
)

type Config struct {
	Debug  bool
	Input  string
	Output string
	// Tempo estimates the tempo with aubio.
	Tempo bool

	// When a file storage is set the input is the name of an uploaded
	// object, for example users/<id>/<file>.
	FSType     string
	FSConn     string
	FSEndpoint string
}

func Run(ctx context.Context, cfg *Config) error {
	if cfg.Input == "" {
		return fmt.Errorf("analyze: input is required")
	}
	input := cfg.Input
	if cfg.FSType != "" {
		tmp, err := os.MkdirTemp("", "xenotune-analyze")
		if err != nil {
			return fmt.Errorf("analyze: couldn't create temp folder: %w", err)
		}
		defer func() { _ = os.RemoveAll(tmp) }()
		input, err = fetch(ctx, cfg, tmp)
		if err != nil {
			return err
		}
	}

	a, err := sound.NewAnalyzer(input)
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}
	report(os.Stdout, a)

	if cfg.Tempo {
		bpm, err := aubio.Tempo(ctx, input)
		if err != nil {
			return fmt.Errorf("analyze: %w", err)
		}
		fmt.Printf("Tempo: %.1f bpm\n", bpm)
	}

	if cfg.Output == "" {
		return nil
	}
	if err := os.MkdirAll(cfg.Output, 0755); err != nil {
		return fmt.Errorf("analyze: couldn't create output folder: %w", err)
	}
	name := filepath.Base(cfg.Input)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	out := filepath.Join(cfg.Output, name)

	rms, err := a.PlotRMS()
	if err != nil {
		return fmt.Errorf("analyze: couldn't plot rms: %w", err)
	}
	if err := os.WriteFile(out+"-rms.png", rms, 0644); err != nil {
		return fmt.Errorf("analyze: couldn't write rms plot: %w", err)
	}
	wave, err := a.PlotWave(name)
	if err != nil {
		return fmt.Errorf("analyze: couldn't plot wave: %w", err)
	}
	if err := os.WriteFile(out+"-wave.png", wave, 0644); err != nil {
		return fmt.Errorf("analyze: couldn't write wave plot: %w", err)
	}
	return nil
}

// fetch downloads the uploaded object into dir and returns the local path.
func fetch(ctx context.Context, cfg *Config, dir string) (string, error) {
	fs, err := filestore.New(cfg.FSType, cfg.FSConn, cfg.FSEndpoint, cfg.Debug)
	if err != nil {
		return "", fmt.Errorf("analyze: couldn't create file storage: %w", err)
	}
	dst := filepath.Join(dir, filepath.Base(cfg.Input))
	if err := fs.Download(ctx, dst, cfg.Input); err != nil {
		return "", fmt.Errorf("analyze: couldn't download %s: %w", cfg.Input, err)
	}
	if cfg.Debug {
		log.Printf("analyze: downloaded %s to %s\n", cfg.Input, dst)
	}
	return dst, nil
}

func report(w io.Writer, a *sound.Analyzer) {
	if src := a.Source(); src != "" {
		fmt.Fprintf(w, "Source: %s\n", src)
	}
	fmt.Fprintf(w, "Sample rate: %d Hz\n", a.Rate())
	fmt.Fprintf(w, "Duration: %s\n", a.Duration())
	fmt.Fprintf(w, "Peak: %.3f\n", a.Peak())
	fmt.Fprintf(w, "Silent: %v\n", a.IsSilent())
	fmt.Fprintf(w, "Fade out: %v\n", a.HasFadeOut())
}
