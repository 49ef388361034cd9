package notegen

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/igolaizola/xenotune/pkg/lstm"
	"github.com/igolaizola/xenotune/pkg/mode"
)

type Config struct {
	Debug  bool
	Input  string
	Output string
	Length int
	Epochs int
	Seed   int64
}

// Run trains a model on the default vocabulary and rewrites the notes and
// chords of every instrument of the configuration.
func Run(ctx context.Context, cfg *Config) error {
	if cfg.Input == "" {
		return fmt.Errorf("notegen: input is required")
	}
	modes, err := mode.Load(cfg.Input)
	if err != nil {
		return fmt.Errorf("notegen: %w", err)
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	length := cfg.Length
	if length <= 0 {
		length = 8
	}
	vocab := lstm.DefaultVocabulary()
	model := lstm.New(rng, vocab, lstm.Options{Epochs: cfg.Epochs})
	start := time.Now()
	loss, err := model.Train(rng, lstm.SyntheticCorpus(rng, vocab, 0))
	if err != nil {
		return fmt.Errorf("notegen: couldn't train model: %w", err)
	}
	if cfg.Debug {
		log.Printf("notegen: trained in %s with loss %.3f\n", time.Since(start), loss)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("notegen: %w", err)
	}

	if err := lstm.Rewrite(rng, model, modes, length); err != nil {
		return fmt.Errorf("notegen: %w", err)
	}
	output := cfg.Output
	if output == "" {
		output = cfg.Input
	}
	if err := mode.Save(output, modes); err != nil {
		return fmt.Errorf("notegen: %w", err)
	}
	log.Printf("notegen: updated %d modes in %s\n", len(modes), output)
	return nil
}
