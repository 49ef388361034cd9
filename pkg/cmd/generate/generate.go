package generate

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/igolaizola/xenotune"
	"github.com/igolaizola/xenotune/pkg/filestore"
	"github.com/igolaizola/xenotune/pkg/sound"
	"github.com/igolaizola/xenotune/pkg/storage"
	"github.com/oklog/ulid/v2"
)

type Config struct {
	Debug       bool
	DBType      string
	DBConn      string
	FSType      string
	FSConn      string
	FSEndpoint  string
	Timeout     time.Duration
	Concurrency int
	WaitMin     time.Duration
	WaitMax     time.Duration
	Limit       int

	// Modes to generate, cycled in order. All configured modes when empty.
	Modes  string
	UserID string

	Generator xenotune.Config
}

// Run launches the soundscape generation process.
func Run(ctx context.Context, cfg *Config) error {
	var iteration int
	log.Println("generate: process started")
	defer func() {
		log.Printf("generate: process ended (%d)\n", iteration)
	}()

	debug := func(format string, args ...interface{}) {
		if !cfg.Debug {
			return
		}
		format += "\n"
		log.Printf(format, args...)
	}

	cfg.Generator.Debug = cfg.Debug
	generator, err := xenotune.New(&cfg.Generator)
	if err != nil {
		return fmt.Errorf("generate: couldn't create generator: %w", err)
	}
	modes := generator.Modes()
	if cfg.Modes != "" {
		modes = strings.Split(cfg.Modes, ",")
	}

	var store *storage.Store
	if cfg.DBType != "" {
		store, err = storage.New(cfg.DBType, cfg.DBConn, cfg.Debug)
		if err != nil {
			return fmt.Errorf("generate: couldn't create orm store: %w", err)
		}
		if err := store.Start(ctx); err != nil {
			return fmt.Errorf("generate: couldn't start orm store: %w", err)
		}
		defer func() { _ = store.Stop() }()
	}

	var fs *filestore.Store
	if cfg.FSType != "" {
		if err := filestore.ValidUser(cfg.UserID); err != nil {
			return fmt.Errorf("generate: %w", err)
		}
		fs, err = filestore.New(cfg.FSType, cfg.FSConn, cfg.FSEndpoint, cfg.Debug)
		if err != nil {
			return fmt.Errorf("generate: couldn't create file storage: %w", err)
		}
	}

	// Print time stats
	start := time.Now()
	defer func() {
		if iteration == 0 {
			return
		}
		total := time.Since(start)
		log.Printf("generate: total time %s, average time %s\n", total, total/time.Duration(iteration))
	}()

	nErr := 0
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 24 * time.Hour
	}
	ticker := time.NewTicker(timeout)
	last := time.Now()
	defer ticker.Stop()

	// Concurrency settings
	concurrency := cfg.Concurrency
	if concurrency == 0 {
		concurrency = 1
	}
	errC := make(chan error, concurrency)
	for i := 0; i < concurrency; i++ {
		errC <- nil
	}
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("generate: %w", ctx.Err())
		case <-ticker.C:
			return nil
		case err := <-errC:
			if err != nil {
				nErr += 1
			} else {
				nErr = 0
			}

			// Check exit conditions
			if nErr > 10 {
				return fmt.Errorf("generate: too many consecutive errors: %w", err)
			}
			if cfg.Limit > 0 && iteration >= cfg.Limit {
				return nil
			}

			name := modes[iteration%len(modes)]
			iteration++
			if time.Since(last) > 60*time.Minute {
				last = time.Now()
				log.Printf("generate: iteration %d\n", iteration)
			}

			// Wait for a random time.
			if iteration > 1 {
				wait := cfg.WaitMin
				if cfg.WaitMax > cfg.WaitMin {
					wait += time.Duration(rand.Int63n(int64(cfg.WaitMax - cfg.WaitMin)))
				}
				select {
				case <-ctx.Done():
					return fmt.Errorf("generate: %w", ctx.Err())
				case <-time.After(wait):
				}
			}

			// Launch generate in a goroutine
			wg.Add(1)
			go func() {
				defer wg.Done()
				debug("generate: start %s", name)
				err := generate(ctx, generator, store, fs, name, cfg.UserID)
				if err != nil {
					log.Println(err)
				}
				debug("generate: end %s", name)
				errC <- err
			}()
		}
	}
}

func generate(ctx context.Context, generator *xenotune.Generator, store *storage.Store, fs *filestore.Store, name, userID string) error {
	r, err := generator.Generate(ctx, name)
	if err != nil {
		return fmt.Errorf("generate: couldn't generate %s: %w", name, err)
	}
	gen := &storage.Generation{
		ID:     ulid.Make().String(),
		UserID: userID,
		Mode:   r.Mode,
		Seed:   r.Seed,
		Tempo:  r.Score.Tempo,
		Title:  r.Score.Title,
		Tracks: len(r.Score.Tracks),
		Midi:   r.MIDI,
		Audio:  r.Audio,
	}

	file := r.MIDI
	if r.Audio != "" {
		file = r.Audio
		a, err := sound.NewAnalyzer(r.Audio)
		if err != nil {
			return fmt.Errorf("generate: couldn't analyze %s: %w", r.Audio, err)
		}
		if a.IsSilent() {
			return fmt.Errorf("generate: %s is silent", r.Audio)
		}
		gen.Duration = float32(a.Duration().Seconds())
	}
	if fs != nil {
		u, err := fs.Upload(ctx, file, userID)
		if err != nil {
			return fmt.Errorf("generate: couldn't upload %s: %w", file, err)
		}
		gen.URL = u
	}
	log.Printf("generate: %s (seed %d, %d bpm) -> %s\n", r.Score.Title, r.Seed, r.Score.Tempo, file)

	if store == nil {
		return nil
	}
	if err := store.SetGeneration(ctx, gen); err != nil {
		return fmt.Errorf("generate: couldn't save generation to database: %w", err)
	}
	return nil
}
