package playback

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// Loop generates and plays tracks one after another until stopped.
type Loop struct {
	Session *Session
	// Next returns the path of the next audio file to play.
	Next func(ctx context.Context) (string, error)
	// Wait is the pause after a failed iteration.
	Wait time.Duration

	once sync.Once
	done chan struct{}
}

func (l *Loop) init() {
	l.once.Do(func() {
		l.done = make(chan struct{})
	})
}

// Stop asks the loop to finish. The current track is stopped and the loop
// returns before starting a new iteration.
func (l *Loop) Stop() {
	l.init()
	select {
	case <-l.done:
	default:
		close(l.done)
	}
	if l.Session != nil {
		l.Session.Stop()
	}
}

func (l *Loop) stopped() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

// Run plays until the context is done or Stop is called. Failed iterations
// are logged and retried after Wait.
func (l *Loop) Run(ctx context.Context) error {
	l.init()
	wait := l.Wait
	if wait <= 0 {
		wait = 5 * time.Second
	}
	var n int
	for {
		if l.stopped() {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
		path, err := l.Next(ctx)
		if err == nil {
			n++
			log.Printf("playback: playing %s (%d)\n", path, n)
			err = l.Session.Play(ctx, path)
		}
		switch {
		case err == nil:
			continue
		case errors.Is(err, ErrStopped), errors.Is(err, context.Canceled):
			continue
		}
		log.Printf("playback: %v\n", err)
		select {
		case <-ctx.Done():
		case <-l.done:
		case <-time.After(wait):
		}
	}
}
