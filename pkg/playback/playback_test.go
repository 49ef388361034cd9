package playback

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"
)

type fakePlayer struct {
	mu      sync.Mutex
	playing bool
	volume  float64
	closed  bool
	// remaining polls before the track ends
	remaining int
}

func (p *fakePlayer) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = true
}

func (p *fakePlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = false
}

func (p *fakePlayer) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing && p.remaining > 0 {
		p.remaining--
		return true
	}
	if p.remaining == 0 {
		p.playing = false
	}
	return p.playing
}

func (p *fakePlayer) SetVolume(v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = v
}

func (p *fakePlayer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func testSession(remaining int) (*Session, chan *fakePlayer) {
	players := make(chan *fakePlayer, 16)
	s := newSession(DefaultRate, func(r io.Reader) player {
		p := &fakePlayer{remaining: remaining}
		players <- p
		return p
	})
	s.poll = time.Millisecond
	return s, players
}

func TestPlayUntilEnd(t *testing.T) {
	s, players := testSession(3)
	s.SetVolume(0.3)
	if err := s.play(context.Background(), bytes.NewReader(nil)); err != nil {
		t.Fatalf("play() err = %v; want nil", err)
	}
	p := <-players
	if !p.closed {
		t.Fatalf("player not closed")
	}
	if p.volume != 0.3 {
		t.Fatalf("volume = %v; want 0.3", p.volume)
	}
}

func TestStop(t *testing.T) {
	s, players := testSession(1 << 30)
	errC := make(chan error, 1)
	go func() {
		errC <- s.play(context.Background(), bytes.NewReader(nil))
	}()
	<-players
	s.Stop()
	if err := <-errC; !errors.Is(err, ErrStopped) {
		t.Fatalf("play() err = %v; want ErrStopped", err)
	}

	// the session is usable after a stop
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		errC <- s.play(ctx, bytes.NewReader(nil))
	}()
	<-players
	cancel()
	if err := <-errC; !errors.Is(err, context.Canceled) {
		t.Fatalf("play() err = %v; want context.Canceled", err)
	}
}

func TestPauseResume(t *testing.T) {
	s, players := testSession(200)
	errC := make(chan error, 1)
	go func() {
		errC <- s.play(context.Background(), bytes.NewReader(nil))
	}()
	p := <-players
	s.Pause()
	if !s.Paused() {
		t.Fatalf("Paused() = false; want true")
	}
	time.Sleep(20 * time.Millisecond)
	select {
	case err := <-errC:
		t.Fatalf("play() returned while paused: %v", err)
	default:
	}
	s.SetVolume(2)
	if s.Volume() != 1 {
		t.Fatalf("Volume() = %v; want 1", s.Volume())
	}
	s.Resume()
	if err := <-errC; err != nil {
		t.Fatalf("play() err = %v; want nil", err)
	}
	if p.volume != 1 {
		t.Fatalf("player volume = %v; want 1", p.volume)
	}
}

func TestLooper(t *testing.T) {
	l := &looper{d: bytes.NewReader([]byte("abc"))}
	buf := make([]byte, 2)
	var out []byte
	for len(out) < 7 {
		n, err := l.Read(buf)
		if err != nil {
			t.Fatalf("Read() err = %v; want nil", err)
		}
		out = append(out, buf[:n]...)
	}
	if got := string(out[:7]); got != "abcabca" {
		t.Fatalf("Read() = %q; want %q", got, "abcabca")
	}
}

func TestLoop(t *testing.T) {
	s, _ := testSession(0)
	var mu sync.Mutex
	var calls int
	l := &Loop{
		Session: s,
		Wait:    time.Millisecond,
	}
	l.Next = func(ctx context.Context) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 3 {
			l.Stop()
		}
		return "", errors.New("generation failed")
	}
	done := make(chan error, 1)
	go func() {
		done <- l.Run(context.Background())
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() err = %v; want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run() did not stop")
	}
	mu.Lock()
	defer mu.Unlock()
	if calls != 3 {
		t.Fatalf("Next() calls = %d; want 3", calls)
	}
}
