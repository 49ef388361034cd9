package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	mp3 "github.com/hajimehoshi/go-mp3"
)

// DefaultRate matches the sample rate of rendered soundscapes.
const DefaultRate = 44100

// ErrStopped is returned by Play when the session is stopped.
var ErrStopped = errors.New("playback stopped")

type player interface {
	Play()
	Pause()
	IsPlaying() bool
	SetVolume(volume float64)
	Close() error
}

// Session owns the audio device together with the volume, pause and stop
// state of the music and background channels. Control methods are safe to
// call from any goroutine.
type Session struct {
	rate      int
	newPlayer func(r io.Reader) player
	poll      time.Duration

	mu         sync.Mutex
	volume     float64
	bgVolume   float64
	paused     bool
	music      player
	background player
	bgFile     *os.File
	stop       chan struct{}
}

// NewSession opens the audio device. Only one session can exist per process.
func NewSession(rate int) (*Session, error) {
	if rate <= 0 {
		rate = DefaultRate
	}
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   rate,
		ChannelCount: 2,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, fmt.Errorf("playback: couldn't open audio device: %w", err)
	}
	<-ready
	return newSession(rate, func(r io.Reader) player {
		return ctx.NewPlayer(r)
	}), nil
}

func newSession(rate int, newPlayer func(r io.Reader) player) *Session {
	return &Session{
		rate:      rate,
		newPlayer: newPlayer,
		poll:      100 * time.Millisecond,
		volume:    1,
		bgVolume:  0.5,
		stop:      make(chan struct{}),
	}
}

func (s *Session) decode(path string) (*mp3.Decoder, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("playback: couldn't open %s: %w", path, err)
	}
	d, err := mp3.NewDecoder(f)
	if err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("playback: couldn't decode %s: %w", path, err)
	}
	if d.SampleRate() != s.rate {
		_ = f.Close()
		return nil, nil, fmt.Errorf("playback: %s sample rate %d, device %d", path, d.SampleRate(), s.rate)
	}
	return d, f, nil
}

// Play plays an mp3 file and blocks until it ends, the context is done or
// the session is stopped.
func (s *Session) Play(ctx context.Context, path string) error {
	d, f, err := s.decode(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return s.play(ctx, d)
}

func (s *Session) play(ctx context.Context, r io.Reader) error {
	p := s.newPlayer(r)
	s.mu.Lock()
	stop := s.stop
	s.music = p
	p.SetVolume(s.volume)
	if !s.paused {
		p.Play()
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.music == p {
			s.music = nil
		}
		s.mu.Unlock()
		_ = p.Close()
	}()

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return ErrStopped
		case <-ticker.C:
		}
		s.mu.Lock()
		done := !s.paused && !p.IsPlaying()
		s.mu.Unlock()
		if done {
			return nil
		}
	}
}

// Background loops an mp3 file under the music until the session is stopped.
func (s *Session) Background(path string, volume float64) error {
	d, f, err := s.decode(path)
	if err != nil {
		return err
	}
	p := s.newPlayer(&looper{d: d})
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeBackground()
	s.background = p
	s.bgFile = f
	if volume > 0 {
		s.bgVolume = volume
	}
	p.SetVolume(s.bgVolume)
	if !s.paused {
		p.Play()
	}
	return nil
}

func (s *Session) closeBackground() {
	if s.background != nil {
		_ = s.background.Close()
		s.background = nil
	}
	if s.bgFile != nil {
		_ = s.bgFile.Close()
		s.bgFile = nil
	}
}

// looper rewinds the decoder at the end of the stream.
type looper struct {
	d io.ReadSeeker
}

func (l *looper) Read(b []byte) (int, error) {
	n, err := l.d.Read(b)
	if err == io.EOF {
		if _, err := l.d.Seek(0, io.SeekStart); err != nil {
			return n, err
		}
		if n == 0 {
			return l.d.Read(b)
		}
		return n, nil
	}
	return n, err
}

// SetVolume sets the music volume in the range [0, 1].
func (s *Session) SetVolume(volume float64) {
	if volume < 0 {
		volume = 0
	}
	if volume > 1 {
		volume = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = volume
	if s.music != nil {
		s.music.SetVolume(volume)
	}
}

func (s *Session) Volume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

func (s *Session) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
	for _, p := range []player{s.music, s.background} {
		if p != nil {
			p.Pause()
		}
	}
}

func (s *Session) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
	for _, p := range []player{s.music, s.background} {
		if p != nil {
			p.Play()
		}
	}
}

func (s *Session) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Stop ends the current track and the background. The session can be
// used again afterwards.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	close(s.stop)
	s.stop = make(chan struct{})
	s.closeBackground()
}
