package sound

import (
	"bytes"
	"fmt"
	"image/color"
	"io"
	"math"
	"net/http"
	"os"
	"strings"
	"time"

	mp3 "github.com/hajimehoshi/go-mp3"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// SilenceThreshold is the RMS level below which a window is silent.
const SilenceThreshold = 0.001

// Analyzer holds the decoded mono samples of a rendered track.
type Analyzer struct {
	mono     []float64
	rate     int
	duration time.Duration
	source   string
}

// NewAnalyzer decodes a local mp3 file or an http(s) URL.
func NewAnalyzer(u string) (*Analyzer, error) {
	b, err := load(u)
	if err != nil {
		return nil, err
	}
	decoder, err := mp3.NewDecoder(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("sound: couldn't decode mp3: %w", err)
	}
	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return nil, fmt.Errorf("sound: couldn't read samples: %w", err)
	}
	a := NewSamples(Mono(pcm), decoder.SampleRate())
	a.source = u
	return a, nil
}

// NewSamples returns an analyzer over already decoded mono samples.
func NewSamples(mono []float64, rate int) *Analyzer {
	var d time.Duration
	if rate > 0 {
		d = time.Duration(float64(len(mono)) / float64(rate) * float64(time.Second))
	}
	return &Analyzer{mono: mono, rate: rate, duration: d}
}

// Mono converts interleaved 16-bit little endian stereo pcm to mono samples
// in the range [-1, 1].
func Mono(pcm []byte) []float64 {
	mono := make([]float64, 0, len(pcm)/4)
	for i := 0; i+3 < len(pcm); i += 4 {
		left := float64(int16(pcm[i])|int16(pcm[i+1])<<8) / 32768.0
		right := float64(int16(pcm[i+2])|int16(pcm[i+3])<<8) / 32768.0
		mono = append(mono, (left+right)/2.0)
	}
	return mono
}

func load(u string) ([]byte, error) {
	if strings.HasPrefix(u, "http") {
		client := &http.Client{
			Timeout: 2 * time.Minute,
		}
		resp, err := client.Get(u)
		if err != nil {
			return nil, fmt.Errorf("sound: couldn't download audio: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("sound: couldn't download audio: status %d", resp.StatusCode)
		}
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("sound: couldn't read audio: %w", err)
		}
		return b, nil
	}
	b, err := os.ReadFile(u)
	if err != nil {
		return nil, fmt.Errorf("sound: couldn't read file: %w", err)
	}
	return b, nil
}

func (a *Analyzer) Source() string {
	return a.source
}

func (a *Analyzer) Duration() time.Duration {
	return a.duration
}

func (a *Analyzer) Rate() int {
	return a.rate
}

// Peak returns the maximum absolute sample value.
func (a *Analyzer) Peak() float64 {
	var peak float64
	for _, v := range a.mono {
		if math.Abs(v) > peak {
			peak = math.Abs(v)
		}
	}
	return peak
}

// IsSilent reports whether the whole track is below the silence threshold,
// usually a sign of a soundfont without the requested programs.
func (a *Analyzer) IsSilent() bool {
	return calculateRMS(a.mono) < SilenceThreshold
}

func (a *Analyzer) windows(size time.Duration, fn func([]float64)) {
	n := int(float64(a.rate) * size.Seconds())
	if n <= 0 {
		n = 1
	}
	for i := 0; i < len(a.mono); i += n {
		end := i + n
		if end > len(a.mono) {
			end = len(a.mono)
		}
		fn(a.mono[i:end])
	}
}

// Resample returns the min and max of each window.
func (a *Analyzer) Resample(windowSize time.Duration) []float64 {
	var resampled []float64
	a.windows(windowSize, func(window []float64) {
		var min, max float64
		for _, v := range window {
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
		resampled = append(resampled, min, max)
	})
	return resampled
}

func (a *Analyzer) RMS(windowSize time.Duration) []float64 {
	var rms []float64
	a.windows(windowSize, func(window []float64) {
		rms = append(rms, calculateRMS(window))
	})
	return rms
}

func calculateRMS(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var squareSum float64
	for _, sample := range samples {
		squareSum += sample * sample
	}
	return math.Sqrt(squareSum / float64(len(samples)))
}

func (a *Analyzer) PlotRMS() ([]byte, error) {
	window := 50 * time.Millisecond
	rms := a.RMS(window)
	return createPlot("rms", rms, 0, 1, window.Seconds(), SilenceThreshold*10)
}

func (a *Analyzer) PlotWave(name string) ([]byte, error) {
	window := 50 * time.Millisecond
	resampled := a.Resample(window)
	return createPlot(name, resampled, -1, 1, window.Seconds()/2, 0)
}

func createPlot(name string, data []float64, min, max float64, step float64, line float64) ([]byte, error) {
	p := plot.New()
	p.Y.Min = min
	p.Y.Max = max

	d := time.Duration(float64(len(data)) * step * float64(time.Second)).Round(time.Second)
	p.Title.Text = fmt.Sprintf("%s %s", name, d)
	p.X.Label.Text = "seconds"
	p.Y.Label.Text = "level"

	pts := make(plotter.XYs, len(data))
	for i, v := range data {
		pts[i].X = float64(i) * step
		pts[i].Y = v
	}
	l, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("sound: couldn't create line plotter: %w", err)
	}
	l.LineStyle.Width = vg.Points(1)
	p.Add(l)

	if line > 0 {
		hLine := plotter.NewFunction(func(x float64) float64 { return line })
		hLine.Color = color.RGBA{R: 255, A: 255}
		p.Add(hLine)
	}

	c, err := p.WriterTo(6*vg.Inch, 3*vg.Inch, "png")
	if err != nil {
		return nil, fmt.Errorf("sound: couldn't create plot: %w", err)
	}
	var buf bytes.Buffer
	if _, err := c.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("sound: couldn't write plot: %w", err)
	}
	return buf.Bytes(), nil
}
