package sound

import (
	"time"
)

// HasFadeOut reports whether the level keeps decreasing during the last
// second of the track.
func (a *Analyzer) HasFadeOut() bool {
	window := 100 * time.Millisecond
	rms := a.RMS(window)
	n := int(time.Second / window)
	if len(rms) < n {
		return false
	}
	rms = rms[len(rms)-n:]

	// Windows louder than the previous one break the fade out
	var count int
	for i := 1; i < len(rms); i++ {
		if rms[i]-rms[i-1] > 0.001 {
			count++
		}
	}
	return count <= 1 && rms[len(rms)-1] < rms[0]*0.9
}
