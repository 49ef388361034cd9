package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// BinPath is the path to the ffmpeg binary
var BinPath = "ffmpeg"

func Version(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, BinPath, "-version")
	data, err := cmd.CombinedOutput()
	if err != nil {
		msg := string(data)
		return "", fmt.Errorf("ffmpeg: couldn't get version: %w: %s", err, msg)
	}
	line := strings.SplitN(strings.TrimSpace(string(data)), "\n", 2)[0]
	if !strings.HasPrefix(line, "ffmpeg version ") {
		return "", fmt.Errorf("ffmpeg: invalid version: %s", line)
	}
	fields := strings.Fields(strings.TrimPrefix(line, "ffmpeg version "))
	if len(fields) == 0 {
		return "", fmt.Errorf("ffmpeg: invalid version: %s", line)
	}
	return fields[0], nil
}

// Convert encodes the input audio file as mp3.
func Convert(ctx context.Context, input, output string) error {
	cmd := exec.CommandContext(ctx, BinPath, "-y", "-i", input, "-codec:a", "libmp3lame", "-b:a", "192k", output)
	data, err := cmd.CombinedOutput()
	if err != nil {
		msg := string(data)
		return fmt.Errorf("ffmpeg: couldn't convert: %w: %s", err, msg)
	}
	return nil
}

// Mix overlays two audio files with independent volumes. The output lasts
// as long as the first input.
func Mix(ctx context.Context, input string, volume float64, background string, backgroundVolume float64, output string) error {
	filter := fmt.Sprintf("[0:a]volume=%.2f[a0];[1:a]volume=%.2f[a1];[a0][a1]amix=inputs=2:duration=first:dropout_transition=2:normalize=0",
		volume, backgroundVolume)
	cmd := exec.CommandContext(ctx, BinPath, "-y", "-i", input, "-stream_loop", "-1", "-i", background,
		"-filter_complex", filter, "-b:a", "192k", output)
	data, err := cmd.CombinedOutput()
	if err != nil {
		msg := string(data)
		return fmt.Errorf("ffmpeg: couldn't mix: %w: %s", err, msg)
	}
	return nil
}

func FadeOut(ctx context.Context, input, output string, totalDuration, fadeOutDuration time.Duration) error {
	// Use a temporary file if the input and output are the same
	tmp := output
	if input == output {
		tmp = fmt.Sprintf("%s.tmp%s", input, filepath.Ext(input))
	}

	fd := fadeOutDuration.Seconds()
	st := totalDuration.Seconds() - fadeOutDuration.Seconds()
	if st < 0 {
		st = 0
	}
	cmd := exec.CommandContext(ctx, BinPath, "-y", "-i", input, "-b:a", "192k", "-af", fmt.Sprintf("afade=t=out:st=%f:d=%f", st, fd), tmp)
	data, err := cmd.CombinedOutput()
	if err != nil {
		if tmp != output {
			_ = os.Remove(tmp)
		}
		msg := string(data)
		return fmt.Errorf("ffmpeg: couldn't fade out: %w: %s", err, msg)
	}

	if tmp != output {
		_ = os.Remove(output)
		if err := os.Rename(tmp, output); err != nil {
			return fmt.Errorf("ffmpeg: couldn't rename temporary file: %w", err)
		}
	}
	return nil
}
