package aubio

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// BinPath is the path to the aubio binary
var BinPath = "aubio"

func Version(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, BinPath, "--version")
	data, err := cmd.CombinedOutput()
	if err != nil {
		msg := string(data)
		return "", fmt.Errorf("aubio: couldn't get version: %w: %s", err, msg)
	}
	line := strings.TrimSpace(string(data))
	if !strings.HasPrefix(line, "aubio version") {
		return "", fmt.Errorf("aubio: invalid version: %s", line)
	}
	return strings.TrimPrefix(line, "aubio version "), nil
}

// Tempo estimates the tempo of a rendered audio file in bpm.
func Tempo(ctx context.Context, input string) (float64, error) {
	cmd := exec.CommandContext(ctx, BinPath, "tempo", input)
	data, err := cmd.CombinedOutput()
	if err != nil {
		msg := string(data)
		return 0, fmt.Errorf("aubio: couldn't get tempo: %w: %s", err, msg)
	}
	return parseTempo(string(data))
}

func parseTempo(out string) (float64, error) {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasSuffix(line, " bpm") {
			continue
		}
		t, err := strconv.ParseFloat(strings.TrimSuffix(line, " bpm"), 64)
		if err != nil {
			continue
		}
		return t, nil
	}
	return 0, fmt.Errorf("aubio: no tempo found")
}
