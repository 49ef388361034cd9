package fluidsynth

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// BinPath is the path to the fluidsynth binary
var BinPath = "fluidsynth"

// DefaultRate is the sample rate used when none is given.
const DefaultRate = 44100

func Version(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, BinPath, "--version")
	data, err := cmd.CombinedOutput()
	if err != nil {
		msg := string(data)
		return "", fmt.Errorf("fluidsynth: couldn't get version: %w: %s", err, msg)
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "FluidSynth runtime version ") {
			return strings.TrimPrefix(line, "FluidSynth runtime version "), nil
		}
		if strings.HasPrefix(line, "FluidSynth version ") {
			return strings.TrimPrefix(line, "FluidSynth version "), nil
		}
	}
	return "", fmt.Errorf("fluidsynth: invalid version: %s", strings.TrimSpace(string(data)))
}

// Render synthesizes a MIDI file into a wav file using the given soundfont.
func Render(ctx context.Context, soundfont, midi, output string, rate int) error {
	if rate <= 0 {
		rate = DefaultRate
	}
	// -n no midi input, -i no shell, -F fast render to file
	cmd := exec.CommandContext(ctx, BinPath, "-ni", "-g", "1.0",
		"-F", output, "-r", strconv.Itoa(rate), soundfont, midi)
	data, err := cmd.CombinedOutput()
	if err != nil {
		msg := string(data)
		return fmt.Errorf("fluidsynth: couldn't render %s: %w: %s", midi, err, msg)
	}
	return nil
}
