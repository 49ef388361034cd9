package mode

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"
)

const (
	// DefaultBars is used for sections missing from the table.
	DefaultBars = 8
	// BeatsPerBar is common time.
	BeatsPerBar = 4
)

// Sections maps a section name to its length in bars.
type Sections map[string]int

var DefaultSections = Sections{
	"intro":         4,
	"groove":        8,
	"verse":         8,
	"chorus":        8,
	"bridge":        8,
	"drop":          8,
	"build":         8,
	"solo":          8,
	"outro":         4,
	"loop":          16,
	"variation":     8,
	"layered_loop":  8,
	"fadeout":       4,
	"layer1":        8,
	"layer2":        8,
	"ambient_loop":  16,
	"dream_flow":    8,
	"infinite_loop": 16,
	"loop_a":        8,
	"focus_block":   8,
	"pause_fill":    4,
	"soothing_loop": 16,
	"deep_layer":    8,
	"dream_pad":     8,
}

func (s Sections) Bars(name string) int {
	if bars, ok := s[strings.ToLower(name)]; ok && bars > 0 {
		return bars
	}
	return DefaultBars
}

// Beats returns the beat budget of a section.
func (s Sections) Beats(name string, beatsPerBar int) float64 {
	if beatsPerBar <= 0 {
		beatsPerBar = BeatsPerBar
	}
	return float64(s.Bars(name) * beatsPerBar)
}

type sectionRow struct {
	Section string `json:"section" csv:"section"`
	Bars    int    `json:"bars" csv:"bars"`
}

// LoadSections reads a csv or json table of section lengths and merges it on
// top of the default table.
func LoadSections(path string) (Sections, error) {
	sections := Sections{}
	for k, v := range DefaultSections {
		sections[k] = v
	}
	if path == "" {
		return sections, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("mode: couldn't read sections file: %w", err)
	}
	var rows []*sectionRow
	switch ext := filepath.Ext(path); ext {
	case ".json":
		if err := json.Unmarshal(b, &rows); err != nil {
			return nil, fmt.Errorf("mode: couldn't unmarshal sections: %w", err)
		}
	case ".csv":
		if err := gocsv.UnmarshalBytes(b, &rows); err != nil {
			return nil, fmt.Errorf("mode: couldn't unmarshal sections: %w", err)
		}
	default:
		return nil, fmt.Errorf("mode: unsupported sections format: %s", ext)
	}
	for _, r := range rows {
		name := strings.ToLower(strings.TrimSpace(r.Section))
		if name == "" {
			continue
		}
		if r.Bars <= 0 {
			return nil, fmt.Errorf("mode: %w: section %q has %d bars", ErrInvalid, name, r.Bars)
		}
		sections[name] = r.Bars
	}
	return sections, nil
}
