package mode

// General MIDI programs for the instrument names used by the modes.
var programs = map[string]uint8{
	"Charango":         105,
	"Reeds":            69,
	"Harp":             46,
	"Piano":            0,
	"Electric Piano":   4,
	"Synth Lead":       64,
	"Bass Guitar":      33,
	"Drum Kit":         115,
	"Arpeggiator":      6,
	"Acoustic Guitar":  24,
	"Soft Strings":     40,
	"Felt Piano":       0,
	"Air Pad":          16,
	"Sub Bass":         43,
	"Flute":            73,
	"Chill Guitar":     24,
	"Electric Guitar":  26,
	"Meditative Flute": 75,
}

// Program returns the program number for an instrument name, piano if unknown.
func Program(name string) uint8 {
	if p, ok := programs[name]; ok {
		return p
	}
	return 0
}
