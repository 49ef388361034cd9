package mode

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Tags is a set of free-form style labels. It can be written either as a
// list or as a single string ("ambient slow").
type Tags []string

func (t Tags) Has(tags ...string) bool {
	for _, v := range t {
		for _, tag := range tags {
			if strings.EqualFold(v, tag) {
				return true
			}
		}
	}
	return false
}

func (t *Tags) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = splitTags(s)
		return nil
	}
	var vs []string
	if err := json.Unmarshal(b, &vs); err != nil {
		return fmt.Errorf("mode: style must be a string or a list: %w", err)
	}
	*t = Tags(vs)
	return nil
}

func (t *Tags) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		*t = splitTags(n.Value)
		return nil
	case yaml.SequenceNode:
		var vs []string
		if err := n.Decode(&vs); err != nil {
			return err
		}
		*t = Tags(vs)
		return nil
	}
	return fmt.Errorf("mode: style must be a string or a list (line %d)", n.Line)
}

func splitTags(s string) Tags {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ',' || r == '|' || r == '/'
	})
	var tags Tags
	for _, f := range fields {
		tags = append(tags, strings.ToLower(f))
	}
	return tags
}

// Chord is a palette entry: a pitch set and an optional quality tag.
type Chord struct {
	Pitches []string `json:"pitches" yaml:"pitches"`
	Quality string   `json:"quality,omitempty" yaml:"quality,omitempty"`
}

type chordObject Chord

func (c *Chord) UnmarshalJSON(b []byte) error {
	var pitches []string
	if err := json.Unmarshal(b, &pitches); err == nil {
		*c = Chord{Pitches: pitches}
		return nil
	}
	var o chordObject
	if err := json.Unmarshal(b, &o); err != nil {
		return fmt.Errorf("mode: chord must be a list or an object: %w", err)
	}
	*c = Chord(o)
	return nil
}

// MarshalJSON keeps the compact list form when there is no quality.
func (c Chord) MarshalJSON() ([]byte, error) {
	if c.Quality == "" {
		return json.Marshal(c.Pitches)
	}
	return json.Marshal(chordObject(c))
}

func (c *Chord) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.SequenceNode {
		var pitches []string
		if err := n.Decode(&pitches); err != nil {
			return err
		}
		*c = Chord{Pitches: pitches}
		return nil
	}
	var o chordObject
	if err := n.Decode(&o); err != nil {
		return err
	}
	*c = Chord(o)
	return nil
}
