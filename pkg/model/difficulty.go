package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Difficulty is a question difficulty a user is willing to practice.
type Difficulty uint8

const (
	DifficultyEasy Difficulty = 1 << iota
	DifficultyMedium
	DifficultyHard
)

// byName lists every difficulty in lexicographic order of its name. Agreed
// difficulty and DifficultySet.Values rely on this order.
var byName = [...]Difficulty{DifficultyEasy, DifficultyHard, DifficultyMedium}

// Difficulties returns all known difficulties in lexicographic order.
func Difficulties() []Difficulty {
	return append([]Difficulty(nil), byName[:]...)
}

func (d Difficulty) String() string {
	switch d {
	case DifficultyEasy:
		return "easy"
	case DifficultyMedium:
		return "medium"
	case DifficultyHard:
		return "hard"
	default:
		return "unknown"
	}
}

// Valid reports whether d is exactly one known difficulty.
func (d Difficulty) Valid() bool {
	return d == DifficultyEasy || d == DifficultyMedium || d == DifficultyHard
}

// ParseDifficulty converts a wire name ("easy", "medium", "hard") to a
// Difficulty. Matching is case-insensitive.
func ParseDifficulty(s string) (Difficulty, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "easy":
		return DifficultyEasy, nil
	case "medium":
		return DifficultyMedium, nil
	case "hard":
		return DifficultyHard, nil
	default:
		return 0, fmt.Errorf("%w: unknown difficulty %q", ErrInvalidCriteria, s)
	}
}

func (d Difficulty) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("model: invalid difficulty %d", d)
	}
	return []byte(d.String()), nil
}

func (d *Difficulty) UnmarshalText(b []byte) error {
	v, err := ParseDifficulty(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// DifficultySet is a set of difficulties. The zero value is the empty set,
// which is never a valid join criterion.
type DifficultySet uint8

// NewDifficultySet builds a set from the given values. Duplicates collapse.
func NewDifficultySet(ds ...Difficulty) DifficultySet {
	var s DifficultySet
	for _, d := range ds {
		if d.Valid() {
			s |= DifficultySet(d)
		}
	}
	return s
}

// ParseDifficulties parses wire names into a non-empty set.
func ParseDifficulties(names []string) (DifficultySet, error) {
	if len(names) == 0 {
		return 0, fmt.Errorf("%w: no difficulties given", ErrInvalidCriteria)
	}
	var s DifficultySet
	for _, n := range names {
		d, err := ParseDifficulty(n)
		if err != nil {
			return 0, err
		}
		s |= DifficultySet(d)
	}
	return s, nil
}

func (s DifficultySet) Empty() bool { return s == 0 }

func (s DifficultySet) Contains(d Difficulty) bool {
	return d.Valid() && s&DifficultySet(d) != 0
}

func (s DifficultySet) Intersect(o DifficultySet) DifficultySet { return s & o }

// Compatible reports whether the two sets share at least one difficulty.
func (s DifficultySet) Compatible(o DifficultySet) bool { return s&o != 0 }

// Agreed returns the lexicographically smallest difficulty present in both
// sets. ok is false when they are disjoint.
func (s DifficultySet) Agreed(o DifficultySet) (d Difficulty, ok bool) {
	both := s & o
	for _, d := range byName {
		if both.Contains(d) {
			return d, true
		}
	}
	return 0, false
}

// Values returns the members in lexicographic order.
func (s DifficultySet) Values() []Difficulty {
	out := make([]Difficulty, 0, len(byName))
	for _, d := range byName {
		if s.Contains(d) {
			out = append(out, d)
		}
	}
	return out
}

// Names returns the wire names of the members in lexicographic order.
func (s DifficultySet) Names() []string {
	vals := s.Values()
	out := make([]string, len(vals))
	for i, d := range vals {
		out[i] = d.String()
	}
	return out
}

func (s DifficultySet) String() string {
	return "{" + strings.Join(s.Names(), ",") + "}"
}

func (s DifficultySet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Names())
}

func (s *DifficultySet) UnmarshalJSON(b []byte) error {
	var names []string
	if err := json.Unmarshal(b, &names); err != nil {
		return fmt.Errorf("%w: difficulties must be a list of names", ErrInvalidCriteria)
	}
	v, err := ParseDifficulties(names)
	if err != nil {
		return err
	}
	*s = v
	return nil
}
