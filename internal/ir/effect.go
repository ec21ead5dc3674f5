package ir

import (
	"encoding/json"
	"fmt"
	"math/bits"
	"strings"
)

// EffectKind is one member of the closed effect enumeration.
type EffectKind uint8

const (
	EffectIO EffectKind = iota
	EffectAsync
	EffectTime
	EffectFFI
	EffectUnsafe

	numEffects
)

// AllEffects lists every effect kind in declaration order.
var AllEffects = []EffectKind{EffectIO, EffectAsync, EffectTime, EffectFFI, EffectUnsafe}

// NumEffectKinds is K, the height of the effect lattice.
const NumEffectKinds = int(numEffects)

var effectNames = [...]string{
	EffectIO:     "IO",
	EffectAsync:  "Async",
	EffectTime:   "Time",
	EffectFFI:    "FFI",
	EffectUnsafe: "Unsafe",
}

func (k EffectKind) String() string {
	if k < numEffects {
		return effectNames[k]
	}
	return fmt.Sprintf("EffectKind(%d)", uint8(k))
}

// ParseEffect parses an effect name. Matching is case-insensitive and
// tolerates the leading '!' used in surface syntax ("!IO").
func ParseEffect(s string) (EffectKind, error) {
	name := strings.TrimPrefix(strings.TrimSpace(s), "!")
	for k, n := range effectNames {
		if strings.EqualFold(n, name) {
			return EffectKind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown effect %q: must be one of IO, Async, Time, FFI, Unsafe", s)
}

// EffectSet is an element of the powerset lattice over EffectKind,
// ordered by inclusion and joined by union.
type EffectSet uint8

// NewEffectSet builds a set from kinds.
func NewEffectSet(kinds ...EffectKind) EffectSet {
	var s EffectSet
	for _, k := range kinds {
		s = s.With(k)
	}
	return s
}

// With returns s ∪ {k}.
func (s EffectSet) With(k EffectKind) EffectSet { return s | 1<<k }

// Has reports whether k ∈ s.
func (s EffectSet) Has(k EffectKind) bool { return s&(1<<k) != 0 }

// Union returns s ∪ o.
func (s EffectSet) Union(o EffectSet) EffectSet { return s | o }

// Minus returns s \ o. Used for handle-scope discharge.
func (s EffectSet) Minus(o EffectSet) EffectSet { return s &^ o }

// SubsetOf reports whether s ⊆ o.
func (s EffectSet) SubsetOf(o EffectSet) bool { return s&^o == 0 }

// IsEmpty reports whether s is the bottom element.
func (s EffectSet) IsEmpty() bool { return s == 0 }

// Len returns |s|.
func (s EffectSet) Len() int { return bits.OnesCount8(uint8(s)) }

// Kinds returns the members of s in declaration order.
func (s EffectSet) Kinds() []EffectKind {
	var out []EffectKind
	for _, k := range AllEffects {
		if s.Has(k) {
			out = append(out, k)
		}
	}
	return out
}

// String renders the set as "{IO, Time}".
func (s EffectSet) String() string {
	names := make([]string, 0, s.Len())
	for _, k := range s.Kinds() {
		names = append(names, k.String())
	}
	return "{" + strings.Join(names, ", ") + "}"
}

// Names returns member names in declaration order.
func (s EffectSet) Names() []string {
	names := make([]string, 0, s.Len())
	for _, k := range s.Kinds() {
		names = append(names, k.String())
	}
	return names
}

// ParseEffectSet parses a list of effect names into a set.
func ParseEffectSet(names []string) (EffectSet, error) {
	var s EffectSet
	for _, n := range names {
		k, err := ParseEffect(n)
		if err != nil {
			return 0, err
		}
		s = s.With(k)
	}
	return s, nil
}

// MarshalJSON renders the set as a sorted list of names.
func (s EffectSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Names())
}

// UnmarshalJSON accepts a list of effect names.
func (s *EffectSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	parsed, err := ParseEffectSet(names)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
