// Package encode assigns dense integer codes to categorical values. Encoders
// are fitted once on the training vocabulary and frozen; unseen values at
// prediction time encode to a sentinel rather than failing.
package encode

import (
	"encoding/json"
	"sort"
)

// Sentinel is the code returned for values outside the fitted vocabulary.
const Sentinel = -1

// Encoder maps category strings to dense 0-based integer codes.
type Encoder struct {
	classes []string
	index   map[string]int
}

// Fit builds an encoder from the observed training values. Codes are
// assigned in sorted order of the distinct values, so fitting is
// deterministic regardless of input order.
func Fit(values []string) *Encoder {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		seen[v] = struct{}{}
	}
	classes := make([]string, 0, len(seen))
	for v := range seen {
		classes = append(classes, v)
	}
	sort.Strings(classes)
	return newEncoder(classes)
}

func newEncoder(classes []string) *Encoder {
	index := make(map[string]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	return &Encoder{classes: classes, index: index}
}

// Encode returns the code for a value, or Sentinel if the value was not in
// the fitted vocabulary.
func (e *Encoder) Encode(value string) int {
	if code, ok := e.index[value]; ok {
		return code
	}
	return Sentinel
}

// Classes returns the fitted vocabulary in code order.
func (e *Encoder) Classes() []string {
	out := make([]string, len(e.classes))
	copy(out, e.classes)
	return out
}

// Len returns the vocabulary size.
func (e *Encoder) Len() int { return len(e.classes) }

// MarshalJSON persists the vocabulary; the index is rebuilt on load.
func (e *Encoder) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.classes)
}

func (e *Encoder) UnmarshalJSON(data []byte) error {
	var classes []string
	if err := json.Unmarshal(data, &classes); err != nil {
		return err
	}
	*e = *newEncoder(classes)
	return nil
}

// Registry holds one frozen encoder per categorical field.
type Registry map[string]*Encoder
