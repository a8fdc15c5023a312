package annotation

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/bytedance/sonic"
	"golang.org/x/text/unicode/norm"
)

// codec matches encoding/json output (sorted map keys, HTML escaping) so
// payloads are byte-stable across runs. Numbers in untyped fields decode as
// json.Number, so ids above 2^53 survive a round trip.
var codec = sonic.Config{
	EscapeHTML:       true,
	SortMapKeys:      true,
	CompactMarshaler: true,
	CopyString:       true,
	ValidateString:   true,
	UseNumber:        true,
}.Froze()

// Value is the judgment recorded for one label.
type Value int

const (
	Negative Value = -1
	NotSure  Value = 0
	Positive Value = 1
)

// Valid reports whether v is one of Positive, NotSure or Negative.
func (v Value) Valid() bool {
	return v == Positive || v == NotSure || v == Negative
}

func (v Value) String() string {
	switch v {
	case Positive:
		return "positive"
	case NotSure:
		return "not_sure"
	case Negative:
		return "negative"
	}
	return fmt.Sprintf("Value(%d)", int(v))
}

// ParseValue accepts the numeric form ("1", "0", "-1") or the names
// returned by String.
func ParseValue(s string) (Value, error) {
	switch s {
	case "1", "+1", "positive":
		return Positive, nil
	case "0", "not_sure":
		return NotSure, nil
	case "-1", "negative":
		return Negative, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidValue, s)
}

// Match is a half-open [start, end) interval over token indices.
type Match [2]int

func (m Match) Start() int { return m[0] }
func (m Match) End() int   { return m[1] }

// Contains reports whether token i falls inside the interval.
func (m Match) Contains(i int) bool {
	return m[0] <= i && i < m[1]
}

// UnmarshalJSON accepts [start, end] and the pattern matcher's
// [start, end, term]; the term is dropped.
func (m *Match) UnmarshalJSON(data []byte) error {
	var parts []any
	if err := codec.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("decode match: %w", err)
	}
	if len(parts) < 2 {
		return fmt.Errorf("%w: want [start, end], got %s", ErrBadMatch, data)
	}
	for i := 0; i < 2; i++ {
		n, ok := parts[i].(json.Number)
		if !ok {
			return fmt.Errorf("%w: non-integer bound in %s", ErrBadMatch, data)
		}
		v, err := n.Int64()
		if err != nil {
			return fmt.Errorf("%w: non-integer bound in %s", ErrBadMatch, data)
		}
		m[i] = int(v)
	}
	return nil
}

// Guide is the help text shown for a label. Older servers send the body
// under "html", newer ones under "text".
type Guide struct {
	Text string `json:"text,omitempty" yaml:"text,omitempty"`
	HTML string `json:"html,omitempty" yaml:"html,omitempty"`
}

// Body returns the guide content, or "N/A" when the guide is empty.
func (g Guide) Body() string {
	if g.HTML != "" {
		return g.HTML
	}
	if g.Text != "" {
		return g.Text
	}
	return "N/A"
}

// Guides maps label name to its guide.
type Guides map[string]Guide

// For returns the guide body for label, "N/A" if there is none.
func (g Guides) For(label string) string {
	return g[NormalizeLabel(label)].Body()
}

// NormalizeLabel returns the canonical (NFC) form of a label name.
func NormalizeLabel(label string) string {
	return norm.NFC.String(label)
}

// WorkingAnnotation holds the operator's judgments for one item.
type WorkingAnnotation struct {
	Labels map[string]Value `json:"labels"`
}

// NewWorkingAnnotation returns an empty annotation.
func NewWorkingAnnotation() *WorkingAnnotation {
	return &WorkingAnnotation{Labels: make(map[string]Value)}
}

// Set records v for label, replacing any previous value.
func (a *WorkingAnnotation) Set(label string, v Value) {
	if a.Labels == nil {
		a.Labels = make(map[string]Value)
	}
	a.Labels[NormalizeLabel(label)] = v
}

// Get returns the value recorded for label.
func (a *WorkingAnnotation) Get(label string) (Value, bool) {
	v, ok := a.Labels[NormalizeLabel(label)]
	return v, ok
}

// Len returns the number of labels with a recorded value.
func (a *WorkingAnnotation) Len() int {
	return len(a.Labels)
}

// Clone returns an independent copy.
func (a *WorkingAnnotation) Clone() *WorkingAnnotation {
	out := NewWorkingAnnotation()
	if a == nil {
		return out
	}
	for k, v := range a.Labels {
		out.Labels[k] = v
	}
	return out
}

// SortedLabels returns the recorded label names in lexical order.
func (a *WorkingAnnotation) SortedLabels() []string {
	names := make([]string, 0, len(a.Labels))
	for k := range a.Labels {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
