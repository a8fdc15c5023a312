package box

import (
	"fmt"

	"annobox/pkg/annotation"
)

// Mode is how a box decides when to submit.
type Mode int

const (
	// MultiLabel waits for an explicit save.
	MultiLabel Mode = iota
	// Binary submits on the first click.
	Binary
)

func (m Mode) String() string {
	if m == Binary {
		return "binary"
	}
	return "multi_label"
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// State is the workflow state of one box. Submitted is terminal.
type State int

const (
	Unanswered State = iota
	PartiallyAnswered
	Submitted
)

func (s State) String() string {
	switch s {
	case Unanswered:
		return "unanswered"
	case PartiallyAnswered:
		return "partially_answered"
	case Submitted:
		return "submitted"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Snapshot is a point-in-time copy of a box.
type Snapshot struct {
	Index      int                           `json:"index"`
	Mode       Mode                          `json:"mode"`
	State      State                         `json:"state"`
	Annotation *annotation.WorkingAnnotation `json:"annotation"`
	Outcome    Outcome                       `json:"outcome"`
	Error      string                        `json:"error,omitempty"`
}

// Value returns the recorded value for label.
func (s Snapshot) Value(label string) (annotation.Value, bool) {
	return s.Annotation.Get(label)
}

// EventType names a box transition.
type EventType string

const (
	EventLabelSet  EventType = "label_set"
	EventSubmitted EventType = "submitted"
	EventFailed    EventType = "failed"
)

// Event describes one transition, for live progress views.
type Event struct {
	Type     EventType        `json:"type"`
	Index    int              `json:"index"`
	Label    string           `json:"label,omitempty"`
	Value    annotation.Value `json:"value"`
	Redirect string           `json:"redirect,omitempty"`
	DryRun   bool             `json:"dry_run,omitempty"`
	Error    string           `json:"error,omitempty"`
}
