package annotation

import (
	"errors"
	"fmt"
	"log/slog"
)

var (
	ErrNoLabels       = errors.New("no suggested labels")
	ErrEmptyLabel     = errors.New("empty label name")
	ErrDuplicateLabel = errors.New("duplicate suggested label")
	ErrUnknownLabel   = errors.New("label is not suggested for this item")
	ErrInvalidValue   = errors.New("label value must be -1, 0 or 1")
	ErrBadMatch       = errors.New("match interval out of range")
)

// ItemConfig is everything needed to show and submit one item.
type ItemConfig struct {
	Request         Request            `json:"request"`
	SuggestedLabels []string           `json:"suggested_labels"`
	Guides          Guides             `json:"annotation_guides,omitempty"`
	Existing        *WorkingAnnotation `json:"existing_annotation,omitempty"`
	Testing         bool               `json:"testing,omitempty"`

	// UpdateRedirect is where the operator goes after re-annotating an
	// item when the server does not answer with a redirect of its own.
	UpdateRedirect string `json:"update_redirect_link,omitempty"`
}

// Normalize validates the configuration and fills in defaults. Label names
// are canonicalised so later lookups agree with what was configured.
func (c *ItemConfig) Normalize() error {
	if len(c.SuggestedLabels) == 0 {
		return ErrNoLabels
	}

	seen := make(map[string]bool, len(c.SuggestedLabels))
	labels := make([]string, 0, len(c.SuggestedLabels))
	for _, l := range c.SuggestedLabels {
		if l == "" {
			return ErrEmptyLabel
		}
		l = NormalizeLabel(l)
		if seen[l] {
			return fmt.Errorf("%w: %q", ErrDuplicateLabel, l)
		}
		seen[l] = true
		labels = append(labels, l)
	}
	c.SuggestedLabels = labels

	guides := make(Guides, len(c.Guides))
	for k, g := range c.Guides {
		guides[NormalizeLabel(k)] = g
	}
	c.Guides = guides

	tokens, matches := c.Request.Pattern()
	for _, m := range matches {
		if m.Start() < 0 || m.Start() > m.End() || m.End() > len(tokens) {
			return fmt.Errorf("%w: [%d, %d) over %d tokens", ErrBadMatch, m.Start(), m.End(), len(tokens))
		}
	}

	existing := NewWorkingAnnotation()
	if c.Existing != nil {
		for k, v := range c.Existing.Labels {
			k = NormalizeLabel(k)
			if !seen[k] {
				// Judgment from an older label set; no button can show it.
				slog.Warn("dropping existing label that is no longer suggested",
					"label", k, "suggested", c.SuggestedLabels)
				continue
			}
			if !v.Valid() {
				return fmt.Errorf("existing annotation for %q: %w", k, ErrInvalidValue)
			}
			existing.Set(k, v)
		}
	}
	c.Existing = existing

	return nil
}

// IsBinary reports whether exactly one label is offered, in which case a
// single click both labels and submits the item.
func (c *ItemConfig) IsBinary() bool {
	return len(c.SuggestedLabels) == 1
}

// Suggests reports whether label is one of the suggested labels.
func (c *ItemConfig) Suggests(label string) bool {
	label = NormalizeLabel(label)
	for _, l := range c.SuggestedLabels {
		if l == label {
			return true
		}
	}
	return false
}
