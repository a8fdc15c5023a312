// Package box implements the per-item annotation workflow: recording label
// judgments and deciding when the accumulated annotation is submitted.
package box

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"annobox/pkg/annotation"
)

// ErrSubmitted is returned for any change attempted after submission.
var ErrSubmitted = errors.New("item already submitted")

// ErrNoSubmitter is returned when a box outside testing mode has nowhere to
// send its payload.
var ErrNoSubmitter = errors.New("no submitter configured")

// Submitter delivers a payload to the annotation server and returns the
// redirect it answered with ("" when none).
type Submitter interface {
	Submit(ctx context.Context, p *annotation.Payload) (string, error)
}

// SubmitterFunc adapts a function to Submitter.
type SubmitterFunc func(ctx context.Context, p *annotation.Payload) (string, error)

func (f SubmitterFunc) Submit(ctx context.Context, p *annotation.Payload) (string, error) {
	return f(ctx, p)
}

// Navigator moves the operator to the next page after a submission.
type Navigator interface {
	Navigate(ctx context.Context, url string)
}

// Outcome is the result of a completed submission.
type Outcome struct {
	Redirect string `json:"redirect,omitempty"`
	DryRun   bool   `json:"dry_run,omitempty"`
}

// Box owns the working annotation of one item.
type Box struct {
	mu      sync.Mutex
	index   int
	cfg     annotation.ItemConfig
	anno    *annotation.WorkingAnnotation
	state   State
	outcome Outcome
	lastErr error

	submitter Submitter
	navigator Navigator
	observer  func(Event)
	logger    *slog.Logger
}

// Option configures a Box.
type Option func(*Box)

func WithIndex(i int) Option                { return func(b *Box) { b.index = i } }
func WithSubmitter(s Submitter) Option      { return func(b *Box) { b.submitter = s } }
func WithNavigator(n Navigator) Option      { return func(b *Box) { b.navigator = n } }
func WithObserver(fn func(Event)) Option    { return func(b *Box) { b.observer = fn } }
func WithLogger(logger *slog.Logger) Option { return func(b *Box) { b.logger = logger } }

// New validates cfg and returns a box seeded with any existing annotation.
func New(cfg annotation.ItemConfig, opts ...Option) (*Box, error) {
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	b := &Box{
		cfg:    cfg,
		anno:   cfg.Existing.Clone(),
		state:  Unanswered,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.anno.Len() > 0 {
		b.state = PartiallyAnswered
	}
	b.logger = b.logger.With("item", b.index)
	return b, nil
}

// Index returns the item's position in its batch.
func (b *Box) Index() int { return b.index }

// Config returns the validated configuration the box was built from.
func (b *Box) Config() annotation.ItemConfig { return b.cfg }

// Mode returns Binary when exactly one label is offered.
func (b *Box) Mode() Mode {
	if b.cfg.IsBinary() {
		return Binary
	}
	return MultiLabel
}

// State returns the current workflow state.
func (b *Box) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// SetLabel records v for label. In binary mode it also submits, and the
// returned Outcome is that submission's result.
func (b *Box) SetLabel(ctx context.Context, label string, v annotation.Value) (Outcome, error) {
	b.mu.Lock()

	if b.state == Submitted {
		b.mu.Unlock()
		return Outcome{}, ErrSubmitted
	}
	if !b.cfg.Suggests(label) {
		b.mu.Unlock()
		return Outcome{}, fmt.Errorf("%w: %q", annotation.ErrUnknownLabel, label)
	}
	if !v.Valid() {
		b.mu.Unlock()
		return Outcome{}, fmt.Errorf("%q: %w", label, annotation.ErrInvalidValue)
	}

	label = annotation.NormalizeLabel(label)
	b.anno.Set(label, v)
	b.state = PartiallyAnswered
	b.logger.Debug("label set", "label", label, "value", int(v))
	events := []Event{{Type: EventLabelSet, Index: b.index, Label: label, Value: v}}

	if b.Mode() != Binary {
		b.mu.Unlock()
		b.emit(events...)
		return Outcome{}, nil
	}

	out, ev, err := b.submitLocked(ctx)
	b.mu.Unlock()
	b.emit(append(events, ev)...)
	if err != nil {
		return Outcome{}, err
	}
	b.navigate(ctx, out)
	return out, nil
}

// Submit sends the current annotation. It is the explicit save action of
// multi-label mode but is accepted in either mode.
func (b *Box) Submit(ctx context.Context) (Outcome, error) {
	b.mu.Lock()
	if b.state == Submitted {
		b.mu.Unlock()
		return Outcome{}, ErrSubmitted
	}
	out, ev, err := b.submitLocked(ctx)
	b.mu.Unlock()
	b.emit(ev)
	if err != nil {
		return Outcome{}, err
	}
	b.navigate(ctx, out)
	return out, nil
}

// submitLocked must be called with b.mu held. On failure nothing but the
// recorded error changes, so the operator's labels survive a retry.
func (b *Box) submitLocked(ctx context.Context) (Outcome, Event, error) {
	payload, err := annotation.NewPayload(b.cfg.Request, b.anno)
	if err != nil {
		return b.failLocked(fmt.Errorf("build payload: %w", err))
	}

	if b.cfg.Testing {
		body, _ := payload.MarshalJSON()
		b.logger.Info("submitting (testing, not sent)", "payload", string(body))
		out := Outcome{DryRun: true}
		if b.cfg.UpdateRedirect != "" {
			b.logger.Info("redirect to (testing, not followed)", "url", b.cfg.UpdateRedirect)
			out.Redirect = b.cfg.UpdateRedirect
		}
		return b.doneLocked(out)
	}

	if b.submitter == nil {
		return b.failLocked(ErrNoSubmitter)
	}
	redirect, err := b.submitter.Submit(ctx, payload)
	if err != nil {
		return b.failLocked(err)
	}
	if redirect == "" {
		redirect = b.cfg.UpdateRedirect
	}
	b.logger.Info("annotation submitted", "labels", b.anno.Len(), "redirect", redirect)
	return b.doneLocked(Outcome{Redirect: redirect})
}

func (b *Box) doneLocked(out Outcome) (Outcome, Event, error) {
	b.state = Submitted
	b.outcome = out
	b.lastErr = nil
	return out, Event{Type: EventSubmitted, Index: b.index, Redirect: out.Redirect, DryRun: out.DryRun}, nil
}

func (b *Box) failLocked(err error) (Outcome, Event, error) {
	b.lastErr = err
	b.logger.Error("submission failed", "error", err)
	return Outcome{}, Event{Type: EventFailed, Index: b.index, Error: err.Error()}, err
}

func (b *Box) navigate(ctx context.Context, out Outcome) {
	if out.DryRun || out.Redirect == "" || b.navigator == nil {
		return
	}
	b.navigator.Navigate(ctx, out.Redirect)
}

func (b *Box) emit(events ...Event) {
	if b.observer == nil {
		return
	}
	for _, ev := range events {
		b.observer(ev)
	}
}

// Snapshot returns a copy of the box's state for rendering.
func (b *Box) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := Snapshot{
		Index:      b.index,
		Mode:       b.Mode(),
		State:      b.state,
		Annotation: b.anno.Clone(),
		Outcome:    b.outcome,
	}
	if b.lastErr != nil {
		s.Error = b.lastErr.Error()
	}
	return s
}
