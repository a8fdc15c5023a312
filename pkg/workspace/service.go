package workspace

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"annobox/pkg/annotation"
	"annobox/pkg/box"
	"annobox/pkg/container"
	"annobox/pkg/render"
	"annobox/pkg/submit"
)

type ServiceConfig struct {
	Title     string
	ServerURL string
	// EnableEvents turns on the /api/events websocket.
	EnableEvents bool
}

// DefaultServiceConfig returns the default configuration for the service.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Title:        "Annotate",
		EnableEvents: true,
	}
}

// Service serves one batch to one operator. Every item keeps its own
// working annotation; the service only routes requests to the right box.
type Service struct {
	Config    ServiceConfig
	sessionID string
	items     *container.Container
	renderer  *render.Renderer
	hub       *Hub
	logger    *slog.Logger
}

func NewService(config ServiceConfig, batch annotation.Batch, submitter box.Submitter, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		Config:    config,
		sessionID: uuid.NewString(),
		logger:    logger,
	}
	logger = logger.With("session", s.sessionID)
	s.logger = logger

	if config.EnableEvents {
		s.hub = NewHub(logger)
	}

	renderer, err := render.New()
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	s.renderer = renderer

	opts := []box.Option{box.WithLogger(logger)}
	if submitter != nil {
		opts = append(opts, box.WithSubmitter(submitter))
	}
	if s.hub != nil {
		opts = append(opts, box.WithObserver(s.hub.Broadcast))
	}
	items, err := container.New(batch, opts...)
	if err != nil {
		return nil, err
	}
	s.items = items

	return s, nil
}

// SessionID identifies this serving session in logs and /api/config.
func (s *Service) SessionID() string { return s.sessionID }

// Hub returns the event hub, nil when events are disabled.
func (s *Service) Hub() *Hub { return s.hub }

// Close disconnects event listeners.
func (s *Service) Close() {
	if s.hub != nil {
		s.hub.Close()
	}
}

// ListItems returns a snapshot of every item in batch order.
func (s *Service) ListItems(ctx context.Context) []*Item {
	boxes := s.items.Items()
	out := make([]*Item, 0, len(boxes))
	for _, b := range boxes {
		out = append(out, itemOf(b))
	}
	return out
}

// GetItem returns the item at index.
func (s *Service) GetItem(ctx context.Context, index int) (*Item, error) {
	b, ok := s.items.Item(index)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNoItem, index)
	}
	return itemOf(b), nil
}

// SetLabel records a judgment on one item.
func (s *Service) SetLabel(ctx context.Context, index int, req SetLabelRequest) (*ActionResponse, error) {
	h, ok := s.items.Handlers(index)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNoItem, index)
	}
	v := annotation.Value(req.Value)
	if !v.Valid() {
		return nil, fmt.Errorf("%q: %w", req.Label, annotation.ErrInvalidValue)
	}
	out, err := h.SetLabel(ctx, req.Label, v)
	if err != nil {
		return nil, err
	}
	return s.action(index, out), nil
}

// Submit is the explicit save of one item.
func (s *Service) Submit(ctx context.Context, index int) (*ActionResponse, error) {
	h, ok := s.items.Handlers(index)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNoItem, index)
	}
	out, err := h.Submit(ctx)
	if err != nil {
		return nil, err
	}
	return s.action(index, out), nil
}

// RenderPage writes the HTML page for the whole batch.
func (s *Service) RenderPage(w io.Writer) error {
	view := s.items.View(s.Config.Title, func(i int) string {
		return fmt.Sprintf("/api/items/%d", i)
	})
	if s.hub != nil {
		view.EventsURL = "/api/events"
	}
	return s.renderer.Page(w, view)
}

// action reports an outcome. A relative update_redirect_link fallback is a
// path on the annotation server, like the redirects the client resolves.
func (s *Service) action(index int, out box.Outcome) *ActionResponse {
	b, _ := s.items.Item(index)
	return &ActionResponse{
		Index:    index,
		State:    b.State(),
		Redirect: submit.ResolveRedirect(s.Config.ServerURL, out.Redirect),
		DryRun:   out.DryRun,
	}
}

func itemOf(b *box.Box) *Item {
	cfg := b.Config()
	return &Item{
		Snapshot:        b.Snapshot(),
		Text:            cfg.Request.Text,
		SuggestedLabels: cfg.SuggestedLabels,
	}
}
