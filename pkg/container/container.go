// Package container fans a batch of items out into one box per item.
package container

import (
	"context"
	"fmt"

	"annobox/pkg/annotation"
	"annobox/pkg/box"
	"annobox/pkg/render"
)

// Container holds the boxes of a batch in batch order.
type Container struct {
	boxes []*box.Box
}

// New builds one box per item. opts apply to every box; each box also gets
// its batch index.
func New(batch annotation.Batch, opts ...box.Option) (*Container, error) {
	c := &Container{boxes: make([]*box.Box, 0, len(batch))}
	for i, cfg := range batch {
		itemOpts := append(append([]box.Option{}, opts...), box.WithIndex(i))
		b, err := box.New(cfg, itemOpts...)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		c.boxes = append(c.boxes, b)
	}
	return c, nil
}

func (c *Container) Len() int { return len(c.boxes) }

// Item returns the box at index i.
func (c *Container) Item(i int) (*box.Box, bool) {
	if i < 0 || i >= len(c.boxes) {
		return nil, false
	}
	return c.boxes[i], true
}

// Items returns the boxes in batch order.
func (c *Container) Items() []*box.Box {
	out := make([]*box.Box, len(c.boxes))
	copy(out, c.boxes)
	return out
}

// Progress returns how many items have been submitted.
func (c *Container) Progress() (submitted, total int) {
	for _, b := range c.boxes {
		if b.State() == box.Submitted {
			submitted++
		}
	}
	return submitted, len(c.boxes)
}

// Handlers are the actions of a single item. They only ever touch the box
// they were bound to.
type Handlers struct {
	Index    int
	SetLabel func(ctx context.Context, label string, v annotation.Value) (box.Outcome, error)
	Submit   func(ctx context.Context) (box.Outcome, error)
}

// Handlers returns the handlers bound to item i.
func (c *Container) Handlers(i int) (Handlers, bool) {
	b, ok := c.Item(i)
	if !ok {
		return Handlers{}, false
	}
	return Handlers{
		Index:    i,
		SetLabel: b.SetLabel,
		Submit:   b.Submit,
	}, true
}

// View builds the page view for the whole batch. actionBase maps an item
// index to the URL its forms post to.
func (c *Container) View(title string, actionBase func(i int) string) render.PageView {
	v := render.PageView{Title: title}
	for i, b := range c.boxes {
		v.Boxes = append(v.Boxes, render.NewBoxView(b.Config(), b.Snapshot(), actionBase(i)))
	}
	v.Submitted, v.Total = c.Progress()
	return v
}
