package container

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"annobox/pkg/annotation"
	"annobox/pkg/box"
)

func testBatch() annotation.Batch {
	return annotation.Batch{
		{Request: annotation.Request{Text: "first"}, SuggestedLabels: []string{"spam"}, Testing: true},
		{Request: annotation.Request{Text: "second"}, SuggestedLabels: []string{"spam", "ads"}, Testing: true},
		{Request: annotation.Request{Text: "third"}, SuggestedLabels: []string{"ads", "spam"}, Testing: true},
	}
}

func TestNewKeepsOrderAndIndex(t *testing.T) {
	c, err := New(testBatch())
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for i, b := range c.Items() {
		if b.Index() != i {
			t.Errorf("box %d has index %d", i, b.Index())
		}
		got = append(got, b.Config().Request.Text)
	}
	if diff := cmp.Diff([]string{"first", "second", "third"}, got); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if _, ok := c.Item(3); ok {
		t.Error("Item(3) should not exist")
	}
}

func TestNewRejectsBadItem(t *testing.T) {
	batch := testBatch()
	batch[1].SuggestedLabels = nil
	if _, err := New(batch); err == nil {
		t.Fatal("expected error for item without labels")
	}
}

func TestHandlersAreIsolated(t *testing.T) {
	c, err := New(testBatch())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	h1, _ := c.Handlers(1)
	h2, _ := c.Handlers(2)
	if _, err := h1.SetLabel(ctx, "spam", annotation.Positive); err != nil {
		t.Fatal(err)
	}
	if _, err := h2.SetLabel(ctx, "spam", annotation.Negative); err != nil {
		t.Fatal(err)
	}

	b1, _ := c.Item(1)
	b2, _ := c.Item(2)
	b0, _ := c.Item(0)
	if v, _ := b1.Snapshot().Value("spam"); v != annotation.Positive {
		t.Errorf("item 1 spam = %v", v)
	}
	if v, _ := b2.Snapshot().Value("spam"); v != annotation.Negative {
		t.Errorf("item 2 spam = %v", v)
	}
	if b0.Snapshot().Annotation.Len() != 0 {
		t.Error("item 0 was modified")
	}
}

func TestProgressAndView(t *testing.T) {
	c, err := New(testBatch())
	if err != nil {
		t.Fatal(err)
	}
	h0, _ := c.Handlers(0)
	if _, err := h0.SetLabel(context.Background(), "spam", annotation.Positive); err != nil {
		t.Fatal(err)
	}

	submitted, total := c.Progress()
	if submitted != 1 || total != 3 {
		t.Errorf("Progress() = %d, %d; want 1, 3", submitted, total)
	}

	v := c.View("t", func(i int) string { return fmt.Sprintf("/items/%d", i) })
	if len(v.Boxes) != 3 || v.Submitted != 1 || v.Total != 3 {
		t.Fatalf("View() = %+v", v)
	}
	if v.Boxes[0].State != box.Submitted.String() || v.Boxes[2].ActionBase != "/items/2" {
		t.Errorf("unexpected box views: %+v", v.Boxes)
	}
	if v.Boxes[0].ShowSave || !v.Boxes[1].ShowSave {
		t.Error("save button visibility does not follow label count")
	}
}
