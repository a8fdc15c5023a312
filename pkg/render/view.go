package render

import (
	"fmt"
	"html/template"
	"sort"

	"annobox/pkg/annotation"
	"annobox/pkg/box"
)

// Button classes, matching the Bootstrap markup the annotation pages use.
const (
	classYes   = "btn btn-success"
	classNo    = "btn btn-danger"
	classSkip  = "btn btn-secondary"
	classFaded = "btn btn-light text-muted faded"
)

// Meta keys that get their own rendering instead of a "key: value" line.
const (
	metaDomain   = "domain"
	metaImageURL = "image_url"
)

type TokenView struct {
	Text  string
	Match bool
}

type MetaLine struct {
	Key   string
	Value string
}

// ControlView is the button cluster for one label.
type ControlView struct {
	Label     string
	YesClass  string
	NoClass   string
	SkipClass string
	GuideID   string
	Guide     template.HTML
}

// BoxView is everything the box template needs for one item.
type BoxView struct {
	Index      int
	Fname      string
	LineNumber int
	Score      float64

	Domain   string
	ImageURL string
	Text     string
	Tokens   []TokenView
	Meta     []MetaLine

	Controls []ControlView
	ShowSave bool

	State    string
	Redirect string
	DryRun   bool
	Error    string

	// ActionBase is the URL prefix the forms post to; ":setLabel" and
	// ":submit" are appended.
	ActionBase string
}

func (v BoxView) Submitted() bool { return v.State == box.Submitted.String() }

// NewBoxView derives the view of one item from its config and current state.
func NewBoxView(cfg annotation.ItemConfig, snap box.Snapshot, actionBase string) BoxView {
	req := cfg.Request
	v := BoxView{
		Index:      snap.Index,
		Fname:      req.Fname,
		LineNumber: req.LineNumber,
		Score:      req.Score,
		Domain:     req.Meta[metaDomain],
		ImageURL:   req.Meta[metaImageURL],
		Text:       req.Text,
		ShowSave:   snap.Mode != box.Binary,
		State:      snap.State.String(),
		Redirect:   snap.Outcome.Redirect,
		DryRun:     snap.Outcome.DryRun,
		Error:      snap.Error,
		ActionBase: actionBase,
	}

	if req.HasPattern() {
		tokens, _ := req.Pattern()
		v.Tokens = make([]TokenView, len(tokens))
		for i, tok := range tokens {
			v.Tokens[i] = TokenView{Text: tok, Match: req.IsMatch(i)}
		}
	}

	keys := make([]string, 0, len(req.Meta))
	for k := range req.Meta {
		if k == metaDomain || k == metaImageURL {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v.Meta = append(v.Meta, MetaLine{Key: k, Value: req.Meta[k]})
	}

	for i, label := range cfg.SuggestedLabels {
		c := ControlView{
			Label:     label,
			YesClass:  classYes,
			NoClass:   classNo,
			SkipClass: classSkip,
			// Labels may hold spaces or punctuation; ids must be valid
			// selectors and unique across the page.
			GuideID: fmt.Sprintf("annotation_guide__%d_%d", snap.Index, i),
			// Guides are authored on the annotation server and may carry markup.
			Guide: template.HTML(cfg.Guides.For(label)),
		}
		if val, ok := snap.Value(label); ok {
			switch val {
			case annotation.Positive:
				c.NoClass, c.SkipClass = classFaded, classFaded
			case annotation.Negative:
				c.YesClass, c.SkipClass = classFaded, classFaded
			case annotation.NotSure:
				c.YesClass, c.NoClass = classFaded, classFaded
			}
		}
		v.Controls = append(v.Controls, c)
	}

	return v
}

// PageView is a whole batch.
type PageView struct {
	Title     string
	Submitted int
	Total     int
	Boxes     []BoxView
	// EventsURL, when set, is the websocket the page listens on for
	// progress updates.
	EventsURL string
}
