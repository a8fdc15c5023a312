package annotation

import (
	"errors"
	"fmt"
)

// Payload is the body posted to the annotation server: every request field
// plus the operator's annotation under "annotation".
type Payload struct {
	Request    Request
	Annotation *WorkingAnnotation
}

const annotationKey = "annotation"

// NewPayload deep-copies req and attaches a copy of anno.
func NewPayload(req Request, anno *WorkingAnnotation) (*Payload, error) {
	cp, err := req.Clone()
	if err != nil {
		return nil, err
	}
	// A stale annotation carried in the request must not shadow the
	// current one.
	delete(cp.Extra, annotationKey)
	return &Payload{Request: cp, Annotation: anno.Clone()}, nil
}

func (p Payload) MarshalJSON() ([]byte, error) {
	m := p.Request.fields()
	anno := p.Annotation
	if anno == nil {
		anno = NewWorkingAnnotation()
	}
	m[annotationKey] = anno
	return codec.Marshal(m)
}

func (p *Payload) UnmarshalJSON(data []byte) error {
	var parts map[string]any
	if err := codec.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	raw, ok := parts[annotationKey]
	if !ok {
		return errors.New("decode payload: missing annotation")
	}
	delete(parts, annotationKey)

	annoBytes, err := codec.Marshal(raw)
	if err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	anno := NewWorkingAnnotation()
	if err := codec.Unmarshal(annoBytes, anno); err != nil {
		return fmt.Errorf("decode payload annotation: %w", err)
	}
	if anno.Labels == nil {
		anno.Labels = make(map[string]Value)
	}

	reqBytes, err := codec.Marshal(parts)
	if err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	var req Request
	if err := codec.Unmarshal(reqBytes, &req); err != nil {
		return err
	}

	p.Request = req
	p.Annotation = anno
	return nil
}

// DecodePayload parses a payload as the receiving server would.
func DecodePayload(data []byte) (*Payload, error) {
	var p Payload
	if err := codec.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
