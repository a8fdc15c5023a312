package annotation

import "fmt"

// Request is the item shown to the operator. It is never mutated once a
// box has been built from it.
//
// Fields the server sends that are not modelled here (task ids, entity
// keys, ...) are kept in Extra and written back unchanged on submit.
type Request struct {
	Text       string
	Tokens     []string
	Matches    []Match
	Meta       map[string]string
	Fname      string
	LineNumber int
	Score      float64

	// PatternInfo is the pattern matcher's {tokens, matches} object. When
	// the request arrived with one, the original also stays in
	// Extra["pattern_info"] and is what gets written back.
	PatternInfo *PatternInfo

	Extra map[string]any
}

// PatternInfo is tokenized text with the token intervals a search hit.
type PatternInfo struct {
	Tokens  []string `json:"tokens"`
	Matches []Match  `json:"matches"`
}

// requestJSON is the wire form of the modelled fields.
type requestJSON struct {
	Text        string            `json:"text"`
	Tokens      []string          `json:"tokens"`
	Matches     []Match           `json:"matches"`
	Meta        map[string]string `json:"meta"`
	Fname       string            `json:"fname"`
	LineNumber  int               `json:"line_number"`
	Score       float64           `json:"score"`
	PatternInfo *PatternInfo      `json:"pattern_info"`
}

const patternInfoKey = "pattern_info"

// requestKeys are moved out of Extra on decode. pattern_info is not among
// them so that it round-trips verbatim, match terms included.
var requestKeys = []string{"text", "tokens", "matches", "meta", "fname", "line_number", "score"}

// Pattern returns the tokens and matches to render: the flat fields when
// set, otherwise PatternInfo's.
func (r Request) Pattern() ([]string, []Match) {
	if r.Tokens == nil && r.PatternInfo != nil {
		return r.PatternInfo.Tokens, r.PatternInfo.Matches
	}
	return r.Tokens, r.Matches
}

// HasPattern reports whether the request carries tokenized match data.
func (r Request) HasPattern() bool {
	tokens, _ := r.Pattern()
	return len(tokens) > 0
}

// IsMatch reports whether token i lies inside any match interval.
func (r Request) IsMatch(i int) bool {
	_, matches := r.Pattern()
	for _, m := range matches {
		if m.Contains(i) {
			return true
		}
	}
	return false
}

// fields flattens the request into a generic object. Modelled fields take
// precedence over Extra entries with the same key. Text, fname, line_number
// and score are always written, zero values included; tokens, matches and
// meta only when present.
func (r Request) fields() map[string]any {
	out := make(map[string]any, len(r.Extra)+len(requestKeys))
	for k, v := range r.Extra {
		out[k] = v
	}
	out["text"] = r.Text
	out["fname"] = r.Fname
	out["line_number"] = r.LineNumber
	out["score"] = r.Score
	if r.Tokens != nil {
		out["tokens"] = r.Tokens
	}
	if r.Matches != nil {
		out["matches"] = r.Matches
	}
	if r.Meta != nil {
		out["meta"] = r.Meta
	}
	if _, ok := out[patternInfoKey]; !ok && r.PatternInfo != nil {
		out[patternInfoKey] = r.PatternInfo
	}
	return out
}

func (r Request) MarshalJSON() ([]byte, error) {
	return codec.Marshal(r.fields())
}

func (r *Request) UnmarshalJSON(data []byte) error {
	var known requestJSON
	if err := codec.Unmarshal(data, &known); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	var all map[string]any
	if err := codec.Unmarshal(data, &all); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	for _, k := range requestKeys {
		delete(all, k)
	}
	if len(all) == 0 {
		all = nil
	}

	*r = Request{
		Text:        known.Text,
		Tokens:      known.Tokens,
		Matches:     known.Matches,
		Meta:        known.Meta,
		Fname:       known.Fname,
		LineNumber:  known.LineNumber,
		Score:       known.Score,
		PatternInfo: known.PatternInfo,
		Extra:       all,
	}
	return nil
}

// Clone returns a deep copy made through the wire form, so the copy shares
// nothing with r.
func (r Request) Clone() (Request, error) {
	b, err := codec.Marshal(r)
	if err != nil {
		return Request{}, fmt.Errorf("copy request: %w", err)
	}
	var out Request
	if err := codec.Unmarshal(b, &out); err != nil {
		return Request{}, fmt.Errorf("copy request: %w", err)
	}
	return out, nil
}
