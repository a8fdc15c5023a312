package workspace

import "annobox/pkg/box"

// Item is the API view of one batch item.
type Item struct {
	box.Snapshot

	Text            string   `json:"text"`
	SuggestedLabels []string `json:"suggested_labels"`
}

// Config returns the server configuration.
type Config struct {
	SessionID string `json:"session_id"`
	Title     string `json:"title"`
	ServerURL string `json:"server_url"`
	Items     int    `json:"items"`
	Events    bool   `json:"events"`
}

// SetLabelRequest for POST /api/items/{index}:setLabel
// Sent as JSON or as form fields label/value.
type SetLabelRequest struct {
	Label string `json:"label"`
	Value int    `json:"value"`
}

// ActionResponse answers :setLabel and :submit when called with JSON.
type ActionResponse struct {
	Index    int       `json:"index"`
	State    box.State `json:"state"`
	Redirect string    `json:"redirect,omitempty"`
	DryRun   bool      `json:"dry_run,omitempty"`
}

// ErrorResponse is the JSON body of a failed API call.
type ErrorResponse struct {
	Error string `json:"error"`
}
