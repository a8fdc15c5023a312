package submit

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"annobox/pkg/annotation"
)

func testPayload(t *testing.T) *annotation.Payload {
	t.Helper()
	anno := annotation.NewWorkingAnnotation()
	anno.Set("spam", annotation.Positive)
	p, err := annotation.NewPayload(annotation.Request{
		Text:  "win a prize",
		Meta:  map[string]string{"domain": "example.com"},
		Fname: "f.jsonl",
		Extra: map[string]any{"task_id": float64(3)},
	}, anno)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestSendPostsPayload(t *testing.T) {
	var gotBody []byte
	var gotHeader http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != Path {
			http.Error(w, "wrong route", http.StatusNotFound)
			return
		}
		gotHeader = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"redirect": "/next"}`)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL + "/"})
	redirect, err := c.Submit(context.Background(), testPayload(t))
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if want := srv.URL + "/next"; redirect != want {
		t.Errorf("redirect = %q, want %q", redirect, want)
	}
	if ct := gotHeader.Get("Content-Type"); ct != "application/json;charset=UTF-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if gotHeader.Get("X-Request-Id") == "" {
		t.Error("missing X-Request-Id")
	}

	decoded, err := annotation.DecodePayload(gotBody)
	if err != nil {
		t.Fatalf("server could not decode body: %v", err)
	}
	if diff := cmp.Diff(map[string]annotation.Value{"spam": annotation.Positive}, decoded.Annotation.Labels); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}
	if decoded.Request.Text != "win a prize" || decoded.Request.Extra["task_id"] != json.Number("3") {
		t.Errorf("request fields not preserved: %+v", decoded.Request)
	}
}

func TestSendNoRedirect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	redirect, err := NewClient(ClientConfig{BaseURL: srv.URL}).Submit(context.Background(), testPayload(t))
	if err != nil || redirect != "" {
		t.Fatalf("Submit() = %q, %v; want empty redirect", redirect, err)
	}
}

func TestSendErrors(t *testing.T) {
	tests := []struct {
		name         string
		handler      http.HandlerFunc
		wantNetwork  bool
		wantProtocol bool
	}{
		{
			name: "malformed json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, `<html>login</html>`)
			},
			wantProtocol: true,
		},
		{
			name: "empty body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			},
			wantProtocol: true,
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "db down", http.StatusInternalServerError)
			},
			wantNetwork: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := NewClient(ClientConfig{BaseURL: srv.URL}).Send(context.Background(), testPayload(t))
			var netErr *NetworkError
			var protoErr *ProtocolError
			if got := errors.As(err, &netErr); got != tt.wantNetwork {
				t.Errorf("NetworkError = %v, want %v (err = %v)", got, tt.wantNetwork, err)
			}
			if got := errors.As(err, &protoErr); got != tt.wantProtocol {
				t.Errorf("ProtocolError = %v, want %v (err = %v)", got, tt.wantProtocol, err)
			}
		})
	}
}

func TestSendUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(ClientConfig{BaseURL: url}).Send(context.Background(), testPayload(t))
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("err = %v, want NetworkError", err)
	}
	if !IsRetryable(err) {
		t.Error("unreachable server should be retryable")
	}
}

func TestRetryPolicy(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, `{"redirect": "/after-retry"}`)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{
		BaseURL: srv.URL,
		Retry:   RetryPolicy{Attempts: 3, Delay: time.Millisecond},
	})
	resp, err := c.Send(context.Background(), testPayload(t))
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if resp.Redirect != srv.URL+"/after-retry" {
		t.Errorf("redirect = %q", resp.Redirect)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestRetrySkipsProtocolErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		io.WriteString(w, `not json`)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{
		BaseURL: srv.URL,
		Retry:   RetryPolicy{Attempts: 5, Delay: time.Millisecond},
	})
	_, err := c.Send(context.Background(), testPayload(t))
	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("err = %v, want ProtocolError", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestDefaultSendsOnce(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := DefaultClientConfig()
	cfg.BaseURL = srv.URL
	if _, err := NewClient(cfg).Send(context.Background(), testPayload(t)); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestResolveRedirect(t *testing.T) {
	base := "http://annotate.internal:5000/tasks/receive_annotation"
	tests := []struct {
		redirect string
		want     string
	}{
		{"", ""},
		{"/tasks/annotate/7?ar_id=abc", "http://annotate.internal:5000/tasks/annotate/7?ar_id=abc"},
		{"show/7", "http://annotate.internal:5000/tasks/show/7"},
		{"https://elsewhere.example/next", "https://elsewhere.example/next"},
	}
	for _, tt := range tests {
		if got := ResolveRedirect(base, tt.redirect); got != tt.want {
			t.Errorf("ResolveRedirect(%q) = %q, want %q", tt.redirect, got, tt.want)
		}
	}
	if got := ResolveRedirect("", "/next"); got != "/next" {
		t.Errorf("no base: got %q", got)
	}
}
