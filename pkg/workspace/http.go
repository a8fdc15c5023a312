package workspace

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"

	"annobox/pkg/annotation"
	"annobox/pkg/box"
	"annobox/pkg/submit"
)

// ErrNoItem is returned for an index outside the batch.
var ErrNoItem = errors.New("no such item")

func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handlePage)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	// Standard Methods
	mux.HandleFunc("GET /api/items", s.handleListItems)
	mux.HandleFunc("GET /api/items/{index}", s.handleGetItem)
	// Custom Methods - dispatched via POST /api/items/{index} because {index}:suffix is not supported by ServeMux
	mux.HandleFunc("POST /api/items/{index}", s.handleItemOps)

	mux.HandleFunc("GET /api/config", s.handleGetConfig)
	if s.hub != nil {
		mux.Handle("GET /api/events", s.hub)
	}
}

func (s *Service) handlePage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.RenderPage(w); err != nil {
		s.logger.Error("render page", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Service) handleListItems(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ListItems(r.Context()))
}

// handleGetItem handles GET /api/items/{index}
func (s *Service) handleGetItem(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "index must be an integer")
		return
	}
	item, err := s.GetItem(r.Context(), index)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// handleItemOps dispatches custom POST methods
func (s *Service) handleItemOps(w http.ResponseWriter, r *http.Request) {
	raw, op, _ := strings.Cut(r.PathValue("index"), ":")
	index, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "index must be an integer")
		return
	}

	switch op {
	case "setLabel":
		s.handleSetLabel(w, r, index)
	case "submit":
		s.handleSubmit(w, r, index)
	default:
		writeError(w, http.StatusNotFound, "Unknown method")
	}
}

// handleSetLabel handles POST /api/items/{index}:setLabel
func (s *Service) handleSetLabel(w http.ResponseWriter, r *http.Request, index int) {
	req, err := decodeSetLabel(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	resp, err := s.SetLabel(r.Context(), index, req)
	s.respond(w, r, index, resp, err)
}

// handleSubmit handles POST /api/items/{index}:submit
func (s *Service) handleSubmit(w http.ResponseWriter, r *http.Request, index int) {
	resp, err := s.Submit(r.Context(), index)
	s.respond(w, r, index, resp, err)
}

// respond answers JSON callers with the action result and browser form
// posts with a redirect: to the server's next page on success, back to the
// item otherwise so the page can show the error and a retry button.
func (s *Service) respond(w http.ResponseWriter, r *http.Request, index int, resp *ActionResponse, err error) {
	if wantsJSON(r) {
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	back := fmt.Sprintf("/#item-%d", index)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusBadRequest || status == http.StatusNotFound {
			http.Error(w, err.Error(), status)
			return
		}
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}
	if resp.Redirect != "" && !resp.DryRun {
		http.Redirect(w, r, resp.Redirect, http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}

func (s *Service) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Config{
		SessionID: s.sessionID,
		Title:     s.Config.Title,
		ServerURL: s.Config.ServerURL,
		Items:     s.items.Len(),
		Events:    s.hub != nil,
	})
}

func decodeSetLabel(r *http.Request) (SetLabelRequest, error) {
	var req SetLabelRequest
	if isJSON(r) {
		if err := sonic.ConfigStd.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, err
		}
		return req, nil
	}
	if err := r.ParseForm(); err != nil {
		return req, err
	}
	req.Label = r.PostForm.Get("label")
	v, err := annotation.ParseValue(r.PostForm.Get("value"))
	if err != nil {
		return req, err
	}
	req.Value = int(v)
	return req, nil
}

func statusFor(err error) int {
	var netErr *submit.NetworkError
	var protoErr *submit.ProtocolError
	switch {
	case errors.Is(err, ErrNoItem):
		return http.StatusNotFound
	case errors.Is(err, annotation.ErrUnknownLabel), errors.Is(err, annotation.ErrInvalidValue):
		return http.StatusBadRequest
	case errors.Is(err, box.ErrSubmitted):
		return http.StatusConflict
	case errors.As(err, &netErr), errors.As(err, &protoErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func isJSON(r *http.Request) bool {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mt == "application/json"
}

func wantsJSON(r *http.Request) bool {
	return isJSON(r) || strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	sonic.ConfigStd.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
