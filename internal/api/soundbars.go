package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-ambeo/internal/audit"
	bridge "github.com/nerrad567/gray-logic-ambeo/internal/bridges/ambeo"
	"github.com/nerrad567/gray-logic-ambeo/internal/device"
)

// commandSource marks commands that arrived through this API.
const commandSource = "api"

// soundbarView is a bridge summary plus the persisted device record.
type soundbarView struct {
	bridge.SoundbarStatus
	Serial   string     `json:"serial,omitempty"`
	Firmware string     `json:"firmware,omitempty"`
	LastSeen *time.Time `json:"last_seen,omitempty"`
}

// commandRequest is the body of POST /soundbars/{id}/commands.
type commandRequest struct {
	Command    string         `json:"command"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// handleListSoundbars returns every configured soundbar in config order.
func (s *Server) handleListSoundbars(w http.ResponseWriter, r *http.Request) {
	statuses := s.bridge.Soundbars()
	soundbars := make([]soundbarView, 0, len(statuses))
	for _, st := range statuses {
		soundbars = append(soundbars, s.view(r.Context(), st))
	}
	writeJSON(w, http.StatusOK, map[string]any{"soundbars": soundbars, "count": len(soundbars)})
}

// handleGetSoundbar returns a single soundbar with its entities.
func (s *Server) handleGetSoundbar(w http.ResponseWriter, r *http.Request) {
	st, err := s.bridge.Soundbar(chi.URLParam(r, "id"))
	if err != nil {
		writeBridgeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view(r.Context(), st))
}

// handleGetState returns the last polled state without touching the device.
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	state, err := s.bridge.State(chi.URLParam(r, "id"))
	if err != nil {
		writeBridgeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// handleRefresh polls the soundbar now and returns the fresh state.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.refresh)
	defer cancel()

	state, err := s.bridge.Refresh(ctx, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			writeError(w, http.StatusGatewayTimeout, ErrCodeUnavailable, "refresh timed out")
			return
		}
		writeBridgeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// handleCommand executes a command through the bridge and returns its ack.
// The ack is also published on the soundbar's ack topic.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Command == "" {
		writeBadRequest(w, "command is required")
		return
	}

	ack := s.bridge.ExecuteCommand(r.Context(), bridge.CommandMessage{
		ID:         uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		SoundbarID: chi.URLParam(r, "id"),
		Command:    req.Command,
		Parameters: req.Parameters,
		Source:     commandSource,
	})

	status := http.StatusOK
	if ack.Error != nil {
		status = ackHTTPStatus(ack.Error.Code)
	}
	writeJSON(w, status, ack)
}

// handleCommandHistory lists recorded commands for one soundbar, newest first.
//
// Query parameters: command, status, limit, offset.
func (s *Server) handleCommandHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.bridge.Soundbar(id); err != nil {
		writeBridgeError(w, err)
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		SoundbarID: id,
		Command:    q.Get("command"),
		Status:     q.Get("status"),
	}
	var err error
	if filter.Limit, err = queryInt(q.Get("limit")); err != nil {
		writeBadRequest(w, "limit must be an integer")
		return
	}
	if filter.Offset, err = queryInt(q.Get("offset")); err != nil {
		writeBadRequest(w, "offset must be an integer")
		return
	}

	result, err := s.history.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing command history", "soundbar", id, "error", err)
		writeInternalError(w, "failed to list command history")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// queryInt parses an optional integer query parameter. Empty means zero.
func queryInt(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

// handleRequest executes a bridge request such as set_endpoint.
func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	var req bridge.RequestMessage
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Action == "" {
		writeBadRequest(w, "action is required")
		return
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now().UTC()
	}

	resp := s.bridge.HandleRequest(r.Context(), req)

	status := http.StatusOK
	if resp.Error != nil {
		status = ackHTTPStatus(resp.Error.Code)
	}
	writeJSON(w, status, resp)
}

// view joins the registry record when one exists. The registry only holds
// soundbars that have completed setup at least once.
func (s *Server) view(ctx context.Context, st bridge.SoundbarStatus) soundbarView {
	v := soundbarView{SoundbarStatus: st}
	if s.registry == nil {
		return v
	}

	rec, err := s.registry.GetSoundbar(ctx, st.ID)
	if err != nil {
		if !errors.Is(err, device.ErrSoundbarNotFound) {
			s.logger.Warn("reading soundbar record", "soundbar", st.ID, "error", err)
		}
		return v
	}
	v.Serial = rec.Serial
	v.Firmware = rec.Firmware
	v.LastSeen = rec.LastSeen
	return v
}
