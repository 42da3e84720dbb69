package handlers

import (
	"net/http"

	"github.com/findosh/shiller/internal/models"
)

type traineeRequest struct {
	TraineeName *string `json:"traineeName"`
}

type sensorsRequest struct {
	SensorsOn *bool `json:"sensorsOn"`
}

type joinRequest struct {
	Code string `json:"code"`
}

// ListSessions returns the trainer's sessions, newest first
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.sessions.ListSessions(r.Context(), h.trainer(r).ID)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	if sessions == nil {
		sessions = []*models.Session{}
	}
	h.json(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
}

// CreateSession opens a new session
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req traineeRequest
	if !h.decode(w, r, &req, false) {
		return
	}

	session, err := h.sessions.CreateSession(r.Context(), h.trainer(r).ID, req.TraineeName)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.json(w, http.StatusCreated, map[string]interface{}{"session": session})
}

// RenameTrainee changes the trainee name of an open session
func (h *Handler) RenameTrainee(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	var req traineeRequest
	if !h.decode(w, r, &req, true) {
		return
	}

	res, err := h.sessions.RenameTrainee(r.Context(), id, h.trainer(r).ID, req.TraineeName)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	if h.writeStatus(w, res) {
		return
	}
	h.json(w, http.StatusOK, map[string]interface{}{"session": res.Session})
}

// CloseSession ends a session; closing twice is not an error
func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	res, err := h.sessions.CloseSession(r.Context(), id, h.trainer(r).ID)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	if h.writeStatus(w, res) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateValues pushes new vitals to the session's displays
func (h *Handler) UpdateValues(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	var input models.VitalsInput
	if !h.decode(w, r, &input, true) {
		return
	}

	res, err := h.sessions.UpdateValues(r.Context(), id, h.trainer(r).ID, input)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	if h.writeStatus(w, res) {
		return
	}
	h.json(w, http.StatusOK, map[string]interface{}{
		"ok":        true,
		"updatedAt": res.Timestamp,
	})
}

// SetSensors toggles the sensors flag of a session
func (h *Handler) SetSensors(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	var req sensorsRequest
	if !h.decode(w, r, &req, true) {
		return
	}
	if req.SensorsOn == nil {
		h.jsonError(w, "sensorsOn is required", http.StatusBadRequest)
		return
	}

	res, err := h.sessions.SetSensorsFlag(r.Context(), id, h.trainer(r).ID, *req.SensorsOn)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	if h.writeStatus(w, res) {
		return
	}
	h.json(w, http.StatusOK, map[string]interface{}{"session": res.Session})
}

// JoinSession resolves a join code for a trainee display; no login needed
func (h *Handler) JoinSession(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if !h.decode(w, r, &req, true) {
		return
	}

	res, err := h.sessions.JoinByCode(r.Context(), req.Code)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	if h.writeStatus(w, res) {
		return
	}
	h.json(w, http.StatusOK, map[string]interface{}{"session": res.Snapshot})
}
