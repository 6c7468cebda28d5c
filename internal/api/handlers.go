// Meet Tracker - Presence Session Tracking for Recurring Meeting Rooms
// Copyright 2026 Sarmad Makhdoom
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sarmadmakhdoom/meet-tracker-sub000

package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"github.com/sarmadmakhdoom/meet-tracker-sub000/internal/aggregate"
	"github.com/sarmadmakhdoom/meet-tracker-sub000/internal/auth"
	"github.com/sarmadmakhdoom/meet-tracker-sub000/internal/events"
	"github.com/sarmadmakhdoom/meet-tracker-sub000/internal/logging"
	"github.com/sarmadmakhdoom/meet-tracker-sub000/internal/models"
	"github.com/sarmadmakhdoom/meet-tracker-sub000/internal/store"
)

const maxBodyBytes = 1 << 20 // 1 MiB

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Err(err).Msg("Failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errorResponse{Error: msg})
}

// respondForErr maps domain errors onto status codes.
func respondForErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, events.ErrUnknownEvent),
		errors.Is(err, models.ErrInvalidRecord):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrStoreUnavailable):
		respondError(w, http.StatusServiceUnavailable, "storage unavailable")
	default:
		logging.Err(err).Msg("Request failed")
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	return json.Unmarshal(body, v)
}

func (rt *Router) handleHealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) handleHealthReady(w http.ResponseWriter, r *http.Request) {
	if !rt.status.Available() {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "degraded",
			"storage": "unavailable",
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "storage": "ok"})
}

func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	storage := "ok"
	if !rt.status.Available() {
		storage = "unavailable"
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"storage":         storage,
		"active_sessions": len(rt.controller.ActiveSnapshot()),
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func (rt *Router) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !rt.authMgr.Enabled() {
		respondError(w, http.StatusNotFound, "authentication disabled")
		return
	}
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	token, err := rt.authMgr.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		respondForErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, loginResponse{Token: token})
}

// handleEvent is the single protocol endpoint: a tagged envelope in,
// the operation's result out.
func (rt *Router) handleEvent(w http.ResponseWriter, r *http.Request) {
	var env events.Envelope
	if err := decodeBody(r, &env); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, err := rt.dispatcher.DispatchEnvelope(r.Context(), env)
	if err != nil {
		respondForErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (rt *Router) handleActiveSessions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, rt.controller.ActiveSnapshot())
}

func (rt *Router) handleAggregatedMeetings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := aggregate.Filter{
		MeetingID:  q.Get("meeting_id"),
		FromDate:   q.Get("from"),
		ToDate:     q.Get("to"),
		ActiveOnly: q.Get("active_only") == "true",
	}
	rows, err := rt.engine.AggregatedMeetings(r.Context(), filter)
	if err != nil {
		respondForErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

func (rt *Router) handleForceEndAll(w http.ResponseWriter, r *http.Request) {
	ended, err := rt.controller.ForceEndAll(r.Context())
	if err != nil {
		respondForErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"ended": ended})
}

func (rt *Router) handleDeleteMeeting(w http.ResponseWriter, r *http.Request) {
	meetingID := chi.URLParam(r, "meetingID")
	if meetingID == "" {
		respondError(w, http.StatusBadRequest, "meeting id required")
		return
	}
	if err := rt.controller.DeleteMeeting(r.Context(), meetingID); err != nil {
		respondForErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (rt *Router) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "session id required")
		return
	}
	if err := rt.controller.DeleteSession(r.Context(), sessionID); err != nil {
		respondForErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}
