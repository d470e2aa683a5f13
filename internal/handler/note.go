package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/filamentory/filamentory/internal/auth"
	"github.com/filamentory/filamentory/internal/model"
	"github.com/filamentory/filamentory/internal/store"
	"github.com/filamentory/filamentory/internal/websocket"
)

type NoteHandler struct {
	notes  *store.NoteStore
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewNoteHandler(ns *store.NoteStore, hub *websocket.Hub, logger *slog.Logger) *NoteHandler {
	return &NoteHandler{notes: ns, hub: hub, logger: logger.With("component", "note_handler")}
}

func (h *NoteHandler) broadcast(userID string, msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(userID, msg)
	}
}

type noteRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Category string `json:"category"`
}

func (req *noteRequest) validate() string {
	req.Title = strings.TrimSpace(req.Title)
	req.Category = strings.TrimSpace(req.Category)
	if req.Title == "" {
		return "title is required"
	}
	if req.Category == "" {
		req.Category = "general"
	}
	return ""
}

func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if msg := req.validate(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	userID := auth.UserID(r.Context())
	note, err := h.notes.Create(userID, req.Title, req.Content, req.Category)
	if err != nil {
		h.logger.Error("create note", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create note"})
		return
	}

	h.broadcast(userID, websocket.NewMessage("note", "created", note.ID))
	writeJSON(w, http.StatusCreated, note)
}

func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	notes, err := h.notes.List(userID, r.URL.Query().Get("category"))
	if err != nil {
		h.logger.Error("list notes", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list notes"})
		return
	}
	if notes == nil {
		notes = []model.Note{}
	}
	writeJSON(w, http.StatusOK, notes)
}

func (h *NoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	note, err := h.notes.GetByID(r.PathValue("id"), userID)
	if err != nil {
		h.logger.Error("get note", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get note"})
		return
	}
	if note == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "note not found"})
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func (h *NoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	id := r.PathValue("id")

	existing, err := h.notes.GetByID(id, userID)
	if err != nil {
		h.logger.Error("get note", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get note"})
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "note not found"})
		return
	}

	var req noteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if msg := req.validate(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	note, err := h.notes.Update(id, userID, req.Title, req.Content, req.Category)
	if err != nil {
		h.logger.Error("update note", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update note"})
		return
	}

	h.broadcast(userID, websocket.NewMessage("note", "updated", note.ID))
	writeJSON(w, http.StatusOK, note)
}

func (h *NoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	id := r.PathValue("id")

	deleted, err := h.notes.Delete(id, userID)
	if err != nil {
		h.logger.Error("delete note", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete note"})
		return
	}
	if !deleted {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "note not found"})
		return
	}

	h.broadcast(userID, websocket.NewMessage("note", "deleted", id))
	writeJSON(w, http.StatusOK, map[string]string{"message": "Note deleted"})
}
