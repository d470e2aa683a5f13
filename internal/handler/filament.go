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

type FilamentHandler struct {
	filaments *store.FilamentStore
	hub       *websocket.Hub
	logger    *slog.Logger
}

func NewFilamentHandler(fs *store.FilamentStore, hub *websocket.Hub, logger *slog.Logger) *FilamentHandler {
	return &FilamentHandler{filaments: fs, hub: hub, logger: logger.With("component", "filament_handler")}
}

func (h *FilamentHandler) broadcast(userID string, msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(userID, msg)
	}
}

type filamentRequest struct {
	Brand        string  `json:"brand"`
	FilamentType string  `json:"filamentType"`
	TypeModifier *string `json:"typeModifier"`
	Color        string  `json:"color"`
	Amount       int64   `json:"amount"`
	Cost         float64 `json:"cost"`
	Currency     string  `json:"currency"`
}

func (req *filamentRequest) validate() string {
	req.Brand = strings.TrimSpace(req.Brand)
	req.FilamentType = strings.TrimSpace(req.FilamentType)
	req.Color = strings.TrimSpace(req.Color)
	if req.Brand == "" || req.FilamentType == "" || req.Color == "" {
		return "brand, filamentType, and color are required"
	}
	if req.Amount < 0 {
		return "amount must not be negative"
	}
	if req.Cost < 0 {
		return "cost must not be negative"
	}
	if !model.ValidCurrencies[req.Currency] {
		return "currency must be SEK, EUR, or USD"
	}
	return ""
}

func (h *FilamentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req filamentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if msg := req.validate(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	userID := auth.UserID(r.Context())
	filament, err := h.filaments.Create(userID, req.Brand, req.FilamentType, req.TypeModifier, req.Color, req.Amount, req.Cost, req.Currency)
	if err != nil {
		h.logger.Error("create filament", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create filament"})
		return
	}

	h.broadcast(userID, websocket.NewMessage("filament", "created", filament.ID))
	writeJSON(w, http.StatusCreated, filament)
}

func (h *FilamentHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	filaments, err := h.filaments.List(userID)
	if err != nil {
		h.logger.Error("list filaments", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list filaments"})
		return
	}
	if filaments == nil {
		filaments = []model.Filament{}
	}
	writeJSON(w, http.StatusOK, filaments)
}

func (h *FilamentHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	filament, err := h.filaments.GetByID(r.PathValue("id"), userID)
	if err != nil {
		h.logger.Error("get filament", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get filament"})
		return
	}
	if filament == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "filament not found"})
		return
	}
	writeJSON(w, http.StatusOK, filament)
}

func (h *FilamentHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	id := r.PathValue("id")

	existing, err := h.filaments.GetByID(id, userID)
	if err != nil {
		h.logger.Error("get filament", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get filament"})
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "filament not found"})
		return
	}

	var req filamentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if msg := req.validate(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	filament, err := h.filaments.Update(id, userID, req.Brand, req.FilamentType, req.TypeModifier, req.Color, req.Amount, req.Cost, req.Currency)
	if err != nil {
		h.logger.Error("update filament", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update filament"})
		return
	}

	h.broadcast(userID, websocket.NewMessage("filament", "updated", filament.ID))
	writeJSON(w, http.StatusOK, filament)
}

type reduceRequest struct {
	Amount int64 `json:"amount"`
}

// Reduce subtracts used grams from a spool after a print.
func (h *FilamentHandler) Reduce(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	id := r.PathValue("id")

	var req reduceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.Amount <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "amount must be positive"})
		return
	}

	existing, err := h.filaments.GetByID(id, userID)
	if err != nil {
		h.logger.Error("get filament", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get filament"})
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "filament not found"})
		return
	}

	filament, err := h.filaments.ReduceAmount(id, userID, req.Amount)
	if err != nil {
		h.logger.Error("reduce filament", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to reduce filament"})
		return
	}

	h.broadcast(userID, websocket.NewMessage("filament", "updated", filament.ID))
	writeJSON(w, http.StatusOK, filament)
}

func (h *FilamentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	id := r.PathValue("id")

	deleted, err := h.filaments.Delete(id, userID)
	if err != nil {
		h.logger.Error("delete filament", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete filament"})
		return
	}
	if !deleted {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "filament not found"})
		return
	}

	h.broadcast(userID, websocket.NewMessage("filament", "deleted", id))
	writeJSON(w, http.StatusOK, map[string]string{"message": "Filament deleted"})
}

func (h *FilamentHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	stats, err := h.filaments.Stats(userID)
	if err != nil {
		h.logger.Error("filament stats", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to compute stats"})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
