package handler

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/filamentory/filamentory/internal/backup"
	"github.com/filamentory/filamentory/internal/model"
	"github.com/filamentory/filamentory/internal/store"
)

type BackupHandler struct {
	manager *backup.Manager
	backups *store.BackupStore
	logger  *slog.Logger
}

func NewBackupHandler(m *backup.Manager, bs *store.BackupStore, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{manager: m, backups: bs, logger: logger.With("component", "backup_handler")}
}

// Run triggers an immediate backup.
func (h *BackupHandler) Run(w http.ResponseWriter, r *http.Request) {
	if !h.manager.Enabled() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "backups are not configured"})
		return
	}

	id, err := h.manager.RunNow(r.Context())
	if err != nil {
		h.logger.Error("run backup", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "backup failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id})
}

func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	backups, err := h.backups.List(50)
	if err != nil {
		h.logger.Error("list backups", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list backups"})
		return
	}
	if backups == nil {
		backups = []model.Backup{}
	}
	writeJSON(w, http.StatusOK, backups)
}

func (h *BackupHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.manager.Status())
}

// Download streams the encrypted backup file.
func (h *BackupHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	record, err := h.backups.GetByID(id)
	if err != nil {
		h.logger.Error("get backup", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get backup"})
		return
	}
	if record == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "backup not found"})
		return
	}

	body, size, err := h.manager.Download(r.Context(), id)
	if err != nil {
		h.logger.Error("download backup", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to download backup"})
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", record.Filename))
	if size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	io.Copy(w, body)
}
