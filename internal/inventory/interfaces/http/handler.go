package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"decoder-ledger/internal/audit"
	"decoder-ledger/internal/auth"
	"decoder-ledger/internal/inventory/application"
	inventory "decoder-ledger/internal/inventory/domain"
	"decoder-ledger/internal/inventory/importer"
)

const (
	inventoryPath  = "/api/v1/inventory"
	importPath     = "/api/v1/inventory/import"
	maxUploadBytes = 10 << 20
)

// Handler serves the room equipment inventory.
type Handler struct {
	service     *application.Service
	auditLogger audit.Logger
	logger      *zap.Logger
}

// NewHandler constructs a handler.
func NewHandler(service *application.Service, auditLogger audit.Logger, logger *zap.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("inventory handler: nil service")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, auditLogger: auditLogger, logger: logger}, nil
}

// ServeHTTP handles /api/v1/inventory and its subpaths.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == inventoryPath:
		switch r.Method {
		case http.MethodGet:
			h.handleList(w, r)
		case http.MethodPost:
			h.handleSave(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case r.URL.Path == importPath:
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleImport(w, r)
	case strings.HasPrefix(r.URL.Path, inventoryPath+"/"):
		id := strings.Trim(strings.TrimPrefix(r.URL.Path, inventoryPath+"/"), "/")
		if id == "" || strings.Contains(id, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Method != http.MethodDelete {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleDelete(w, r, id)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	listing, err := h.service.List(r.Context(), query.Get("search"), query.Get("type"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request) {
	var item inventory.Item
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	saved, err := h.service.Save(r.Context(), item)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.logAudit(r, "inventory.save", saved.ID, map[string]any{
		"room_number":    saved.RoomNumber,
		"equipment_type": saved.EquipmentType,
	})
	writeJSON(w, http.StatusOK, saved)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.logAudit(r, "inventory.delete", id, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "invalid upload", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	rows, err := h.service.Import(r.Context(), file)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.logAudit(r, "inventory.import", "", map[string]any{"file": header.Filename, "rows": rows})
	writeJSON(w, http.StatusOK, map[string]int{"imported": rows})
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, inventory.ErrItemNotFound):
		http.Error(w, "item not found", http.StatusNotFound)
	case errors.Is(err, inventory.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, importer.ErrUnreadable),
		errors.Is(err, importer.ErrHeaderNotFound),
		errors.Is(err, importer.ErrNoRows):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		h.logger.Error("inventory store failed", zap.Error(err))
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
	}
}

func (h *Handler) logAudit(r *http.Request, action, resourceID string, metadata map[string]any) {
	if h.auditLogger == nil {
		return
	}
	var meta json.RawMessage
	if metadata != nil {
		meta, _ = json.Marshal(metadata)
	}
	if err := h.auditLogger.Log(r.Context(), audit.Entry{
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "inventory_item",
		ResourceID:   resourceID,
		Metadata:     meta,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	}); err != nil {
		h.logger.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
