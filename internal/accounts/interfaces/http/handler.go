package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	accountapp "decoder-ledger/internal/accounts/application"
	accounts "decoder-ledger/internal/accounts/domain"
	"decoder-ledger/internal/audit"
	"decoder-ledger/internal/auth"
	"decoder-ledger/internal/expiry"
	reportapp "decoder-ledger/internal/reports/application"
)

const (
	accountsPath     = "/api/v1/accounts"
	propagationsPath = "/api/v1/propagations/"
	maxBodyBytes     = 1 << 20
)

// RowBuilder derives the device rows shown in the account list.
type RowBuilder interface {
	Rows(list []accounts.Account) []reportapp.Row
}

// Handler provides account HTTP endpoints.
type Handler struct {
	service     *accountapp.Service
	rows        RowBuilder
	auditLogger audit.Logger
	logger      *zap.Logger
}

// NewHandler constructs a handler.
func NewHandler(service *accountapp.Service, rows RowBuilder, auditLogger audit.Logger, logger *zap.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("accounts handler: nil service")
	}
	if rows == nil {
		return nil, errors.New("accounts handler: nil row builder")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, rows: rows, auditLogger: auditLogger, logger: logger}, nil
}

// ServeHTTP handles /api/v1/accounts, /api/v1/propagations and subroutes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == accountsPath:
		switch r.Method {
		case http.MethodGet:
			h.handleList(w, r)
		case http.MethodPost:
			h.handleCreate(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case strings.HasPrefix(r.URL.Path, accountsPath+"/"):
		h.handleAccountRoutes(w, r)
	case strings.HasPrefix(r.URL.Path, propagationsPath):
		h.handlePropagationRoutes(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleAccountRoutes(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, accountsPath+"/"), "/")
	parts := strings.Split(path, "/")

	switch {
	case len(parts) == 1 && parts[0] == "refresh":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleRefresh(w, r)
	case len(parts) == 1 && parts[0] == "emails":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleEmails(w, r)
	case len(parts) == 1 && parts[0] == "search":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleSearch(w, r)
	case len(parts) == 1 && parts[0] != "":
		switch r.Method {
		case http.MethodGet:
			h.handleGet(w, r, parts[0])
		case http.MethodDelete:
			h.handleDeleteAccount(w, r, parts[0])
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case (len(parts) == 3 || len(parts) == 4) && parts[1] == "devices":
		index, err := strconv.Atoi(parts[2])
		if err != nil {
			http.Error(w, "device index must be an integer", http.StatusBadRequest)
			return
		}
		if len(parts) == 4 {
			if parts[3] != "cutoff" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			if r.Method != http.MethodPut {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			h.handleCutoff(w, r, parts[0], index)
			return
		}
		switch r.Method {
		case http.MethodPut:
			h.handleUpdateDevice(w, r, parts[0], index)
		case http.MethodDelete:
			h.handleDeleteDevice(w, r, parts[0], index)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handlePropagationRoutes(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, propagationsPath), "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "retry" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	result, err := h.service.RetryPropagation(r.Context(), parts[0])
	if err != nil && !errors.Is(err, accounts.ErrPartialPropagation) {
		h.respondServiceError(w, err)
		return
	}
	h.logAudit(r, "propagation.retry", "propagation", parts[0], map[string]any{
		"succeeded": len(result.Succeeded),
		"failed":    len(result.Failed),
	})
	writePropagation(w, result, err)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.FilterByEmail(r.Context(), r.URL.Query().Get("email"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	rows := h.rows.Rows(list)
	if rows == nil {
		rows = []reportapp.Row{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var input accounts.NewAccount
	if err := decodeBody(w, r, &input); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	result, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.logAudit(r, "account.create", "account", result.Account.ID, map[string]any{
		"email":   result.Account.Email,
		"merged":  result.Merged,
		"devices": len(input.Devices),
	})
	status := http.StatusCreated
	if result.Merged {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.Refresh(r.Context())
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"accounts": len(list)})
}

func (h *Handler) handleEmails(w http.ResponseWriter, r *http.Request) {
	emails, err := h.service.Emails(r.Context())
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, emails)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	card := strings.TrimSpace(r.URL.Query().Get("card"))
	if card == "" {
		http.Error(w, "card is required", http.StatusBadRequest)
		return
	}
	match, err := h.service.FindByAccessCard(r.Context(), card)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, match)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	account, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (h *Handler) handleDeleteAccount(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.service.DeleteAccount(r.Context(), id); err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.logAudit(r, "account.delete", "account", id, nil)
	w.WriteHeader(http.StatusNoContent)
}

type deviceResponse struct {
	Account     accounts.Account            `json:"account"`
	Propagation *accounts.PropagationResult `json:"propagation,omitempty"`
}

func (h *Handler) handleUpdateDevice(w http.ResponseWriter, r *http.Request, id string, index int) {
	var update accounts.DeviceUpdate
	if err := decodeBody(w, r, &update); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	account, propagation, err := h.service.UpdateDevice(r.Context(), id, index, update)
	if err != nil && !errors.Is(err, accounts.ErrPartialPropagation) {
		h.respondServiceError(w, err)
		return
	}
	meta := map[string]any{"device_index": index}
	if propagation != nil {
		meta["propagation_id"] = propagation.ID
		meta["new_cutoff"] = propagation.NewCutoff
		meta["failed"] = len(propagation.Failed)
	}
	h.logAudit(r, "device.update", "account", id, meta)

	status := http.StatusOK
	if err != nil {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, deviceResponse{Account: account, Propagation: propagation})
}

func (h *Handler) handleDeleteDevice(w http.ResponseWriter, r *http.Request, id string, index int) {
	account, err := h.service.DeleteDevice(r.Context(), id, index)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.logAudit(r, "device.delete", "account", id, map[string]any{"device_index": index})
	writeJSON(w, http.StatusOK, account)
}

type cutoffRequest struct {
	CutoffDate string `json:"cutoff_date"`
}

func (h *Handler) handleCutoff(w http.ResponseWriter, r *http.Request, id string, index int) {
	var req cutoffRequest
	if err := decodeBody(w, r, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	result, err := h.service.ApplyCutoff(r.Context(), id, index, req.CutoffDate)
	if err != nil && !errors.Is(err, accounts.ErrPartialPropagation) {
		h.respondServiceError(w, err)
		return
	}
	h.logAudit(r, "cutoff.propagate", "account", id, map[string]any{
		"device_index":   index,
		"propagation_id": result.ID,
		"new_cutoff":     result.NewCutoff,
		"succeeded":      len(result.Succeeded),
		"failed":         len(result.Failed),
	})
	writePropagation(w, result, err)
}

func writePropagation(w http.ResponseWriter, result accounts.PropagationResult, err error) {
	status := http.StatusOK
	if err != nil {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, result)
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, accounts.ErrAccountNotFound),
		errors.Is(err, accounts.ErrDeviceNotFound),
		errors.Is(err, accounts.ErrPropagationNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, accounts.ErrValidation), errors.Is(err, expiry.ErrInvalidCutoff):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, accounts.ErrMalformedRecord):
		h.logger.Error("malformed account record", zap.Error(err))
		http.Error(w, "malformed record", http.StatusInternalServerError)
	default:
		h.logger.Warn("account store unavailable", zap.Error(err))
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
	}
}

func (h *Handler) logAudit(r *http.Request, action, resourceType, resourceID string, metadata map[string]any) {
	if h.auditLogger == nil {
		return
	}
	var meta []byte
	if metadata != nil {
		meta, _ = json.Marshal(metadata)
	}
	if err := h.auditLogger.Log(r.Context(), audit.Entry{
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Metadata:     meta,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	}); err != nil {
		h.logger.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return decoder.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
