// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/registration-ledger/internal/auth"
	"github.com/Shivanand-hulikatti/registration-ledger/internal/clock"
	"github.com/Shivanand-hulikatti/registration-ledger/internal/metadata"
	"github.com/Shivanand-hulikatti/registration-ledger/internal/model"
	"github.com/Shivanand-hulikatti/registration-ledger/internal/service"
)

// Registrar is the registration side of the ledger.
type Registrar interface {
	Register(ctx context.Context, formData any, sessionID string) error
	TicketStatus(ctx context.Context) (model.TicketStatus, error)
	GetRegistrationData(ctx context.Context, sessionID string) (model.RegistrationData, bool, error)
}

// CheckInDesk resolves QR payloads and admits attendees.
type CheckInDesk interface {
	Lookup(ctx context.Context, payload string) (model.AttendeeSummary, error)
	CheckIn(ctx context.Context, sessionID string) error
}

// MailMerger runs the confirmation batches.
type MailMerger interface {
	Send(ctx context.Context, tpl model.MailTemplate, maxEmails int) (model.MailMergeResult, error)
	RemainingQuota(ctx context.Context) int
}

// MetadataSource lists the registration route metadata.
type MetadataSource interface {
	Fields() []metadata.Field
	Get(name string) string
}

// Handler holds all HTTP handlers for the registration API.
type Handler struct {
	reg   Registrar
	desk  CheckInDesk
	merge MailMerger
	auth  *auth.Validator
	meta  MetadataSource
	clock clock.Clock
	log   *zap.Logger
}

// Services are the collaborators a Handler serves.
type Services struct {
	Registrar Registrar
	CheckIn   CheckInDesk
	MailMerge MailMerger
	Auth      *auth.Validator
	Metadata  MetadataSource
	Clock     clock.Clock
	Log       *zap.Logger
}

// New constructs a Handler.
func New(s Services) *Handler {
	h := &Handler{
		reg:   s.Registrar,
		desk:  s.CheckIn,
		merge: s.MailMerge,
		auth:  s.Auth,
		meta:  s.Metadata,
		clock: s.Clock,
		log:   s.Log,
	}
	if h.clock == nil {
		h.clock = clock.Real()
	}
	if h.log == nil {
		h.log = zap.NewNop()
	}
	return h
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// writeServiceError maps err through table. Unmapped errors are logged and
// reported as 500 without detail.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, table codeTable, err error) {
	wire := table.lookup(err)
	if wire == internalError {
		h.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, wire.status, wire.code)
		return
	}
	resp := model.ErrorResponse{Error: wire.code}
	var perr *service.PayloadError
	if errors.As(err, &perr) {
		resp.Detail = perr.Error()
	}
	writeJSON(w, wire.status, resp)
}

// sessionFrom prefers an explicit id and falls back to the session header.
func sessionFrom(r *http.Request, explicit string) string {
	if s := strings.TrimSpace(explicit); s != "" {
		return s
	}
	return strings.TrimSpace(r.Header.Get(auth.SessionHeader))
}

// ─── Sessions & password ──────────────────────────────────────────────────────

// CreateSession handles POST /api/sessions
// Issues a fresh session id for a page load.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, model.Session{
		ID:       uuid.NewString(),
		IssuedAt: h.clock.Now().UTC(),
	})
}

type validatePasswordRequest struct {
	Password  string `json:"password"`
	SessionID string `json:"sessionId"`
}

type validatePasswordResponse struct {
	Valid bool `json:"valid"`
}

// ValidatePassword handles POST /api/password/validate
// The password field carries hex(HMAC-SHA256(key=sessionId, msg=password)).
func (h *Handler) ValidatePassword(w http.ResponseWriter, r *http.Request) {
	var req validatePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	valid, err := h.auth.Validate(r.Context(), req.Password, sessionFrom(r, req.SessionID))
	if err != nil {
		if errors.Is(err, auth.ErrMissingSession) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error("password validation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, validatePasswordResponse{Valid: valid})
}

// ─── Registration ─────────────────────────────────────────────────────────────

type registerRequest struct {
	FormData  any    `json:"formData"`
	SessionID string `json:"sessionId"`
}

// Register handles POST /api/registrations
// Appends the submission to the ledger under the document lock.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.reg.Register(r.Context(), req.FormData, sessionFrom(r, req.SessionID)); err != nil {
		h.writeServiceError(w, r, registerCodes, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]bool{"success": true})
}

// GetRegistration handles GET /api/registrations/{sessionId}
// Returns the latest submission of the session.
func (h *Handler) GetRegistration(w http.ResponseWriter, r *http.Request) {
	data, ok, err := h.reg.GetRegistrationData(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		h.writeServiceError(w, r, nil, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "registration not found")
		return
	}
	writeJSON(w, http.StatusOK, data)
}

// TicketStatus handles GET /api/tickets/status
func (h *Handler) TicketStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.reg.TicketStatus(r.Context())
	if err != nil {
		h.writeServiceError(w, r, nil, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

type metadataEntry struct {
	metadata.Field
	Value string `json:"value"`
}

// Metadata handles GET /api/metadata
// Lists the registration route fields with their effective values.
func (h *Handler) Metadata(w http.ResponseWriter, r *http.Request) {
	fields := h.meta.Fields()
	out := make([]metadataEntry, 0, len(fields))
	for _, f := range fields {
		out = append(out, metadataEntry{Field: f, Value: h.meta.Get(f.Name)})
	}
	writeJSON(w, http.StatusOK, out)
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
