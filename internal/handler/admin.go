package handler

import (
	"net/http"
	"strconv"

	"github.com/Shivanand-hulikatti/registration-ledger/internal/model"
	"github.com/Shivanand-hulikatti/registration-ledger/internal/service"
)

// SendInitial handles POST /api/admin/mail/initial?max=N
func (h *Handler) SendInitial(w http.ResponseWriter, r *http.Request) {
	h.sendBatch(w, r, model.TemplateInitial)
}

// SendFinal handles POST /api/admin/mail/final?max=N
func (h *Handler) SendFinal(w http.ResponseWriter, r *http.Request) {
	h.sendBatch(w, r, model.TemplateFinal)
}

// sendBatch runs one mail merge. Without max the batch is capped by the
// remaining daily quota.
func (h *Handler) sendBatch(w http.ResponseWriter, r *http.Request, tpl model.MailTemplate) {
	maxEmails := service.UseRemainingQuota
	if raw := r.URL.Query().Get("max"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "max must be a non-negative integer")
			return
		}
		maxEmails = n
	}

	result, err := h.merge.Send(r.Context(), tpl, maxEmails)
	if err != nil {
		h.writeServiceError(w, r, mailCodes, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type quotaResponse struct {
	Remaining int `json:"remaining"`
}

// MailQuota handles GET /api/admin/mail/quota
func (h *Handler) MailQuota(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, quotaResponse{Remaining: h.merge.RemainingQuota(r.Context())})
}
