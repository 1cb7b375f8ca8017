package handler

import "net/http"

type lookupRequest struct {
	Payload string `json:"payload"`
}

// LookupCheckIn handles POST /api/checkin/lookup
// Resolves a scanned QR payload to the attendee summary.
func (h *Handler) LookupCheckIn(w http.ResponseWriter, r *http.Request) {
	var req lookupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	summary, err := h.desk.Lookup(r.Context(), req.Payload)
	if err != nil {
		h.writeServiceError(w, r, lookupCodes, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type checkInRequest struct {
	SessionID string `json:"sessionId"`
}

// CheckIn handles POST /api/checkin
// Stamps the check-in time on the attendee's latest registration.
func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	var req checkInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.desk.CheckIn(r.Context(), req.SessionID); err != nil {
		h.writeServiceError(w, r, checkInCodes, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

