package service

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/Shivanand-hulikatti/registration-ledger/internal/model"
)

// BuildCheckInPayload encodes the QR text for a registration: URL-safe
// base64 of {"id","date"}.
func BuildCheckInPayload(sessionID, submissionDate string) string {
	b, _ := json.Marshal(model.CheckInPayload{ID: sessionID, Date: submissionDate})
	return base64.URLEncoding.EncodeToString(b)
}

// ParseCheckInPayload decodes QR text. Padded and unpadded base64 are both
// accepted. id and date must be non-empty strings.
func ParseCheckInPayload(payload string) (model.CheckInPayload, error) {
	payload = strings.TrimSpace(payload)
	b, err := base64.URLEncoding.DecodeString(payload)
	if err != nil {
		b, err = base64.RawURLEncoding.DecodeString(payload)
		if err != nil {
			return model.CheckInPayload{}, ErrMalformedPayload
		}
	}

	var fields map[string]any
	if err := json.Unmarshal(b, &fields); err != nil {
		return model.CheckInPayload{}, ErrMalformedPayload
	}
	id, ok := fields["id"].(string)
	if !ok || id == "" {
		return model.CheckInPayload{}, ErrMalformedPayload
	}
	date, ok := fields["date"].(string)
	if !ok || date == "" {
		return model.CheckInPayload{}, ErrMalformedPayload
	}
	return model.CheckInPayload{ID: id, Date: date}, nil
}
