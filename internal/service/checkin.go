package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/registration-ledger/internal/ledger"
	"github.com/Shivanand-hulikatti/registration-ledger/internal/model"
	"github.com/Shivanand-hulikatti/registration-ledger/internal/repository"
)

// CheckInService resolves QR payloads and records admissions.
type CheckInService struct {
	d Deps
}

// NewCheckInService constructs a CheckInService.
func NewCheckInService(d Deps) *CheckInService {
	return &CheckInService{d: d.withDefaults()}
}

// Lookup verifies a scanned payload against the ledger and returns what the
// desk needs to admit the attendee. The stored submission date must equal the
// payload date exactly.
func (s *CheckInService) Lookup(ctx context.Context, payload string) (model.AttendeeSummary, error) {
	p, err := ParseCheckInPayload(payload)
	if err != nil {
		return model.AttendeeSummary{}, err
	}
	snap, err := s.d.read(ctx)
	if err != nil {
		return model.AttendeeSummary{}, err
	}
	row, ok := ledger.FindBySession(snap.rows(), p.ID)
	if !ok {
		return model.AttendeeSummary{}, ErrNotFound
	}
	if row.SubmissionDate != p.Date {
		return model.AttendeeSummary{}, ErrPayloadMismatch
	}

	summary := model.AttendeeSummary{
		SessionID:            row.SessionID,
		FirstName:            row.FirstName,
		LastName:             row.LastName,
		PhoneNumber:          row.PhoneNumber,
		NumberOfAdultTickets: row.NumberOfAdultTickets,
		NumberOfChildTickets: row.NumberOfChildTickets,
		RegistrationDate:     row.SubmissionDate,
		Notes:                row.Notes,
	}
	if checked := strings.TrimSpace(row.CheckedIn); checked != "" {
		summary.CheckedIn = &checked
	}
	return summary, nil
}

// CheckIn stamps the current time into the Checked In cell of the most recent
// registration for sessionID. A row is checked in at most once.
func (s *CheckInService) CheckIn(ctx context.Context, sessionID string) (err error) {
	defer func() { s.d.Metrics.CheckIn(checkInOutcome(err)) }()

	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return ErrNotFound
	}

	if _, err := s.d.Store.Get(ctx, s.d.SheetName); err != nil {
		if errors.Is(err, repository.ErrSheetNotFound) {
			return ErrLedgerMissing
		}
		return fmt.Errorf("get ledger: %w", err)
	}

	held, release, err := s.d.acquire(ctx, "checkin", s.d.LockTimeout)
	if err != nil {
		return err
	}
	defer release()

	snap, err := s.d.read(ctx)
	if err != nil {
		return err
	}
	if !snap.exists {
		return ErrLedgerMissing
	}
	row, ok := ledger.FindBySession(snap.rows(), sessionID)
	if !ok {
		return ErrNotFound
	}
	if strings.TrimSpace(row.CheckedIn) != "" {
		return ErrAlreadyCheckedIn
	}

	at := s.d.now()
	cell := repository.Cell{Row: row.Index, Col: ledger.ColCheckedIn}
	if err := stillHeld(held); err != nil {
		return err
	}
	if err := s.d.Store.WriteCell(ctx, snap.sheet, cell, at); err != nil {
		return fmt.Errorf("write check-in: %w", err)
	}
	s.d.Log.Info("checked in",
		zap.String("session_id", sessionID),
		zap.String("cell", cell.String()),
		zap.String("at", at),
	)
	return nil
}

func checkInOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrLedgerMissing):
		return "ledger_missing"
	case errors.Is(err, ErrLockTimeout):
		return "lock_timeout"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyCheckedIn):
		return "already_checked_in"
	default:
		return "error"
	}
}
