package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/registration-ledger/internal/ledger"
	"github.com/Shivanand-hulikatti/registration-ledger/internal/metadata"
	"github.com/Shivanand-hulikatti/registration-ledger/internal/model"
	"github.com/Shivanand-hulikatti/registration-ledger/internal/repository"
)

// RegistrationService writes registrations into the ledger.
type RegistrationService struct {
	d Deps
}

// NewRegistrationService constructs a RegistrationService.
func NewRegistrationService(d Deps) *RegistrationService {
	return &RegistrationService{d: d.withDefaults()}
}

// Register validates formData and appends it to the ledger for sessionID.
//
// Capacity and duplicates are checked against a read taken after the
// document lock is held, so two concurrent registrations that together exceed
// the maximum cannot both succeed. The lock is released on every path.
func (s *RegistrationService) Register(ctx context.Context, formData any, sessionID string) (err error) {
	defer func() { s.d.Metrics.Registration(registrationOutcome(err)) }()

	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return ErrMissingSession
	}
	data, err := ParseRegistration(formData)
	if err != nil {
		return err
	}

	held, release, err := s.d.acquire(ctx, "register", s.d.LockTimeout)
	if err != nil {
		return err
	}
	defer release()

	snap, err := s.d.read(ctx)
	if err != nil {
		return err
	}

	maxTickets := metadata.Int(s.d.Metadata, metadata.MaxTickets)
	current, ok := computeCurrentTotal(snap.values)
	if !ok {
		current = 0
	}
	if wouldExceedCapacity(current, data.Tickets(), maxTickets) {
		return ErrCapacityExceeded
	}

	if findDuplicate(snap.rows(), data.PhoneNumber, data.ConfirmationMethod, data.Email) {
		return ErrDuplicateRegistration
	}

	row := ledger.NewRow(s.d.now(), sessionID, data)
	if err := stillHeld(held); err != nil {
		return err
	}
	if err := s.write(ctx, snap, row); err != nil {
		return err
	}

	s.d.Log.Info("registration recorded",
		zap.String("session_id", sessionID),
		zap.Int("tickets", data.Tickets()),
		zap.Int("tickets_sold", current+data.Tickets()),
		zap.Int("max_tickets", maxTickets),
	)
	return nil
}

// write creates the ledger with row as its first registration, or appends
// row when the ledger already exists.
func (s *RegistrationService) write(ctx context.Context, snap snapshot, row []string) error {
	if snap.exists {
		if err := s.d.Store.AppendRow(ctx, snap.sheet, row); err != nil {
			return fmt.Errorf("append registration: %w", err)
		}
		return nil
	}

	seed := ledger.Header(
		s.d.Metadata.Get(metadata.MaxTickets),
		s.d.Metadata.Get(metadata.TicketPriceAdult),
		s.d.Metadata.Get(metadata.TicketPriceChild),
	)
	_, err := s.d.Store.Create(ctx, s.d.SheetName, append(seed, row))
	if err == nil {
		s.d.Log.Info("registrations ledger created", zap.String("sheet", s.d.SheetName))
		return nil
	}
	if !errors.Is(err, repository.ErrSheetExists) {
		return fmt.Errorf("create ledger: %w", err)
	}

	sheet, err := s.d.Store.Get(ctx, s.d.SheetName)
	if err != nil {
		return fmt.Errorf("get ledger: %w", err)
	}
	if err := s.d.Store.AppendRow(ctx, sheet, row); err != nil {
		return fmt.Errorf("append registration: %w", err)
	}
	return nil
}

// TicketStatus reports tickets sold and the configured maximum.
func (s *RegistrationService) TicketStatus(ctx context.Context) (model.TicketStatus, error) {
	snap, err := s.d.read(ctx)
	if err != nil {
		return model.TicketStatus{}, err
	}
	status := model.TicketStatus{
		MaxTotalTickets: metadata.Int(s.d.Metadata, metadata.MaxTickets),
	}
	if current, ok := computeCurrentTotal(snap.values); ok {
		status.CurrentTotalTickets = &current
	}
	return status, nil
}

// GetRegistrationData returns the most recent registration for sessionID
// without internal fields. ok is false when none exists.
func (s *RegistrationService) GetRegistrationData(ctx context.Context, sessionID string) (data model.RegistrationData, ok bool, err error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return model.RegistrationData{}, false, nil
	}
	snap, err := s.d.read(ctx)
	if err != nil {
		return model.RegistrationData{}, false, err
	}
	row, ok := ledger.FindBySession(snap.rows(), sessionID)
	if !ok {
		return model.RegistrationData{}, false, nil
	}
	return row.Data(), true, nil
}

func registrationOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrMissingSession):
		return "missing_session"
	case errors.Is(err, ErrInvalidPayload):
		return "invalid_payload"
	case errors.Is(err, ErrLockTimeout):
		return "lock_timeout"
	case errors.Is(err, ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, ErrDuplicateRegistration):
		return "duplicate"
	default:
		return "error"
	}
}
