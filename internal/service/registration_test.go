package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/registration-ledger/internal/ledger"
	"github.com/Shivanand-hulikatti/registration-ledger/internal/model"
	"github.com/Shivanand-hulikatti/registration-ledger/internal/repository"
)

func TestRegisterFirstRowCreatesLedger(t *testing.T) {
	f := newFixture(t, 10)
	svc := NewRegistrationService(f.deps)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, form("555-1234", "an@example.com", 6, 0), "s1"))

	status, err := svc.TicketStatus(ctx)
	require.NoError(t, err)
	require.NotNil(t, status.CurrentTotalTickets)
	assert.Equal(t, 6, *status.CurrentTotalTickets)
	assert.Equal(t, 10, status.MaxTotalTickets)

	raw := f.rawRows(t)
	require.Len(t, raw, ledger.FirstDataRow+1)
	assert.Equal(t, "Total Tickets", raw[0][0])
	assert.Equal(t, "10", raw[1][1])
	assert.Equal(t, ledger.FormulaRowTotal, raw[4][ledger.ColTotal])
	assert.Equal(t, ledger.FormulaRowBalance, raw[4][ledger.ColBalance])
	assert.Equal(t, "2026-01-10 09:30:00 AM -05:00", raw[4][ledger.ColSubmissionDate])

	rows := f.dataRows(t)
	assert.Equal(t, "150", rows[0].Total)
	assert.Equal(t, "150", rows[0].Balance)
}

func TestRegisterCapacityExceededLeavesLedgerUnchanged(t *testing.T) {
	f := newFixture(t, 10)
	svc := NewRegistrationService(f.deps)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, form("555-1234", "an@example.com", 6, 0), "s1"))
	before := f.rawRows(t)

	err := svc.Register(ctx, form("555-9999", "other@example.com", 5, 0), "s2")
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Equal(t, before, f.rawRows(t))

	// exactly at the limit is allowed
	require.NoError(t, svc.Register(ctx, form("555-9999", "other@example.com", 2, 2), "s2"))
	status, err := svc.TicketStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, *status.CurrentTotalTickets)
}

func TestRegisterMaxTicketsUnparseableMeansNoCapacity(t *testing.T) {
	f := newFixture(t, 0)
	svc := NewRegistrationService(f.deps)

	err := svc.Register(context.Background(), form("555-1234", "an@example.com", 1, 0), "s1")
	assert.ErrorIs(t, err, ErrCapacityExceeded)
}

func TestRegisterDuplicates(t *testing.T) {
	tests := []struct {
		name   string
		second map[string]any
		want   error
	}{
		{"same phone", form("555-1234", "new@example.com", 1, 0), ErrDuplicateRegistration},
		{"same phone with spaces", form("  555-1234 ", "new@example.com", 1, 0), ErrDuplicateRegistration},
		{"same email other case", form("555-0000", "AN@Example.com", 1, 0), ErrDuplicateRegistration},
		{"mail method ignores email", mailForm("555-0000", "1 Main St", 1), nil},
		{"distinct", form("555-0000", "new@example.com", 1, 0), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 100)
			svc := NewRegistrationService(f.deps)
			ctx := context.Background()

			require.NoError(t, svc.Register(ctx, form("555-1234", "an@example.com", 1, 0), "s1"))
			err := svc.Register(ctx, tt.second, "s2")
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
			assert.Len(t, f.dataRows(t), 1)
		})
	}
}

func mailFormWithEmail() map[string]any {
	m := mailForm("555-7777", "1 Main St", 1)
	m["email"] = "an@example.com"
	return m
}

func TestRegisterMailMethodDropsEmail(t *testing.T) {
	f := newFixture(t, 100)
	svc := NewRegistrationService(f.deps)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, form("555-1234", "an@example.com", 1, 0), "s1"))
	require.NoError(t, svc.Register(ctx, mailFormWithEmail(), "s2"))

	rows := f.dataRows(t)
	require.Len(t, rows, 2)
	assert.Empty(t, rows[1].Email)
	assert.Equal(t, "1 Main St", rows[1].Address)
}

func TestRegisterValidationOrder(t *testing.T) {
	f := newFixture(t, 10)
	svc := NewRegistrationService(f.deps)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Register(ctx, "not an object", ""), ErrMissingSession)
	assert.ErrorIs(t, svc.Register(ctx, form("1", "a@b.c", 1, 0), "   "), ErrMissingSession)

	err := svc.Register(ctx, "not an object", "s1")
	assert.ErrorIs(t, err, ErrInvalidPayload)
	assert.Nil(t, f.rawRows(t))
}

func TestRegisterInvalidPayload(t *testing.T) {
	with := func(key string, value any) map[string]any {
		m := form("555-1234", "an@example.com", 1, 0)
		if value == nil {
			delete(m, key)
		} else {
			m[key] = value
		}
		return m
	}
	tests := []struct {
		name  string
		input map[string]any
		field string
	}{
		{"missing first name", with("firstName", nil), "firstName"},
		{"blank last name", with("lastName", "   "), "lastName"},
		{"phone not a string", with("phoneNumber", 5551234.0), "phoneNumber"},
		{"unknown method", with("confirmationMethod", "fax"), "confirmationMethod"},
		{"email method without email", with("email", nil), "email"},
		{"negative adults", with("numberOfAdultTickets", -1.0), "numberOfAdultTickets"},
		{"fractional children", with("numberOfChildTickets", 1.5), "numberOfChildTickets"},
		{"string count", with("numberOfChildTickets", "2"), "numberOfChildTickets"},
		{"huge count", with("numberOfAdultTickets", 1e12), "numberOfAdultTickets"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 10)
			err := NewRegistrationService(f.deps).Register(context.Background(), tt.input, "s1")
			require.ErrorIs(t, err, ErrInvalidPayload)

			var perr *PayloadError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tt.field, perr.Field)
		})
	}
}

func TestParseRegistrationTrims(t *testing.T) {
	in := form(" 555-1234 ", " an@example.com ", 2, 1)
	in["firstName"] = "  An "
	d, err := ParseRegistration(in)
	require.NoError(t, err)
	assert.Equal(t, model.RegistrationData{
		FirstName:            "An",
		LastName:             "Nguyen",
		PhoneNumber:          "555-1234",
		ConfirmationMethod:   model.MethodEmail,
		Email:                "an@example.com",
		NumberOfAdultTickets: 2,
		NumberOfChildTickets: 1,
	}, d)
}

func TestRegisterLockTimeout(t *testing.T) {
	f := newFixture(t, 10)
	f.deps.LockTimeout = 20 * time.Millisecond
	svc := NewRegistrationService(f.deps)

	_, release, err := f.locker.Acquire(context.Background(), time.Second)
	require.NoError(t, err)
	defer release()

	err = svc.Register(context.Background(), form("555-1234", "an@example.com", 1, 0), "s1")
	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.Nil(t, f.rawRows(t))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.deps.Metrics.Registrations.WithLabelValues("lock_timeout")))
}

func TestRegisterRefusesWriteAfterLockLost(t *testing.T) {
	f := newFixture(t, 10)
	f.deps.Locker = &leaseLocker{lostOnAcquire: true}
	svc := NewRegistrationService(f.deps)

	err := svc.Register(context.Background(), form("555-1234", "an@example.com", 1, 0), "s1")
	assert.ErrorIs(t, err, ErrLockLost)
	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.Nil(t, f.rawRows(t))
}

func TestRegisterReleasesLockOnRejection(t *testing.T) {
	f := newFixture(t, 1)
	svc := NewRegistrationService(f.deps)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Register(ctx, form("1", "a@example.com", 2, 0), "s1"), ErrCapacityExceeded)

	_, release, err := f.locker.Acquire(ctx, 10*time.Millisecond)
	require.NoError(t, err, "lock must be free after a rejected registration")
	release()
}

func TestConcurrentRegistrationsJointlyOverCapacity(t *testing.T) {
	for i := 0; i < 20; i++ {
		f := newFixture(t, 10)
		svc := NewRegistrationService(f.deps)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for j, tickets := range []int{6, 5} {
			wg.Add(1)
			go func(j, tickets int) {
				defer wg.Done()
				errs[j] = svc.Register(context.Background(),
					form(fmt.Sprintf("555-000%d", j), fmt.Sprintf("r%d@example.com", j), tickets, 0),
					fmt.Sprintf("s%d", j))
			}(j, tickets)
		}
		wg.Wait()

		successes, rejected := 0, 0
		for _, err := range errs {
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrCapacityExceeded):
				rejected++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		assert.Equal(t, 1, successes)
		assert.Equal(t, 1, rejected)
		assert.Len(t, f.dataRows(t), 1)
	}
}

func TestConcurrentRegistrationsNeverExceedMax(t *testing.T) {
	f := newFixture(t, 10)
	f.deps.LockTimeout = 5 * time.Second
	svc := NewRegistrationService(f.deps)

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = svc.Register(context.Background(),
				form(fmt.Sprintf("555-%04d", i), fmt.Sprintf("r%d@example.com", i), 1, 0),
				fmt.Sprintf("s%d", i))
		}(i)
	}
	wg.Wait()

	status, err := svc.TicketStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, *status.CurrentTotalTickets)
	assert.Len(t, f.dataRows(t), 10)
}

// racingStore reports the sheet missing once, as if another writer created it
// between the read and the create.
type racingStore struct {
	*repository.MemoryStore
	raced bool
}

func (s *racingStore) Get(ctx context.Context, name string) (repository.Sheet, error) {
	if !s.raced {
		s.raced = true
		if _, err := s.MemoryStore.Create(ctx, name, ledger.Header("10", "25", "10")); err != nil {
			return repository.Sheet{}, err
		}
		return repository.Sheet{}, repository.ErrSheetNotFound
	}
	return s.MemoryStore.Get(ctx, name)
}

func TestRegisterAppendsWhenCreateLosesRace(t *testing.T) {
	f := newFixture(t, 10)
	store := &racingStore{MemoryStore: f.store}
	f.deps.Store = store
	svc := NewRegistrationService(f.deps)

	require.NoError(t, svc.Register(context.Background(), form("555-1234", "an@example.com", 2, 0), "s1"))

	rows := f.dataRows(t)
	require.Len(t, rows, 1)
	assert.Equal(t, "s1", rows[0].SessionID)
}

func TestTicketStatusWithoutLedger(t *testing.T) {
	f := newFixture(t, 10)
	status, err := NewRegistrationService(f.deps).TicketStatus(context.Background())
	require.NoError(t, err)
	assert.Nil(t, status.CurrentTotalTickets)
	assert.Equal(t, 10, status.MaxTotalTickets)
}

func TestGetRegistrationData(t *testing.T) {
	f := newFixture(t, 100)
	svc := NewRegistrationService(f.deps)
	ctx := context.Background()

	_, ok, err := svc.GetRegistrationData(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, svc.Register(ctx, form("555-1234", "an@example.com", 2, 1), "s1"))
	f.clock.Advance(time.Minute)
	require.NoError(t, svc.Register(ctx, form("555-5678", "an2@example.com", 3, 0), "s1"))

	data, ok, err := svc.GetRegistrationData(ctx, "s1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "555-5678", data.PhoneNumber)
	assert.Equal(t, 3, data.NumberOfAdultTickets)
	assert.Equal(t, "an2@example.com", data.Email)
	assert.Empty(t, data.Address)

	_, ok, err = svc.GetRegistrationData(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, ok)

	status, err := svc.TicketStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, *status.CurrentTotalTickets, "only the latest submission of a session counts")
}
