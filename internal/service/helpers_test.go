package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/registration-ledger/internal/clock"
	"github.com/Shivanand-hulikatti/registration-ledger/internal/ledger"
	"github.com/Shivanand-hulikatti/registration-ledger/internal/lock"
	"github.com/Shivanand-hulikatti/registration-ledger/internal/mail"
	"github.com/Shivanand-hulikatti/registration-ledger/internal/metadata"
	"github.com/Shivanand-hulikatti/registration-ledger/internal/metrics"
	"github.com/Shivanand-hulikatti/registration-ledger/internal/model"
	"github.com/Shivanand-hulikatti/registration-ledger/internal/repository"
)

var (
	testZone  = time.FixedZone("EST", -5*3600)
	testStart = time.Date(2026, 1, 10, 9, 30, 0, 0, testZone)
)

type fixture struct {
	store  *repository.MemoryStore
	locker *lock.Local
	clock  *clock.Fake
	deps   Deps
}

func newFixture(t *testing.T, maxTickets int) *fixture {
	t.Helper()
	f := &fixture{
		store:  repository.NewMemoryStore(),
		locker: lock.NewLocal(),
		clock:  clock.NewFake(testStart),
	}
	f.deps = Deps{
		Store:  f.store,
		Locker: f.locker,
		Metadata: metadata.New(metadata.RegistrationFields, map[string]string{
			metadata.MaxTickets:       strconv.Itoa(maxTickets),
			metadata.TicketPriceAdult: "25",
			metadata.TicketPriceChild: "10",
			metadata.EventYear:        "2026",
			metadata.ContactEmail:     "contact@example.com",
			metadata.ETransferEmail:   "pay@example.com",
		}),
		Clock:       f.clock,
		Location:    testZone,
		LockTimeout: time.Second,
		Log:         zap.NewNop(),
		Metrics:     metrics.New(),
	}
	return f
}

// form builds a payload shaped like a decoded JSON body.
func form(phone, email string, adults, children int) map[string]any {
	return map[string]any{
		"firstName":            "An",
		"lastName":             "Nguyen",
		"phoneNumber":          phone,
		"confirmationMethod":   "email",
		"email":                email,
		"numberOfAdultTickets": float64(adults),
		"numberOfChildTickets": float64(children),
	}
}

func mailForm(phone, address string, adults int) map[string]any {
	return map[string]any{
		"firstName":            "Binh",
		"lastName":             "Tran",
		"phoneNumber":          phone,
		"confirmationMethod":   "mail",
		"address":              address,
		"numberOfAdultTickets": float64(adults),
		"numberOfChildTickets": float64(0),
	}
}

func (f *fixture) rawRows(t *testing.T) [][]string {
	t.Helper()
	sheet, err := f.store.Get(context.Background(), ledger.DefaultSheetName)
	if errors.Is(err, repository.ErrSheetNotFound) {
		return nil
	}
	require.NoError(t, err)
	rows, err := f.store.ReadAllRows(context.Background(), sheet)
	require.NoError(t, err)
	return rows
}

func (f *fixture) dataRows(t *testing.T) []model.RegistrationRow {
	t.Helper()
	return ledger.DataRows(ledger.Evaluate(f.rawRows(t)))
}

func (f *fixture) writeCell(t *testing.T, row, col int, value string) {
	t.Helper()
	sheet, err := f.store.Get(context.Background(), ledger.DefaultSheetName)
	require.NoError(t, err)
	require.NoError(t, f.store.WriteCell(context.Background(), sheet, repository.Cell{Row: row, Col: col}, value))
}

type fakeSender struct {
	mu      sync.Mutex
	sent    []mail.Message
	fail    map[string]error
	limit   int
	used    int
	aliases []string

	// onSend runs after each delivery.
	onSend func(mail.Message)
}

func newFakeSender(quota int) *fakeSender {
	return &fakeSender{limit: quota, fail: make(map[string]error)}
}

func (s *fakeSender) Send(_ context.Context, m mail.Message) error {
	s.mu.Lock()
	if err := s.fail[m.To]; err != nil {
		s.mu.Unlock()
		return err
	}
	if s.used >= s.limit {
		s.mu.Unlock()
		return mail.ErrQuotaExhausted
	}
	s.used++
	s.sent = append(s.sent, m)
	hook := s.onSend
	s.mu.Unlock()

	if hook != nil {
		hook(m)
	}
	return nil
}

func (s *fakeSender) RemainingQuota(context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := s.limit - s.used; n > 0 {
		return n
	}
	return 0
}

func (s *fakeSender) Reconcile(sentToday int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sentToday > s.used {
		s.used = sentToday
	}
}

func (s *fakeSender) Aliases() []string { return s.aliases }

func (s *fakeSender) recipients() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.sent))
	for _, m := range s.sent {
		out = append(out, m.To)
	}
	return out
}

type fakeQR struct{}

func (fakeQR) Encode(payload string) ([]byte, error) {
	return []byte("png:" + payload), nil
}

// leaseLocker hands out a hold that the test ends with lose, the way a lease
// lock reports an expired lease.
type leaseLocker struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	// lostOnAcquire ends every hold before Acquire returns.
	lostOnAcquire bool
}

func (l *leaseLocker) Acquire(ctx context.Context, _ time.Duration) (context.Context, lock.Release, error) {
	held, cancel := context.WithCancel(context.WithoutCancel(ctx))
	l.mu.Lock()
	l.cancel = cancel
	l.mu.Unlock()
	if l.lostOnAcquire {
		cancel()
	}
	return held, lock.Release(cancel), nil
}

func (l *leaseLocker) lose() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cancel()
}
