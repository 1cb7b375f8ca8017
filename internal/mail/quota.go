package mail

import (
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/registration-ledger/internal/clock"
)

// Quota counts sends per calendar day in loc. A limit of 0 or less means
// nothing may be sent.
type Quota struct {
	mu    sync.Mutex
	limit int
	clock clock.Clock
	loc   *time.Location
	day   string
	used  int
}

// NewQuota constructs a Quota allowing limit sends per day.
func NewQuota(limit int, c clock.Clock, loc *time.Location) *Quota {
	return &Quota{limit: limit, clock: c, loc: loc}
}

func (q *Quota) roll() {
	today := q.clock.Now().In(q.loc).Format(time.DateOnly)
	if today != q.day {
		q.day = today
		q.used = 0
	}
}

// Remaining returns how many sends are left today.
func (q *Quota) Remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.roll()
	if n := q.limit - q.used; n > 0 {
		return n
	}
	return 0
}

// Take reserves one send. It reports false when the quota is used up.
func (q *Quota) Take() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.roll()
	if q.used >= q.limit {
		return false
	}
	q.used++
	return true
}

// Refund returns a reservation after a failed delivery.
func (q *Quota) Refund() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.used > 0 {
		q.used--
	}
}

// Reconcile raises today's usage to sent, the number of sends recorded in
// durable state. Usage never goes down here, so reservations still in flight
// stay counted.
func (q *Quota) Reconcile(sent int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.roll()
	if sent > q.used {
		q.used = sent
	}
}
