// Package mail is the outbound mail collaborator used by the confirmation
// batches: message types, a daily send quota, sender alias selection and the
// SMTP and log transports.
package mail

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrQuotaExhausted is returned by Send when the daily quota is used up.
var ErrQuotaExhausted = errors.New("daily mail quota exhausted")

// Attachment is a file carried by a message. Inline attachments are
// referenced from the HTML body as cid:<Name>.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
	Inline      bool
}

// Message is one outbound email. An empty From means the default sender.
type Message struct {
	From        string
	FromName    string
	To          string
	ReplyTo     string
	Subject     string
	HTMLBody    string
	Attachments []Attachment
}

// Sender delivers messages and reports how many more it may send today.
// Reconcile tells it how many sends today's durable state already records.
type Sender interface {
	Send(ctx context.Context, m Message) error
	RemainingQuota(ctx context.Context) int
	Reconcile(sentToday int)
	Aliases() []string
}

// Transport delivers a fully addressed message.
type Transport interface {
	Deliver(ctx context.Context, m Message) error
}

// Mailer is the Sender used in production: it fills in the default sender,
// enforces the quota and hands the message to a Transport.
type Mailer struct {
	transport   Transport
	quota       *Quota
	defaultFrom string
	aliases     []string
}

// NewMailer constructs a Mailer.
func NewMailer(t Transport, q *Quota, defaultFrom string, aliases []string) *Mailer {
	return &Mailer{transport: t, quota: q, defaultFrom: defaultFrom, aliases: aliases}
}

func (m *Mailer) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return errors.New("missing recipient")
	}
	if msg.From == "" {
		msg.From = m.defaultFrom
	}
	if !m.quota.Take() {
		return ErrQuotaExhausted
	}
	if err := m.transport.Deliver(ctx, msg); err != nil {
		m.quota.Refund()
		return fmt.Errorf("deliver to %s: %w", msg.To, err)
	}
	return nil
}

func (m *Mailer) RemainingQuota(context.Context) int {
	return m.quota.Remaining()
}

func (m *Mailer) Reconcile(sentToday int) {
	m.quota.Reconcile(sentToday)
}

func (m *Mailer) Aliases() []string {
	return m.aliases
}

// DefaultAliasPattern matches the event-year sender aliases; the first
// capture group is the year.
const DefaultAliasPattern = `\+tetviet(\d+)@gmail\.com`

// AliasForYear returns the first alias whose captured year equals year.
// Aliases are matched in lower case.
func AliasForYear(aliases []string, pattern *regexp.Regexp, year int) (string, bool) {
	for _, alias := range aliases {
		m := pattern.FindStringSubmatch(strings.ToLower(alias))
		if len(m) < 2 {
			continue
		}
		if y, err := strconv.Atoi(m[1]); err == nil && y == year {
			return alias, true
		}
	}
	return "", false
}
