package service

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/registration-ledger/internal/ledger"
	"github.com/Shivanand-hulikatti/registration-ledger/internal/mail"
	"github.com/Shivanand-hulikatti/registration-ledger/internal/metadata"
	"github.com/Shivanand-hulikatti/registration-ledger/internal/model"
	"github.com/Shivanand-hulikatti/registration-ledger/internal/qrcode"
	"github.com/Shivanand-hulikatti/registration-ledger/internal/repository"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Email subjects.
const (
	SubjectInitial = "Xác Nhận Đăng Ký / Registration Confirmation"
	SubjectFinal   = "Xác Nhận Thanh Toán / Payment Confirmation"
)

// UseRemainingQuota makes Send cap the batch at the sender's remaining quota.
const UseRemainingQuota = -1

// PaymentWindow is how long registrants have to pay after the initial
// confirmation.
const PaymentWindow = 7 * 24 * time.Hour

const (
	statusSent   = "Sent: "
	statusFailed = "Failed: "
)

// MailMergeService sends the confirmation batches.
type MailMergeService struct {
	d            Deps
	sender       mail.Sender
	qr           qrcode.Encoder
	aliasPattern *regexp.Regexp
	lockTimeout  time.Duration
}

// MailMergeOptions configure a MailMergeService.
type MailMergeOptions struct {
	// AliasPattern selects the sender alias; its first group is the year.
	AliasPattern *regexp.Regexp
	// LockTimeout bounds the wait for the document lock.
	LockTimeout time.Duration
}

// NewMailMergeService constructs a MailMergeService.
func NewMailMergeService(d Deps, sender mail.Sender, qr qrcode.Encoder, opts MailMergeOptions) *MailMergeService {
	d = d.withDefaults()
	if opts.AliasPattern == nil {
		opts.AliasPattern = regexp.MustCompile(mail.DefaultAliasPattern)
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = d.LockTimeout
	}
	return &MailMergeService{
		d:            d,
		sender:       sender,
		qr:           qr,
		aliasPattern: opts.AliasPattern,
		lockTimeout:  opts.LockTimeout,
	}
}

// SendInitial sends registration confirmations with payment instructions.
func (s *MailMergeService) SendInitial(ctx context.Context, maxEmails int) (model.MailMergeResult, error) {
	return s.Send(ctx, model.TemplateInitial, maxEmails)
}

// SendFinal sends payment confirmations with the check-in QR code to fully
// paid registrations.
func (s *MailMergeService) SendFinal(ctx context.Context, maxEmails int) (model.MailMergeResult, error) {
	return s.Send(ctx, model.TemplateFinal, maxEmails)
}

// RemainingQuota reports how many emails may still be sent today. Sends
// already recorded in the ledger count against it, whichever process made
// them.
func (s *MailMergeService) RemainingQuota(ctx context.Context) int {
	snap, err := s.d.read(ctx)
	if err != nil {
		s.d.Log.Warn("count today's sends", zap.Error(err))
	} else {
		s.sender.Reconcile(s.sentToday(snap.raw))
	}
	return s.sender.RemainingQuota(ctx)
}

// Send runs one batch of tpl over the ledger, top to bottom, sending at most
// maxEmails messages. Rows already marked Sent are skipped, so re-running a
// batch never sends twice. Per-row failures are recorded in the status cell
// and in the result; only a missing ledger, a lock timeout or a failed status
// write fail the batch.
//
// Once the lock is held the batch runs on the lock's context, so a caller
// that goes away mid-run does not stop the status write. Losing the lock
// stops further sends; the statuses of rows already attempted are still
// written and the batch returns ErrLockLost.
func (s *MailMergeService) Send(ctx context.Context, tpl model.MailTemplate, maxEmails int) (model.MailMergeResult, error) {
	result := model.MailMergeResult{Errors: []model.RowError{}}

	statusCol, err := statusColumn(tpl)
	if err != nil {
		return result, err
	}

	held, release, err := s.d.acquire(ctx, "mail_"+string(tpl), s.lockTimeout)
	if err != nil {
		return result, err
	}
	defer release()

	snap, err := s.d.read(held)
	if err != nil {
		return result, err
	}
	if !snap.exists {
		return result, ErrLedgerMissing
	}

	s.sender.Reconcile(s.sentToday(snap.raw))
	if maxEmails < 0 {
		maxEmails = s.sender.RemainingQuota(held)
	}

	rows := snap.rows()
	statuses := make([]string, len(rows))
	for i, row := range rows {
		statuses[i] = cellOf(snap.raw, row.Index, statusCol)
	}
	touched := make([]bool, len(rows))

	env := s.envelope()
	lost := false
	for i, row := range rows {
		if result.TotalProcessed >= maxEmails {
			break
		}
		if !s.eligible(tpl, row, statuses[i]) {
			continue
		}
		if held.Err() != nil {
			lost = true
			break
		}
		result.TotalProcessed++
		touched[i] = true

		if err := s.sendRow(held, tpl, env, row); err != nil {
			statuses[i] = statusFailed + err.Error()
			result.FailureCount++
			result.Errors = append(result.Errors, model.RowError{Row: row.Index + 1, Error: err.Error()})
			s.d.Metrics.MailSend(string(tpl), "failed")
			s.d.Log.Warn("confirmation email failed",
				zap.String("template", string(tpl)),
				zap.Int("row", row.Index+1),
				zap.Error(err),
			)
			continue
		}
		statuses[i] = statusSent + s.d.now()
		result.SuccessCount++
		s.d.Metrics.MailSend(string(tpl), "sent")
	}

	if err := s.persist(held, snap.sheet, statusCol, rows, statuses, touched); err != nil {
		return result, fmt.Errorf("write %s statuses: %w", tpl, err)
	}

	s.d.Log.Info("mail merge finished",
		zap.String("template", string(tpl)),
		zap.Int("max_emails", maxEmails),
		zap.Int("processed", result.TotalProcessed),
		zap.Int("sent", result.SuccessCount),
		zap.Int("failed", result.FailureCount),
		zap.Bool("lock_lost", lost || held.Err() != nil),
	)
	if lost {
		return result, ErrLockLost
	}
	return result, nil
}

// persist writes the batch statuses on a context that outlives the lock.
// While the lock is held the whole column goes in one call. After losing it
// only the rows this batch attempted are written, leaving the rest to
// whoever holds the lock now.
func (s *MailMergeService) persist(held context.Context, sheet repository.Sheet, col int, rows []model.RegistrationRow, statuses []string, touched []bool) error {
	if len(statuses) == 0 {
		return nil
	}
	ctx := context.WithoutCancel(held)
	if held.Err() == nil {
		return s.d.Store.WriteColumn(ctx, sheet, col, ledger.FirstDataRow, statuses)
	}
	for i, row := range rows {
		if !touched[i] {
			continue
		}
		if err := s.d.Store.WriteCell(ctx, sheet, repository.Cell{Row: row.Index, Col: col}, statuses[i]); err != nil {
			return err
		}
	}
	return nil
}

// sentToday counts the confirmations, of either template, that the ledger
// records as sent on the current day in the ledger's zone.
func (s *MailMergeService) sentToday(raw [][]string) int {
	today := s.d.Clock.Now().In(s.d.Location).Format(time.DateOnly)
	n := 0
	for r := ledger.FirstDataRow; r < len(raw); r++ {
		for _, col := range []int{ledger.ColInitialConfirmation, ledger.ColFinalConfirmation} {
			status := strings.TrimSpace(cellOf(raw, r, col))
			if isSent(status) && strings.HasPrefix(strings.TrimSpace(status[len(statusSent)-1:]), today) {
				n++
			}
		}
	}
	return n
}

func statusColumn(tpl model.MailTemplate) (int, error) {
	switch tpl {
	case model.TemplateInitial:
		return ledger.ColInitialConfirmation, nil
	case model.TemplateFinal:
		return ledger.ColFinalConfirmation, nil
	default:
		return 0, fmt.Errorf("unknown mail template %q", tpl)
	}
}

func (s *MailMergeService) eligible(tpl model.MailTemplate, row model.RegistrationRow, status string) bool {
	if isSent(status) {
		return false
	}
	if tpl == model.TemplateFinal && !fullyPaid(row.Balance) {
		return false
	}
	return strings.TrimSpace(string(row.ConfirmationMethod)) == string(model.MethodEmail) &&
		strings.TrimSpace(row.Email) != ""
}

func isSent(status string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(status)), "sent:")
}

func fullyPaid(balance string) bool {
	f, err := strconv.ParseFloat(strings.TrimSpace(balance), 64)
	return err == nil && f == 0
}

// envelope is the per-batch sender identity.
type envelope struct {
	from     string
	fromName string
	replyTo  string
}

func (s *MailMergeService) envelope() envelope {
	year := metadata.Int(s.d.Metadata, metadata.EventYear)
	from, _ := mail.AliasForYear(s.sender.Aliases(), s.aliasPattern, year)
	return envelope{
		from:     from,
		fromName: strings.TrimSpace(s.d.Metadata.Get(metadata.EventName) + " " + s.d.Metadata.Get(metadata.EventYear)),
		replyTo:  s.d.Metadata.Get(metadata.ContactEmail),
	}
}

type templateData struct {
	EventName            string
	EventYear            string
	FirstName            string
	LastName             string
	PhoneNumber          string
	Email                string
	NumberOfAdultTickets int
	NumberOfChildTickets int
	TotalTickets         int
	TotalPrice           string
	Currency             string
	SubmissionDate       string
	PaymentDeadline      string
	ETransferEmail       string
	CashAddress          string
	ContactEmail         string
	ETransferAmount      string
	CashAmount           string
	QRCodeImageURL       template.URL
}

func (s *MailMergeService) sendRow(ctx context.Context, tpl model.MailTemplate, env envelope, row model.RegistrationRow) error {
	total, err := strconv.ParseFloat(strings.TrimSpace(row.Total), 64)
	if err != nil {
		return fmt.Errorf("total %q is not a number", row.Total)
	}

	data := templateData{
		EventName:            s.d.Metadata.Get(metadata.EventName),
		EventYear:            s.d.Metadata.Get(metadata.EventYear),
		FirstName:            row.FirstName,
		LastName:             row.LastName,
		PhoneNumber:          row.PhoneNumber,
		Email:                row.Email,
		NumberOfAdultTickets: row.NumberOfAdultTickets,
		NumberOfChildTickets: row.NumberOfChildTickets,
		TotalTickets:         row.NumberOfAdultTickets + row.NumberOfChildTickets,
		TotalPrice:           money(total),
		Currency:             s.d.Metadata.Get(metadata.Currency),
		SubmissionDate:       row.SubmissionDate,
		ETransferEmail:       s.d.Metadata.Get(metadata.ETransferEmail),
		CashAddress:          s.d.Metadata.Get(metadata.CashAddress),
		ContactEmail:         s.d.Metadata.Get(metadata.ContactEmail),
	}

	msg := mail.Message{
		From:     env.from,
		FromName: env.fromName,
		To:       strings.TrimSpace(row.Email),
		ReplyTo:  env.replyTo,
	}

	var name string
	switch tpl {
	case model.TemplateInitial:
		name = "initial.html"
		msg.Subject = SubjectInitial
		deadline := s.d.Clock.Now().Add(PaymentWindow).In(s.d.Location)
		data.PaymentDeadline = deadline.Format(ledger.DeadlineLayout)
	case model.TemplateFinal:
		name = "final.html"
		msg.Subject = SubjectFinal
		data.ETransferAmount = moneyOrZero(row.ETransfer)
		data.CashAmount = moneyOrZero(row.Cash)

		png, err := s.qr.Encode(BuildCheckInPayload(row.SessionID, row.SubmissionDate))
		if err != nil {
			return err
		}
		image := fmt.Sprintf("%s_%s_CheckInQR.png", row.FirstName, row.LastName)
		data.QRCodeImageURL = template.URL("cid:" + image)
		msg.Attachments = []mail.Attachment{
			{Name: image, ContentType: qrcode.ContentType, Data: png, Inline: true},
			{Name: image, ContentType: qrcode.ContentType, Data: png},
		}
	}

	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, name, data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	msg.HTMLBody = body.String()

	return s.sender.Send(ctx, msg)
}

func money(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

func moneyOrZero(s string) string {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return money(0)
	}
	return money(f)
}

func cellOf(values [][]string, row, col int) string {
	if row >= len(values) || col >= len(values[row]) {
		return ""
	}
	return values[row][col]
}
