// Package model defines the core domain types for the registration ledger.
package model

import "time"

// ConfirmationMethod is the channel a registrant chose for confirmations.
type ConfirmationMethod string

const (
	MethodEmail ConfirmationMethod = "email"
	MethodMail  ConfirmationMethod = "mail"
)

// RegistrationData is a validated registration submission. Exactly one of
// Email (MethodEmail) or Address (MethodMail) is meaningful.
type RegistrationData struct {
	FirstName            string             `json:"firstName"`
	LastName             string             `json:"lastName"`
	PhoneNumber          string             `json:"phoneNumber"`
	ConfirmationMethod   ConfirmationMethod `json:"confirmationMethod"`
	Email                string             `json:"email,omitempty"`
	Address              string             `json:"address,omitempty"`
	NumberOfAdultTickets int                `json:"numberOfAdultTickets"`
	NumberOfChildTickets int                `json:"numberOfChildTickets"`
}

// Tickets returns the total number of tickets requested.
func (d RegistrationData) Tickets() int {
	return d.NumberOfAdultTickets + d.NumberOfChildTickets
}

// RegistrationRow is one data row of the ledger as read back from the store.
type RegistrationRow struct {
	// Index is the 0-based row position in the sheet. Not a stable identity.
	Index int

	SubmissionDate       string
	SessionID            string
	FirstName            string
	LastName             string
	PhoneNumber          string
	ConfirmationMethod   ConfirmationMethod
	Email                string
	Address              string
	NumberOfAdultTickets int
	NumberOfChildTickets int
	Total                string
	Balance              string
	ETransfer            string
	Cash                 string
	Notes                string
	InitialConfirmation  string
	FinalConfirmation    string
	CheckedIn            string
}

// Data returns the registrant-facing subset of the row.
func (r RegistrationRow) Data() RegistrationData {
	d := RegistrationData{
		FirstName:            r.FirstName,
		LastName:             r.LastName,
		PhoneNumber:          r.PhoneNumber,
		ConfirmationMethod:   r.ConfirmationMethod,
		NumberOfAdultTickets: r.NumberOfAdultTickets,
		NumberOfChildTickets: r.NumberOfChildTickets,
	}
	switch r.ConfirmationMethod {
	case MethodEmail:
		d.Email = r.Email
	case MethodMail:
		d.Address = r.Address
	}
	return d
}

// TicketStatus reports aggregate ticket usage. CurrentTotalTickets is nil
// when the ledger has no current data.
type TicketStatus struct {
	CurrentTotalTickets *int `json:"currentTotalTickets,omitempty"`
	MaxTotalTickets     int  `json:"maxTotalTickets"`
}

// AttendeeSummary is what the check-in desk sees after scanning a QR code.
type AttendeeSummary struct {
	SessionID            string  `json:"sessionId"`
	FirstName            string  `json:"firstName"`
	LastName             string  `json:"lastName"`
	PhoneNumber          string  `json:"phoneNumber"`
	NumberOfAdultTickets int     `json:"numberOfAdultTickets"`
	NumberOfChildTickets int     `json:"numberOfChildTickets"`
	RegistrationDate     string  `json:"registrationDate"`
	Notes                string  `json:"notes"`
	CheckedIn            *string `json:"checkedIn,omitempty"`
}

// MailTemplate selects which confirmation a mail-merge run sends.
type MailTemplate string

const (
	TemplateInitial MailTemplate = "initial"
	TemplateFinal   MailTemplate = "final"
)

// RowError records a per-row send failure. Row is the 1-based sheet row.
type RowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

// MailMergeResult summarises one mail-merge batch run.
type MailMergeResult struct {
	TotalProcessed int        `json:"totalProcessed"`
	SuccessCount   int        `json:"successCount"`
	FailureCount   int        `json:"failureCount"`
	Errors         []RowError `json:"errors"`
}

// CheckInPayload is the JSON body encoded into the check-in QR code.
type CheckInPayload struct {
	ID   string `json:"id"`
	Date string `json:"date"`
}

// Session is a freshly issued browsing session.
type Session struct {
	ID       string    `json:"sessionId"`
	IssuedAt time.Time `json:"issuedAt"`
}

// ErrorResponse is a standard JSON error envelope. Error carries a stable
// code where the operation defines one.
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}
