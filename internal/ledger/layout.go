// Package ledger knows the layout of the registrations sheet: where the
// header region ends, what each column holds, how new rows are laid out and
// how the derived formula cells evaluate.
package ledger

import (
	"strconv"
	"time"

	"github.com/Shivanand-hulikatti/registration-ledger/internal/model"
	"github.com/Shivanand-hulikatti/registration-ledger/internal/repository"
)

// DefaultSheetName is the sheet that holds registrations.
const DefaultSheetName = "Registrations"

// FirstDataRow is the 0-based index of the first registration row. Rows
// before it are the summary and title region.
const FirstDataRow = 4

// Column indices. Reordering them is a breaking change for stored ledgers.
const (
	ColTotal = iota
	ColBalance
	ColETransfer
	ColCash
	ColNotes
	ColSpacer
	ColSubmissionDate
	ColSessionID
	ColFirstName
	ColLastName
	ColPhoneNumber
	ColConfirmationMethod
	ColEmail
	ColAddress
	ColAdultTickets
	ColChildTickets
	ColInitialConfirmation
	ColFinalConfirmation
	ColCheckedIn

	NumColumns
)

// Summary cells in the second sheet row.
var (
	CellTicketsSold      = repository.Cell{Row: 1, Col: 0}
	CellMaxTickets       = repository.Cell{Row: 1, Col: 1}
	CellTicketsRemaining = repository.Cell{Row: 1, Col: 2}
	CellAdultPrice       = repository.Cell{Row: 1, Col: 3}
	CellChildPrice       = repository.Cell{Row: 1, Col: 4}
)

// DateLayout is used for every stored timestamp and for re-parsing them.
const DateLayout = "2006-01-02 03:04:05 PM -07:00"

// DeadlineLayout is the date-only rendering used for payment deadlines.
const DeadlineLayout = "2006-01-02 -07:00"

// FormatDate renders t in loc using DateLayout.
func FormatDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateLayout)
}

// ParseDate parses a stored timestamp.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

var columnTitles = []string{
	"Total",
	"Balance",
	"ETransfer",
	"Cash",
	"Notes",
	"",
	"Submission Date",
	"Session ID",
	"First Name",
	"Last Name",
	"Phone Number",
	"Confirmation Method",
	"Email",
	"Address",
	"Number of Adult Tickets",
	"Number of Child Tickets",
	"Confirmation 1",
	"Confirmation 2",
	"Checked In",
}

// Header returns the four rows that precede the data region.
func Header(maxTickets, adultPrice, childPrice string) [][]string {
	labels := blankRow()
	copy(labels, []string{
		"Total Tickets",
		"Max Total Tickets",
		"Remaining Tickets",
		"Adult Ticket Price",
		"Child Ticket Price",
	})

	values := blankRow()
	values[CellTicketsSold.Col] = FormulaTicketsSold
	values[CellMaxTickets.Col] = maxTickets
	values[CellTicketsRemaining.Col] = FormulaTicketsRemaining
	values[CellAdultPrice.Col] = adultPrice
	values[CellChildPrice.Col] = childPrice

	titles := make([]string, NumColumns)
	copy(titles, columnTitles)

	return [][]string{labels, values, blankRow(), titles}
}

// NewRow lays out a registration as a raw sheet row. Total and Balance are
// formulas so later edits to prices or payments stay consistent.
func NewRow(submissionDate, sessionID string, d model.RegistrationData) []string {
	row := blankRow()
	row[ColTotal] = FormulaRowTotal
	row[ColBalance] = FormulaRowBalance
	row[ColSubmissionDate] = submissionDate
	row[ColSessionID] = sessionID
	row[ColFirstName] = d.FirstName
	row[ColLastName] = d.LastName
	row[ColPhoneNumber] = d.PhoneNumber
	row[ColConfirmationMethod] = string(d.ConfirmationMethod)
	row[ColEmail] = d.Email
	row[ColAddress] = d.Address
	row[ColAdultTickets] = strconv.Itoa(d.NumberOfAdultTickets)
	row[ColChildTickets] = strconv.Itoa(d.NumberOfChildTickets)
	return row
}

func blankRow() []string {
	return make([]string, NumColumns)
}
