package ledger

import (
	"strings"

	"github.com/Shivanand-hulikatti/registration-ledger/internal/model"
)

// ParseRow maps evaluated cells at sheet index to a RegistrationRow. Missing
// trailing cells read as empty.
func ParseRow(index int, cells []string) model.RegistrationRow {
	at := func(c int) string {
		if c >= len(cells) {
			return ""
		}
		return cells[c]
	}
	return model.RegistrationRow{
		Index:                index,
		SubmissionDate:       at(ColSubmissionDate),
		SessionID:            at(ColSessionID),
		FirstName:            at(ColFirstName),
		LastName:             at(ColLastName),
		PhoneNumber:          at(ColPhoneNumber),
		ConfirmationMethod:   model.ConfirmationMethod(at(ColConfirmationMethod)),
		Email:                at(ColEmail),
		Address:              at(ColAddress),
		NumberOfAdultTickets: atoi(at(ColAdultTickets)),
		NumberOfChildTickets: atoi(at(ColChildTickets)),
		Total:                at(ColTotal),
		Balance:              at(ColBalance),
		ETransfer:            at(ColETransfer),
		Cash:                 at(ColCash),
		Notes:                at(ColNotes),
		InitialConfirmation:  at(ColInitialConfirmation),
		FinalConfirmation:    at(ColFinalConfirmation),
		CheckedIn:            at(ColCheckedIn),
	}
}

// DataRows parses every row past the header region.
func DataRows(values [][]string) []model.RegistrationRow {
	if len(values) <= FirstDataRow {
		return nil
	}
	rows := make([]model.RegistrationRow, 0, len(values)-FirstDataRow)
	for i := FirstDataRow; i < len(values); i++ {
		rows = append(rows, ParseRow(i, values[i]))
	}
	return rows
}

// FindBySession returns the most recent row for sessionID. The scan runs from
// the last row backwards.
func FindBySession(rows []model.RegistrationRow, sessionID string) (model.RegistrationRow, bool) {
	for i := len(rows) - 1; i >= 0; i-- {
		if strings.TrimSpace(rows[i].SessionID) == sessionID {
			return rows[i], true
		}
	}
	return model.RegistrationRow{}, false
}
