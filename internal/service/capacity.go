package service

import (
	"strconv"
	"strings"

	"github.com/Shivanand-hulikatti/registration-ledger/internal/ledger"
	"github.com/Shivanand-hulikatti/registration-ledger/internal/model"
)

// computeCurrentTotal reads the evaluated tickets-sold cell. ok is false when
// the ledger does not exist or the cell is not a number.
func computeCurrentTotal(values [][]string) (total int, ok bool) {
	c := ledger.CellTicketsSold
	if c.Row >= len(values) || c.Col >= len(values[c.Row]) {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(values[c.Row][c.Col]), 64)
	if err != nil {
		return 0, false
	}
	return int(f), true
}

func wouldExceedCapacity(current, requested, limit int) bool {
	return current+requested > limit
}

// findDuplicate reports whether phone, or email when the new registration
// confirms by email, already appears in the ledger.
func findDuplicate(rows []model.RegistrationRow, phone string, method model.ConfirmationMethod, email string) bool {
	for _, row := range rows {
		if strings.TrimSpace(row.PhoneNumber) == phone {
			return true
		}
		if method == model.MethodEmail {
			existing := strings.TrimSpace(row.Email)
			if existing != "" && strings.EqualFold(existing, email) {
				return true
			}
		}
	}
	return false
}
