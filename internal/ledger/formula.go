package ledger

import (
	"strconv"
	"strings"
	"time"
)

// Named formulas understood by Evaluate.
const (
	FormulaRowTotal         = "=ROW_TOTAL()"
	FormulaRowBalance       = "=ROW_BALANCE()"
	FormulaTicketsSold      = "=TICKETS_SOLD()"
	FormulaTicketsRemaining = "=TICKETS_REMAINING()"
)

// Error values produced in place of a formula result.
const (
	ErrName  = "#NAME?"
	ErrValue = "#VALUE!"
	ErrRef   = "#REF!"
)

// IsFormula reports whether a raw cell holds a formula.
func IsFormula(raw string) bool {
	return strings.HasPrefix(raw, "=")
}

// IsError reports whether an evaluated cell holds an error value.
func IsError(v string) bool {
	return v == ErrName || v == ErrValue || v == ErrRef
}

// Evaluate returns a copy of raw with every formula cell replaced by its
// value. Literal cells are returned as stored.
func Evaluate(raw [][]string) [][]string {
	e := &evaluator{
		raw:   raw,
		memo:  make(map[[2]int]string),
		doing: make(map[[2]int]bool),
	}
	out := make([][]string, len(raw))
	for r, row := range raw {
		out[r] = make([]string, len(row))
		for c := range row {
			out[r][c] = e.cell(r, c)
		}
	}
	return out
}

type evaluator struct {
	raw   [][]string
	memo  map[[2]int]string
	doing map[[2]int]bool
}

func (e *evaluator) rawAt(r, c int) string {
	if r < 0 || r >= len(e.raw) || c < 0 || c >= len(e.raw[r]) {
		return ""
	}
	return e.raw[r][c]
}

func (e *evaluator) cell(r, c int) string {
	raw := e.rawAt(r, c)
	if !IsFormula(raw) {
		return raw
	}
	key := [2]int{r, c}
	if v, ok := e.memo[key]; ok {
		return v
	}
	if e.doing[key] {
		return ErrRef
	}
	e.doing[key] = true
	v := e.formula(r, raw)
	delete(e.doing, key)
	e.memo[key] = v
	return v
}

func (e *evaluator) formula(r int, raw string) string {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case FormulaRowTotal:
		return e.combine(
			term{CellAdultPrice.Row, CellAdultPrice.Col, 1},
			term{r, ColAdultTickets, 1},
			term{CellChildPrice.Row, CellChildPrice.Col, 1},
			term{r, ColChildTickets, 1},
		)
	case FormulaRowBalance:
		return e.sum(
			term{r, ColTotal, 1},
			term{r, ColETransfer, -1},
			term{r, ColCash, -1},
		)
	case FormulaTicketsSold:
		return formatNumber(float64(e.ticketsSold()))
	case FormulaTicketsRemaining:
		return e.sum(
			term{CellMaxTickets.Row, CellMaxTickets.Col, 1},
			term{CellTicketsSold.Row, CellTicketsSold.Col, -1},
		)
	default:
		return ErrName
	}
}

type term struct {
	row, col int
	sign     float64
}

// number evaluates a referenced cell as a number. Empty cells are 0.
func (e *evaluator) number(t term) (float64, string) {
	v := strings.TrimSpace(e.cell(t.row, t.col))
	if IsError(v) {
		return 0, v
	}
	if v == "" {
		return 0, ""
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, ErrValue
	}
	return f, ""
}

func (e *evaluator) sum(terms ...term) string {
	var total float64
	for _, t := range terms {
		f, errv := e.number(t)
		if errv != "" {
			return errv
		}
		total += t.sign * f
	}
	return formatNumber(total)
}

// combine evaluates pairs of terms as a sum of products: a*b + c*d + ...
func (e *evaluator) combine(terms ...term) string {
	var total float64
	for i := 0; i+1 < len(terms); i += 2 {
		a, errv := e.number(terms[i])
		if errv != "" {
			return errv
		}
		b, errv := e.number(terms[i+1])
		if errv != "" {
			return errv
		}
		total += a * b
	}
	return formatNumber(total)
}

// ticketsSold sums tickets over data rows that carry a session id, counting
// only the most recent submission of each session. Rows tied on the most
// recent date all count. Unparseable ticket counts count as 0.
func (e *evaluator) ticketsSold() int {
	type entry struct {
		at      time.Time
		tickets int
	}
	bySession := make(map[string][]entry)
	latest := make(map[string]time.Time)

	for r := FirstDataRow; r < len(e.raw); r++ {
		id := strings.TrimSpace(e.rawAt(r, ColSessionID))
		if id == "" {
			continue
		}
		at, _ := ParseDate(strings.TrimSpace(e.rawAt(r, ColSubmissionDate)))
		n := atoi(e.rawAt(r, ColAdultTickets)) + atoi(e.rawAt(r, ColChildTickets))
		bySession[id] = append(bySession[id], entry{at: at, tickets: n})
		if cur, ok := latest[id]; !ok || at.After(cur) {
			latest[id] = at
		}
	}

	total := 0
	for id, entries := range bySession {
		for _, en := range entries {
			if en.at.Equal(latest[id]) {
				total += en.tickets
			}
		}
	}
	return total
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
