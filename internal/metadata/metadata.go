// Package metadata holds the admin-editable settings of the registration
// route. Every field has a declared type and default; a configured value
// overrides the default when it is non-empty.
package metadata

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Field names of the registration route.
const (
	MaxTickets       = "MAX_TICKETS"
	TicketPriceAdult = "TICKET_PRICE_ADULT"
	TicketPriceChild = "TICKET_PRICE_CHILD"
	Currency         = "CURRENCY"
	EventYear        = "EVENT_YEAR"
	EventName        = "EVENT_NAME"
	ContactEmail     = "CONTACT_EMAIL"
	ETransferEmail   = "ETRANSFER_EMAIL"
	CashAddress      = "CASH_ADDRESS"
)

// Type is the declared type of a field.
type Type string

const (
	TypeNumber Type = "number"
	TypeString Type = "string"
	TypeEmail  Type = "email"
)

// Field declares one metadata entry.
type Field struct {
	Name    string `json:"name"`
	Type    Type   `json:"type"`
	Default string `json:"defaultValue"`
}

// RegistrationFields are the fields of the registration route.
var RegistrationFields = []Field{
	{Name: MaxTickets, Type: TypeNumber, Default: "0"},
	{Name: TicketPriceAdult, Type: TypeNumber, Default: "0"},
	{Name: TicketPriceChild, Type: TypeNumber, Default: "0"},
	{Name: Currency, Type: TypeString, Default: "CAD"},
	{Name: EventYear, Type: TypeNumber, Default: "2026"},
	{Name: EventName, Type: TypeString, Default: "Tết Việt"},
	{Name: ContactEmail, Type: TypeEmail},
	{Name: ETransferEmail, Type: TypeEmail},
	{Name: CashAddress, Type: TypeString},
}

// Provider reads metadata values.
type Provider interface {
	Get(name string) string
}

// Registry is a Provider over a fixed set of declared fields.
type Registry struct {
	fields map[string]Field
	values map[string]string
}

// New builds a Registry. Value keys are matched case-insensitively.
func New(fields []Field, values map[string]string) *Registry {
	r := &Registry{
		fields: make(map[string]Field, len(fields)),
		values: make(map[string]string, len(values)),
	}
	for _, f := range fields {
		r.fields[f.Name] = f
	}
	for k, v := range values {
		r.values[strings.ToUpper(k)] = v
	}
	return r
}

// Get returns the configured value, else the declared default, else "".
func (r *Registry) Get(name string) string {
	if v := strings.TrimSpace(r.values[name]); v != "" {
		return v
	}
	return r.fields[name].Default
}

// Fields lists the declared fields sorted by name.
func (r *Registry) Fields() []Field {
	out := make([]Field, 0, len(r.fields))
	for _, f := range r.fields {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Validate checks configured values against their declared types and
// rejects unknown names.
func (r *Registry) Validate() error {
	for name, v := range r.values {
		f, ok := r.fields[name]
		if !ok {
			return fmt.Errorf("unknown metadata field %q", name)
		}
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		switch f.Type {
		case TypeNumber:
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				return fmt.Errorf("metadata %s: %q is not a number", name, v)
			}
		case TypeEmail:
			if !strings.Contains(v, "@") {
				return fmt.Errorf("metadata %s: %q is not an email address", name, v)
			}
		}
	}
	return nil
}

// Int reads name as an integer. Values that do not parse yield 0.
func Int(p Provider, name string) int {
	f, err := strconv.ParseFloat(strings.TrimSpace(p.Get(name)), 64)
	if err != nil {
		return 0
	}
	return int(f)
}
