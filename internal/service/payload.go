package service

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/Shivanand-hulikatti/registration-ledger/internal/model"
)

// maxTicketsPerField caps a single ticket count well before int overflow.
const maxTicketsPerField = math.MaxInt32

// ParseRegistration turns an untyped form payload into a validated value.
// Strings are trimmed; the contact field not selected by the confirmation
// method is dropped.
func ParseRegistration(raw any) (model.RegistrationData, error) {
	obj, ok := raw.(map[string]any)
	if !ok || obj == nil {
		return model.RegistrationData{}, &PayloadError{Field: "formData", Reason: "must be an object"}
	}

	var d model.RegistrationData
	var err error
	if d.FirstName, err = requiredString(obj, "firstName"); err != nil {
		return model.RegistrationData{}, err
	}
	if d.LastName, err = requiredString(obj, "lastName"); err != nil {
		return model.RegistrationData{}, err
	}
	if d.PhoneNumber, err = requiredString(obj, "phoneNumber"); err != nil {
		return model.RegistrationData{}, err
	}

	method, err := requiredString(obj, "confirmationMethod")
	if err != nil {
		return model.RegistrationData{}, err
	}
	switch d.ConfirmationMethod = model.ConfirmationMethod(method); d.ConfirmationMethod {
	case model.MethodEmail:
		if d.Email, err = requiredString(obj, "email"); err != nil {
			return model.RegistrationData{}, err
		}
	case model.MethodMail:
		if d.Address, err = requiredString(obj, "address"); err != nil {
			return model.RegistrationData{}, err
		}
	default:
		return model.RegistrationData{}, &PayloadError{Field: "confirmationMethod", Reason: `must be "email" or "mail"`}
	}

	if d.NumberOfAdultTickets, err = ticketCount(obj, "numberOfAdultTickets"); err != nil {
		return model.RegistrationData{}, err
	}
	if d.NumberOfChildTickets, err = ticketCount(obj, "numberOfChildTickets"); err != nil {
		return model.RegistrationData{}, err
	}
	return d, nil
}

func requiredString(obj map[string]any, field string) (string, error) {
	v, ok := obj[field]
	if !ok {
		return "", &PayloadError{Field: field, Reason: "is required"}
	}
	s, ok := v.(string)
	if !ok {
		return "", &PayloadError{Field: field, Reason: "must be a string"}
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", &PayloadError{Field: field, Reason: "must not be empty"}
	}
	return s, nil
}

func ticketCount(obj map[string]any, field string) (int, error) {
	v, ok := obj[field]
	if !ok {
		return 0, &PayloadError{Field: field, Reason: "is required"}
	}
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, &PayloadError{Field: field, Reason: "must be a number"}
		}
		f = parsed
	default:
		return 0, &PayloadError{Field: field, Reason: "must be a number"}
	}
	switch {
	case math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f):
		return 0, &PayloadError{Field: field, Reason: "must be a whole number"}
	case f < 0:
		return 0, &PayloadError{Field: field, Reason: "must not be negative"}
	case f > maxTicketsPerField:
		return 0, &PayloadError{Field: field, Reason: "is too large"}
	}
	return int(f), nil
}
