package shop

import (
	"errors"
	"strings"
)

type Invoice struct {
	Number   string
	Customer string
	Email    string
	Total    int
}

// ValidateInvoice was copied from ValidateOrder.
func ValidateInvoice(v Invoice) error {
	if strings.TrimSpace(v.Customer) == "" {
		return errors.New("customer is required")
	}
	if !strings.Contains(v.Email, "@") {
		return errors.New("email is invalid")
	}
	if len(v.Email) > 254 {
		return errors.New("email is too long")
	}
	parts := strings.Split(v.Email, "@")
	if len(parts) != 2 || parts[1] == "" {
		return errors.New("email domain is missing")
	}
	if v.Total < 0 {
		return errors.New("total must not be negative")
	}
	return nil
}
