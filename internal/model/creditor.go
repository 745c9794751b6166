package model

import (
	"strings"
	"time"

	"github.com/ledgerline/billrun/internal/reference"
)

// Creditor is the payee printed on bills: the account holder of the IBAN
// payments are reconciled against.
type Creditor struct {
	CreatedAt time.Time
	Name      string
	City      string
	PostCode  string
	Country   string
	Email     string
	IBAN      string
	ID        int64
}

// Validate checks the creditor's fields and normalizes the IBAN to its
// canonical space-stripped form. After a successful call the IBAN is always
// stored canonically.
func (c *Creditor) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return validationErr("name", "cannot be empty")
	}
	if strings.TrimSpace(c.City) == "" {
		return validationErr("city", "cannot be empty")
	}
	if strings.TrimSpace(c.PostCode) == "" {
		return validationErr("pcode", "cannot be empty")
	}
	if len(c.Country) != 2 || c.Country != strings.ToUpper(c.Country) {
		return validationErr("country", "must be an ISO 3166-1 alpha-2 code")
	}
	if !strings.Contains(c.Email, "@") {
		return validationErr("email", "must be a valid email address")
	}
	iban, err := reference.NormalizeIBAN(c.IBAN)
	if err != nil {
		return validationWrap("iban", "invalid IBAN", err)
	}
	c.IBAN = iban
	return nil
}
