// Package qr renders Swiss QR-bill payment parts for outgoing bills.
package qr

import (
	"fmt"
	"strings"

	"github.com/ledgerline/billrun/internal/model"
)

// Swiss Payment Code framing, per the SIX Swiss QR-bill implementation
// guidelines v2.2.
const (
	spcHeader   = "SPC"
	spcVersion  = "0200"
	spcCoding   = "1"
	spcTrailer  = "EPD"
	addressType = "K" // combined address: name plus two free lines

	// referenceTypeSCOR marks an ISO 11649 creditor reference.
	referenceTypeSCOR = "SCOR"
)

// BuildPayload assembles the Swiss Payment Code for a bill: the
// newline-separated field list that gets encoded into the QR code.
func BuildPayload(bill *model.Bill, creditor *model.Creditor) (string, error) {
	if bill.ReferenceNumber == "" {
		return "", fmt.Errorf("bill %s has no reference number", bill.ID)
	}
	if creditor.IBAN == "" {
		return "", fmt.Errorf("creditor %d has no IBAN", creditor.ID)
	}

	fields := []string{
		spcHeader,
		spcVersion,
		spcCoding,
		creditor.IBAN,

		// Creditor, combined address format.
		addressType,
		creditor.Name,
		"",
		creditor.PostCode + " " + creditor.City,
		"",
		"",
		creditor.Country,

		// Ultimate creditor, unused.
		"", "", "", "", "", "", "",

		bill.Amount.StringFixed(2),
		bill.Currency,

		// Ultimate debtor, unused.
		"", "", "", "", "", "", "",

		referenceTypeSCOR,
		bill.ReferenceNumber,

		bill.Description,
		spcTrailer,
	}
	return strings.Join(fields, "\n"), nil
}
