package reference

import (
	"fmt"
	"strings"
)

// allowedIBANCountries are the country prefixes accepted for creditor
// accounts. QR-bill payment parts only support Swiss and Liechtenstein IBANs.
var allowedIBANCountries = map[string]bool{
	"CH": true,
	"LI": true,
}

// NormalizeIBAN strips spaces, uppercases, and checksum-validates an IBAN,
// returning its canonical form. The country prefix must be allowed and the
// ISO 7064 remainder must be 1.
func NormalizeIBAN(iban string) (string, error) {
	canonical := strings.ToUpper(strings.Join(strings.Fields(iban), ""))
	if len(canonical) < 15 || len(canonical) > 34 {
		return "", fmt.Errorf("invalid IBAN %q: length must be between 15 and 34", iban)
	}
	for i, r := range canonical {
		switch {
		case i < 2 && (r < 'A' || r > 'Z'):
			return "", fmt.Errorf("invalid IBAN %q: must start with a country code", iban)
		case i >= 2 && i < 4 && (r < '0' || r > '9'):
			return "", fmt.Errorf("invalid IBAN %q: check digits must be numeric", iban)
		case (r < 'A' || r > 'Z') && (r < '0' || r > '9'):
			return "", fmt.Errorf("invalid IBAN %q: illegal character %q", iban, r)
		}
	}
	country := canonical[:2]
	if !allowedIBANCountries[country] {
		return "", fmt.Errorf("invalid IBAN %q: country %s is not supported", iban, country)
	}
	// Move the country code and check digits to the end, then verify mod 97.
	rearranged := canonical[4:] + canonical[:4]
	if mod97(lettersToDigits(rearranged)) != 1 {
		return "", fmt.Errorf("invalid IBAN %q: checksum mismatch", iban)
	}
	return canonical, nil
}
