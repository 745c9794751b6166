// Package reference implements ISO 11649 structured creditor references
// (RF references) with ISO 7064 Mod 97-10 check digits. The same reference
// string is minted when a bill is first saved and later re-identified inside
// bank statement text during payment reconciliation.
package reference

import (
	"fmt"
	"strings"
	"time"
)

// MaxLength is the maximum length of a complete RF reference: "RF", two
// check digits, and up to 23 reference characters.
const MaxLength = 27

// maxSeedLength is the longest cleaned seed that still fits in MaxLength.
const maxSeedLength = MaxLength - 4

// Cleanup converts text to uppercase and removes every character that is not
// an ASCII letter or digit. It is idempotent.
func Cleanup(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToUpper(text) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// lettersToDigits maps letters to their base-36 values as two decimal digits
// (A=10 .. Z=35). Digits pass through unchanged; anything else is dropped.
// The result is only ever an intermediate value for checksum calculation.
func lettersToDigits(text string) string {
	var b strings.Builder
	b.Grow(len(text) * 2)
	for _, r := range text {
		switch {
		case r >= 'A' && r <= 'Z':
			fmt.Fprintf(&b, "%d", r-'A'+10)
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// mod97 computes the remainder of an arbitrarily long decimal digit string
// modulo 97 without ever materializing it as a single integer.
func mod97(digits string) int {
	r := 0
	for _, d := range digits {
		r = (r*10 + int(d-'0')) % 97
	}
	return r
}

// checkDigits computes the two ISO 7064 Mod 97-10 check digits for a digit
// string: 98 minus the remainder of the string followed by "00", zero-padded.
func checkDigits(digits string) string {
	r := mod97(digits)
	r = (r * 100) % 97
	return fmt.Sprintf("%02d", 98-r)
}

// Generate builds an RF creditor reference from a seed. The seed is cleaned,
// "RF" is appended to its end for checksum calculation per ISO 7064, and the
// result is "RF" + check digits + cleaned seed. The full reference, converted
// back to digits with the check digits in place, leaves remainder 1 mod 97.
func Generate(seed string) (string, error) {
	clean := Cleanup(seed)
	if len(clean) > maxSeedLength {
		return "", fmt.Errorf("reference seed %q exceeds %d characters after cleanup", seed, maxSeedLength)
	}
	cc := checkDigits(lettersToDigits(clean + "RF"))
	return "RF" + cc + clean, nil
}

// Validate reports whether ref is a well-formed RF reference whose check
// digits are consistent with its body.
func Validate(ref string) bool {
	if len(ref) < 4 || len(ref) > MaxLength {
		return false
	}
	if ref[:2] != "RF" {
		return false
	}
	cc := ref[2:4]
	if cc[0] < '0' || cc[0] > '9' || cc[1] < '0' || cc[1] > '9' {
		return false
	}
	body := ref[4:]
	if body != Cleanup(body) {
		return false
	}
	return checkDigits(lettersToDigits(body+"RF")) == cc
}

// ForBill derives the reference for a bill: the first 4 cleaned characters of
// its description, the billing date as YYYYMMDD, and the first 9 cleaned
// characters of the recipient's email, in that order.
func ForBill(description string, billingDate time.Time, contactEmail string) (string, error) {
	info := Cleanup(description)
	if len(info) > 4 {
		info = info[:4]
	}
	contact := Cleanup(contactEmail)
	if len(contact) > 9 {
		contact = contact[:9]
	}
	return Generate(info + billingDate.Format("20060102") + contact)
}
