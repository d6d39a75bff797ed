// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const (
	countryCode   = "593"
	defaultRegion = "EC"
	// canonicalLength is the country code plus a 9-digit national number.
	canonicalLength = 12
)

// Normalize canonicalizes a human-entered Ecuadorian number into the
// 12-digit dialable form 593XXXXXXXXX. It returns false when the input
// cannot be resolved to exactly that shape; it never guesses.
func Normalize(raw string) (string, bool) {
	digits := digitsOnly(raw)
	if digits == "" {
		return "", false
	}

	// 00 international prefix
	digits = strings.TrimPrefix(digits, "00")

	// 0XXXXXXXXX local format
	if len(digits) == 10 && digits[0] == '0' {
		digits = countryCode + digits[1:]
	}

	// 5930XXXXXXXXX: spurious trunk zero after the country code
	if strings.HasPrefix(digits, countryCode) && len(digits) == 13 && digits[3] == '0' {
		digits = countryCode + digits[4:]
	}

	// local number without trunk zero
	if !strings.HasPrefix(digits, countryCode) && (len(digits) == 9 || len(digits) == 10) {
		digits = countryCode + digits
	}

	if !strings.HasPrefix(digits, countryCode) || len(digits) != canonicalLength {
		return "", false
	}
	return digits, true
}

// Display formats a canonical number in international notation for logs and
// API responses. Numbers libphonenumber cannot parse fall back to +<digits>.
func Display(canonical string) string {
	trimmed := strings.TrimSpace(canonical)
	if trimmed == "" {
		return trimmed
	}

	number, err := phonenumbers.Parse("+"+strings.TrimPrefix(trimmed, "+"), defaultRegion)
	if err != nil || !phonenumbers.IsValidNumber(number) {
		return "+" + strings.TrimPrefix(trimmed, "+")
	}
	return phonenumbers.Format(number, phonenumbers.INTERNATIONAL)
}

func digitsOnly(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
