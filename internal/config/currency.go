package config

import "golang.org/x/text/currency"

// ValidCurrencyCode reports whether code is an ISO 4217 alphabetic code
// known to the currency tables or a three digit numeric code.
func ValidCurrencyCode(code string) bool {
	if isNumericCode(code) {
		return true
	}
	return ValidAlphaCurrencyCode(code)
}

// ValidAlphaCurrencyCode reports whether code is an upper-case ISO 4217
// alphabetic code.
func ValidAlphaCurrencyCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	_, err := currency.ParseISO(code)
	return err == nil
}

func isNumericCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
