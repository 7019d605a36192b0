// Package iban validates International Bank Account Numbers using the
// ISO 13616 mod-97 check.
package iban

import (
	"fmt"
	"math/big"
	"strings"
)

// CountryRule describes the national IBAN format for one country.
type CountryRule struct {
	// Length is the full IBAN length including country code and check digits.
	Length int
	// BBANPattern constrains the characters after the first four: each rune
	// is 'n' (digit), 'a' (uppercase letter) or 'c' (alphanumeric).
	BBANPattern string
}

// DefaultRules covers the markets the engine currently bills in.
var DefaultRules = map[string]CountryRule{
	"FR": {Length: 27, BBANPattern: strings.Repeat("n", 10) + strings.Repeat("c", 11) + "nn"},
	"DE": {Length: 22, BBANPattern: strings.Repeat("n", 18)},
	"BE": {Length: 16, BBANPattern: strings.Repeat("n", 12)},
	"ES": {Length: 24, BBANPattern: strings.Repeat("n", 20)},
	"NL": {Length: 18, BBANPattern: "aaaa" + strings.Repeat("n", 10)},
	"LU": {Length: 20, BBANPattern: "nnn" + strings.Repeat("c", 13)},
}

// Result is the outcome of a validation.
type Result struct {
	IsValid      bool   `json:"is_valid"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// Validator checks IBANs against a country rule table.
type Validator struct {
	rules map[string]CountryRule
}

// NewValidator creates a validator. A nil rule table falls back to DefaultRules.
func NewValidator(rules map[string]CountryRule) *Validator {
	if rules == nil {
		rules = DefaultRules
	}
	return &Validator{rules: rules}
}

var mod97Divisor = big.NewInt(97)

// Validate checks format, country rule and mod-97 checksum. It never panics;
// malformed input yields a descriptive Result instead.
func (v *Validator) Validate(iban string) Result {
	normalized := strings.ToUpper(strings.Join(strings.Fields(iban), ""))

	if len(normalized) < 4 {
		return invalid("iban must be at least 4 characters")
	}
	for _, r := range normalized {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return invalid(fmt.Sprintf("iban contains invalid character %q", r))
		}
	}

	country := normalized[:2]
	if country[0] < 'A' || country[0] > 'Z' || country[1] < 'A' || country[1] > 'Z' {
		return invalid("iban must start with a 2-letter country code")
	}
	check := normalized[2:4]
	if check[0] < '0' || check[0] > '9' || check[1] < '0' || check[1] > '9' {
		return invalid("check digits must be numeric")
	}

	rule, ok := v.rules[country]
	if !ok {
		return invalid(fmt.Sprintf("unsupported country code %s", country))
	}
	if len(normalized) != rule.Length {
		return invalid(fmt.Sprintf("iban for %s must be %d characters, got %d", country, rule.Length, len(normalized)))
	}
	if msg := matchBBAN(normalized[4:], rule.BBANPattern); msg != "" {
		return invalid(msg)
	}

	// Move the first four characters to the end, expand letters to numbers
	// (A=10..Z=35) and check the numeral mod 97 == 1. big.Int keeps this
	// exact for arbitrary lengths.
	rearranged := normalized[4:] + normalized[:4]
	var numeral strings.Builder
	for _, r := range rearranged {
		if r >= 'A' && r <= 'Z' {
			fmt.Fprintf(&numeral, "%d", r-'A'+10)
		} else {
			numeral.WriteRune(r)
		}
	}

	n, ok := new(big.Int).SetString(numeral.String(), 10)
	if !ok {
		return invalid("iban checksum could not be computed")
	}
	if new(big.Int).Mod(n, mod97Divisor).Int64() != 1 {
		return invalid("iban checksum is invalid")
	}
	return Result{IsValid: true}
}

func matchBBAN(bban, pattern string) string {
	if len(bban) != len(pattern) {
		return "iban national part has unexpected length"
	}
	for i := 0; i < len(bban); i++ {
		c := bban[i]
		switch pattern[i] {
		case 'n':
			if c < '0' || c > '9' {
				return fmt.Sprintf("iban position %d must be a digit", i+5)
			}
		case 'a':
			if c < 'A' || c > 'Z' {
				return fmt.Sprintf("iban position %d must be a letter", i+5)
			}
		}
	}
	return ""
}

func invalid(msg string) Result {
	return Result{IsValid: false, ErrorMessage: msg}
}
