package validation

import (
	"regexp"
	"strings"
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Account names: letters, spaces, hyphens, apostrophes and dots (bank short forms like "Obi A.").
var accountNameRe = regexp.MustCompile(`^[A-Za-z\s\-'.]+$`)

// NUBAN account numbers are exactly 10 digits.
var accountNumberRe = regexp.MustCompile(`^\d{10}$`)

// CBN bank codes are 3 digits; microfinance and fintech codes run to 6.
var bankCodeRe = regexp.MustCompile(`^\d{3,6}$`)

func IsValidEmail(email string) bool {
	return emailRe.MatchString(email)
}

func IsValidAccountName(name string) bool {
	name = strings.TrimSpace(name)
	return name != "" && accountNameRe.MatchString(name)
}

func IsValidAccountNumber(n string) bool {
	return accountNumberRe.MatchString(strings.TrimSpace(n))
}

func IsValidBankCode(code string) bool {
	return bankCodeRe.MatchString(strings.TrimSpace(code))
}
