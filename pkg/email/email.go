// Package email holds small helpers for working with email addresses.
package email

import (
	"strings"
	"unicode"
)

// Domain returns the lowercased part after the last "@", or "" when there is
// none.
func Domain(address string) string {
	address = strings.TrimSpace(address)
	at := strings.LastIndexByte(address, '@')
	if at < 0 || at == len(address)-1 {
		return ""
	}
	return strings.ToLower(address[at+1:])
}

// DisplayName derives a readable name from the local part, for accounts
// without one: "ada.lovelace@x" becomes "Ada Lovelace".
func DisplayName(address string) string {
	localPart := strings.TrimSpace(address)
	if at := strings.IndexByte(localPart, '@'); at >= 0 {
		localPart = localPart[:at]
	}

	parts := strings.FieldsFunc(localPart, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})
	if len(parts) == 0 {
		return "User"
	}
	for i, p := range parts {
		parts[i] = capitalize(p)
	}
	return strings.Join(parts, " ")
}

func capitalize(s string) string {
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
