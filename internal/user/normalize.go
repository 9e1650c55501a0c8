package user

import "strings"

// NormalizeEmail lowercases and trims an email address. Every lookup and
// every stored email goes through this, making email comparison
// case-insensitive everywhere.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeTaxID strips common separators and uppercases a national tax id
// so that "pt 123-456" and "PT123456" compare equal.
func NormalizeTaxID(taxID string) string {
	var b strings.Builder
	for _, r := range taxID {
		switch r {
		case ' ', '-', '.', '/':
			continue
		default:
			b.WriteRune(r)
		}
	}
	return strings.ToUpper(b.String())
}
