package audit

import "strings"

const maskedDomain = "***"

// MaskEmail hides an address before it reaches the audit store. The local part
// keeps its first and last character, every character between them becomes '*',
// and the domain is dropped: alice@x.com -> a***e@***. Local parts of one or two
// characters keep only the first: jo@x.com -> j***@***. A value without '@' is
// treated as a bare local part.
func MaskEmail(email string) string {
	email = strings.TrimSpace(email)
	if email == "" {
		return ""
	}
	local := email
	if i := strings.LastIndexByte(email, '@'); i >= 0 {
		local = email[:i]
	}
	r := []rune(local)
	switch {
	case len(r) == 0:
		return "***@" + maskedDomain
	case len(r) <= 2:
		return string(r[0]) + "***@" + maskedDomain
	default:
		return string(r[0]) + strings.Repeat("*", len(r)-2) + string(r[len(r)-1]) + "@" + maskedDomain
	}
}
