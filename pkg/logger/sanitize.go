package logger

import "strings"

// mask replaces all but the first character of s with asterisks.
func mask(s string) string {
	if len(s) <= 1 {
		return s
	}
	return s[:1] + strings.Repeat("*", len(s)-1)
}

// maskDomain stars every label except the last one, so the TLD stays
// readable while the rest of the domain does not.
func maskDomain(domain string) string {
	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return domain
	}
	for i := range labels[:len(labels)-1] {
		labels[i] = strings.Repeat("*", len(labels[i]))
	}
	return strings.Join(labels, ".")
}

// SanitizedIdentity masks an identity for logging. Email-shaped
// identities keep the first character and the TLD ("t***@*******.com");
// opaque principals keep the first character only.
func SanitizedIdentity(identity string) string {
	parts := strings.Split(identity, "@")
	if len(parts) != 2 {
		return mask(identity)
	}
	return mask(parts[0]) + "@" + maskDomain(parts[1])
}

// sensitiveParams are substrings that mark a query string as carrying
// credentials or identity material. Matching is by substring, so
// "api_key" also trips on "x-api-key".
var sensitiveParams = []string{
	"password",
	"token",
	"secret",
	"api_key",
	"apikey",
	"identity",
	"email",
	"auth",
	"code",
}

// SanitizeQueryString reports whether a raw query string names a
// sensitive parameter and should be redacted wholesale.
func SanitizeQueryString(rawQuery string) bool {
	query := strings.ToLower(rawQuery)
	for _, param := range sensitiveParams {
		if strings.Contains(query, param) {
			return true
		}
	}
	return false
}
