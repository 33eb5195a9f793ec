// Package redact strips sensitive values from strings before they reach logs
// or error responses. Errors bubbling up from the database layer, the token
// service or the filesystem can carry connection strings, JWTs, password
// hashes and library paths; everything logged through the API layer passes
// through here first.
package redact

import "regexp"

// Redaction placeholders
const (
	RedactionPlaceholder          = "[REDACTED]"
	RedactedPathPlaceholder       = "[REDACTED_PATH]"
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedTokenPlaceholder      = "[REDACTED_TOKEN]"
)

// Precompiled patterns, applied in order.
var (
	// Database connection strings with inline credentials
	dbConnRegex = regexp.MustCompile(`(?i)(postgres|postgresql)://[^@\s]+@`)

	// JWTs: three dot-separated base64url segments starting with the
	// standard {"alg"... header prefix
	jwtRegex = regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`)

	// Bearer authorization values
	bearerRegex = regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9_\-.~+/]+=*`)

	// bcrypt hashes, as stored for the operator password
	bcryptRegex = regexp.MustCompile(`\$2[aby]\$\d{2}\$[./A-Za-z0-9]{53}`)

	// Password and secret key/value fragments
	secretKVRegex = regexp.MustCompile(
		`(?i)(password|passwd|secret|api[_-]?key|token)(['"\s:=]+)[^'"&\s]{3,}`,
	)

	// Absolute filesystem paths, such as library file locations
	pathRegex = regexp.MustCompile(`(/[\w.-]+){2,}`)

	patterns = []struct {
		re          *regexp.Regexp
		placeholder string
	}{
		{dbConnRegex, RedactedCredentialPlaceholder},
		{jwtRegex, RedactedTokenPlaceholder},
		{bearerRegex, RedactedTokenPlaceholder},
		{bcryptRegex, RedactedCredentialPlaceholder},
		{secretKVRegex, RedactedCredentialPlaceholder},
		{pathRegex, RedactedPathPlaceholder},
	}
)

// String redacts sensitive values from the input string.
func String(input string) string {
	if input == "" {
		return input
	}

	result := input
	for _, p := range patterns {
		result = p.re.ReplaceAllString(result, p.placeholder)
	}
	return result
}

// Error redacts sensitive values from an error's Error() output.
// A nil error yields an empty string.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
