package redact

import (
	"regexp"
)

// Placeholder replaces every redacted span.
const Placeholder = "[REDACTED]"

// credential is one kind of secret that must never reach a log file.
type credential struct {
	kind string
	re   *regexp.Regexp
}

var credentials = []credential{
	{"aws_assignment", regexp.MustCompile(`(?i)(aws_access_key_id|aws_secret_access_key|aws_session_token)\s*[=:]\s*['"]?[A-Za-z0-9/+=]{20,}['"]?`)},
	{"aws_access_key", regexp.MustCompile(`AKIA[0-9A-Z]{16}`)},
	{"github_assignment", regexp.MustCompile(`(?i)(github_token|gh_token|github_pat)\s*[=:]\s*['"]?[A-Za-z0-9_-]{30,}['"]?`)},
	{"github_token", regexp.MustCompile(`gh[pousr]_[A-Za-z0-9]{36}`)},
	{"provider_key", regexp.MustCompile(`\bsk-[A-Za-z0-9_-]{6,}`)},
	{"stripe_key", regexp.MustCompile(`[sr]k_live_[0-9a-zA-Z]{24}`)},
	{"slack_token", regexp.MustCompile(`xox[baprs]-[0-9]{10,13}-[0-9]{10,13}[a-zA-Z0-9-]*`)},
	{"api_key_assignment", regexp.MustCompile(`(?i)(api_key|apikey|api-key|secret_key|secretkey|secret-key|access_token|auth_token)\s*[=:]\s*['"]?[A-Za-z0-9_-]{16,}['"]?`)},
	{"private_key", regexp.MustCompile(`-----BEGIN (RSA |EC |DSA |OPENSSH |PGP )?PRIVATE KEY-----`)},
	{"bearer_token", regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9_-]{20,}`)},
	{"url_credentials", regexp.MustCompile(`https?://[^:/\s]+:[^@\s]+@`)},
	{"password_assignment", regexp.MustCompile(`(?i)(password|passwd|pwd|secret)\s*[=:]\s*['"]?[^\s'"]{8,}['"]?`)},
}

// Redact scrubs credentials from free text before it is written to a log.
func Redact(input string) string {
	for _, c := range credentials {
		input = c.re.ReplaceAllLiteralString(input, Placeholder)
	}
	return input
}

// Kinds reports which credential kinds occur in input, in table order.
func Kinds(input string) []string {
	var kinds []string
	for _, c := range credentials {
		if c.re.MatchString(input) {
			kinds = append(kinds, c.kind)
		}
	}
	return kinds
}
