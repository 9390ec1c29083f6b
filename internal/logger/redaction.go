package logger

import (
	"io"
	"regexp"
)

const redacted = "[REDACTED]"

type rule struct {
	re   *regexp.Regexp
	repl string
}

// Redactor masks credentials before log lines reach their writer
type Redactor struct {
	rules []rule
}

// NewRedactor creates a new redactor with default patterns
func NewRedactor() *Redactor {
	return &Redactor{
		rules: []rule{
			// JSON fields such as "account_password":"..." keep their key
			{regexp.MustCompile(`("[A-Za-z0-9_]*(?:password|passwd|secret|token)[A-Za-z0-9_]*"\s*:\s*)"(?:[^"\\]|\\.)*"`), `${1}"` + redacted + `"`},

			// key=value and key: value forms
			{regexp.MustCompile(`(?i)\b((?:[a-z0-9_]*password|passwd|pwd|secret|token)\s*[=:]\s*)[^\s",&]+`), `${1}` + redacted},

			// Authorization headers
			{regexp.MustCompile(`(?i)\b(Basic|Bearer)\s+[A-Za-z0-9._~+/=-]+`), `${1} ` + redacted},

			// user:password@ in URLs
			{regexp.MustCompile(`(://[^/\s:@]+:)[^@\s/]+@`), `${1}` + redacted + `@`},

			// AWS keys
			{regexp.MustCompile(`AKIA[0-9A-Z]{16}`), redacted},
		},
	}
}

// AddPattern adds a pattern whose matches are replaced entirely
func (r *Redactor) AddPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	r.rules = append(r.rules, rule{re: re, repl: redacted})
	return nil
}

// Redact masks sensitive information in s
func (r *Redactor) Redact(s string) string {
	result := s
	for _, rule := range r.rules {
		result = rule.re.ReplaceAllString(result, rule.repl)
	}
	return result
}

// Wrap wraps an io.Writer to redact sensitive information
func (r *Redactor) Wrap(w io.Writer) io.Writer {
	return &redactingWriter{
		writer:   w,
		redactor: r,
	}
}

type redactingWriter struct {
	writer   io.Writer
	redactor *Redactor
}

// Write reports len(p) on success; the redacted line length may differ.
func (w *redactingWriter) Write(p []byte) (int, error) {
	if _, err := w.writer.Write([]byte(w.redactor.Redact(string(p)))); err != nil {
		return 0, err
	}
	return len(p), nil
}
