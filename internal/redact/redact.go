// Package redact scrubs credentials and session cookies from strings bound
// for log output.
package redact

import (
	"regexp"
	"strings"
)

// Session cookie values are opaque server tokens; hide them wholesale.
var cookiePattern = regexp.MustCompile(`(LWSSO_COOKIE_KEY|OCTANE_USER)=[^;,\s]+`)

// Redactor replaces configured secret values and known session cookie
// values in strings.
type Redactor struct {
	secrets []string
}

func New(secrets ...string) *Redactor {
	r := &Redactor{}
	r.AddSecrets(secrets)
	return r
}

func (r *Redactor) AddSecrets(secrets []string) {
	for _, s := range secrets {
		if s != "" {
			r.secrets = append(r.secrets, s)
		}
	}
}

func (r *Redactor) Redact(input string) string {
	out := input
	for _, secret := range r.secrets {
		out = strings.ReplaceAll(out, secret, "[REDACTED]")
	}
	return cookiePattern.ReplaceAllString(out, "$1=[REDACTED]")
}
