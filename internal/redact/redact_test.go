package redact

import (
	"strings"
	"testing"
)

func TestRedactSecrets(t *testing.T) {
	r := New("Welcome1", "s3cret")
	got := r.Redact("password=Welcome1 client_secret=s3cret")
	if strings.Contains(got, "Welcome1") || strings.Contains(got, "s3cret") {
		t.Fatalf("secret leaked: %s", got)
	}
	if got != "password=[REDACTED] client_secret=[REDACTED]" {
		t.Fatalf("unexpected output: %s", got)
	}
}

func TestRedactSessionCookies(t *testing.T) {
	r := New()
	got := r.Redact("Cookie: LWSSO_COOKIE_KEY=abc123def; HTTPOnly")
	if strings.Contains(got, "abc123def") {
		t.Fatalf("cookie leaked: %s", got)
	}
}

func TestEmptySecretIgnored(t *testing.T) {
	r := New("")
	if got := r.Redact("plain"); got != "plain" {
		t.Fatalf("unexpected output: %s", got)
	}
}
