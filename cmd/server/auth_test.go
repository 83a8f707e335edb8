package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/somersetwc/website/internal/seed"
	"github.com/somersetwc/website/internal/testdb"
)

func TestSessionValueRoundTrip(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	auth := newAuthService(nil, "secret", false)
	auth.now = func() time.Time { return now }

	value := auth.createSessionValue("admin@example.com")
	email, ok := auth.verifySessionValue(value)
	if !ok || email != "admin@example.com" {
		t.Fatalf("expected valid session, got %q %v", email, ok)
	}

	now = now.Add(sessionLifetime)
	if _, ok := auth.verifySessionValue(value); ok {
		t.Fatalf("expected session to expire")
	}
}

func TestSessionValueRejectsTampering(t *testing.T) {
	auth := newAuthService(nil, "secret", false)
	value := auth.createSessionValue("admin@example.com")
	payload, sig, _ := strings.Cut(value, ".")

	other := newAuthService(nil, "other-secret", false)
	for name, v := range map[string]string{
		"no separator":  payload,
		"bad hex":       payload + ".zz",
		"other payload": "YWRtaW4." + sig,
		"other secret":  other.createSessionValue("admin@example.com"),
	} {
		if _, ok := auth.verifySessionValue(v); ok {
			t.Fatalf("%s: expected session to be rejected", name)
		}
	}
}

func TestValidateCredentials(t *testing.T) {
	database := testdb.Open(t)
	if _, err := seed.Run(database, seed.Config{AdminEmail: "admin@example.com", AdminPassword: "s3cret"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	auth := newAuthService(database, "secret", false)
	ctx := context.Background()

	tests := []struct {
		email, password string
		want            bool
	}{
		{"admin@example.com", "s3cret", true},
		{" admin@example.com ", "s3cret", true},
		{"admin@example.com", "S3CRET", false},
		{"nobody@example.com", "s3cret", false},
	}
	for _, tt := range tests {
		got, err := auth.validateCredentials(ctx, tt.email, tt.password)
		if err != nil {
			t.Fatalf("validateCredentials(%q): %v", tt.email, err)
		}
		if got != tt.want {
			t.Fatalf("validateCredentials(%q, %q) = %v, want %v", tt.email, tt.password, got, tt.want)
		}
	}
}
