package recaptcha

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

func replyWith(body string) roundTripperFunc {
	return func(req *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewBufferString(body))}, nil
	}
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		body    string
		wantErr error
	}{
		{"passes", "tok", `{"success":true,"score":0.9,"action":"quote"}`, nil},
		{"missing token", " ", `{}`, ErrMissingToken},
		{"google says no", "tok", `{"success":false,"error-codes":["invalid-input-response"]}`, ErrFailed},
		{"wrong action", "tok", `{"success":true,"score":0.9,"action":"login"}`, ErrActionMismatch},
		{"bot-like score", "tok", `{"success":true,"score":0.1,"action":"quote"}`, ErrLowScore},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New(replyWith(tt.body), Config{Secret: "s", MinScore: 0.5}, zap.NewNop())
			_, err := v.Verify(context.Background(), tt.token, "1.2.3.4", "quote")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Verify error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil && !Rejected(err) {
				t.Fatalf("Rejected(%v) = false", err)
			}
		})
	}
}

func TestVerifySendsSecretAndToken(t *testing.T) {
	rt := roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		if err := req.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if req.PostForm.Get("secret") != "s" || req.PostForm.Get("response") != "tok" || req.PostForm.Get("remoteip") != "1.2.3.4" {
			t.Fatalf("unexpected form: %v", req.PostForm)
		}
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewBufferString(`{"success":true,"score":1}`))}, nil
	})
	v := New(rt, Config{Secret: "s"}, zap.NewNop())
	if _, err := v.Verify(context.Background(), "tok", "1.2.3.4", ""); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestDisabledVerifierPassesAndWarnsOnce(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	v := New(roundTripperFunc(func(*http.Request) (*http.Response, error) {
		t.Fatalf("disabled verifier must not call out")
		return nil, nil
	}), Config{}, zap.New(core))

	for i := 0; i < 3; i++ {
		if _, err := v.Verify(context.Background(), "", "", "contact"); err != nil {
			t.Fatalf("Verify: %v", err)
		}
	}
	if logs.Len() != 1 {
		t.Fatalf("expected one warning, got %d", logs.Len())
	}
}

func TestUnreachableIsNotRejection(t *testing.T) {
	v := New(roundTripperFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("dial tcp: timeout")
	}), Config{Secret: "s"}, zap.NewNop())

	_, err := v.Verify(context.Background(), "tok", "", "quote")
	if err == nil || Rejected(err) {
		t.Fatalf("expected a transport error that is not a rejection, got %v", err)
	}
}
