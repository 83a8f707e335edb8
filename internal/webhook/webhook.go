// Package webhook signs and verifies inbound webhook bodies with
// HMAC-SHA256. The signature header looks like "t=1700000000,v1=<hex>" and
// covers the timestamp, a dot and the raw body.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Header carries the signature.
const Header = "X-Webhook-Signature"

var (
	ErrMissingSignature = errors.New("webhook signature missing")
	ErrMalformed        = errors.New("webhook signature malformed")
	ErrExpired          = errors.New("webhook timestamp outside tolerance")
	ErrMismatch         = errors.New("webhook signature mismatch")
	ErrReplayed         = errors.New("webhook delivery already processed")
)

// Sign returns the header value for body sent at ts.
func Sign(secret, body []byte, ts time.Time) string {
	unix := strconv.FormatInt(ts.Unix(), 10)
	return "t=" + unix + ",v1=" + hex.EncodeToString(mac(secret, unix, body))
}

// Verify checks header against body. Any v1 entry may match, which lets
// the sender rotate secrets.
func Verify(secret, body []byte, header string, now time.Time, tolerance time.Duration) error {
	unix, seconds, signatures, err := parseHeader(header)
	if err != nil {
		return err
	}
	age := now.Sub(time.Unix(seconds, 0))
	if age < 0 {
		age = -age
	}
	if tolerance > 0 && age > tolerance {
		return ErrExpired
	}

	expected := mac(secret, unix, body)
	for _, sig := range signatures {
		if hmac.Equal(sig, expected) {
			return nil
		}
	}
	return ErrMismatch
}

func parseHeader(header string) (unix string, seconds int64, signatures [][]byte, err error) {
	if strings.TrimSpace(header) == "" {
		return "", 0, nil, ErrMissingSignature
	}
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return "", 0, nil, ErrMalformed
		}
		switch key {
		case "t":
			unix = value
		case "v1":
			sig, err := hex.DecodeString(value)
			if err != nil {
				return "", 0, nil, ErrMalformed
			}
			signatures = append(signatures, sig)
		}
	}
	if unix == "" || len(signatures) == 0 {
		return "", 0, nil, ErrMalformed
	}
	seconds, err = strconv.ParseInt(unix, 10, 64)
	if err != nil {
		return "", 0, nil, ErrMalformed
	}
	return unix, seconds, signatures, nil
}

func mac(secret []byte, unix string, body []byte) []byte {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(unix))
	h.Write([]byte("."))
	h.Write(body)
	return h.Sum(nil)
}

// Replays remembers verified deliveries so each one is applied once. A
// delivery is identified by its signed timestamp and body, so extra
// signature entries in the header do not make it look new.
type Replays struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]time.Time
}

// NewReplays keeps deliveries for ttl, which should cover the whole
// window Verify accepts: twice its tolerance.
func NewReplays(ttl time.Duration) *Replays {
	return &Replays{ttl: ttl, seen: make(map[string]time.Time)}
}

// Record returns ErrReplayed if the delivery was recorded before. Call it
// only after Verify succeeds.
func (r *Replays) Record(header string, body []byte, now time.Time) error {
	unix, _, _, err := parseHeader(header)
	if err != nil {
		return err
	}
	h := sha256.New()
	h.Write([]byte(unix))
	h.Write([]byte("."))
	h.Write(body)
	key := hex.EncodeToString(h.Sum(nil))

	r.mu.Lock()
	defer r.mu.Unlock()
	for k, at := range r.seen {
		if now.Sub(at) > r.ttl {
			delete(r.seen, k)
		}
	}
	if _, ok := r.seen[key]; ok {
		return ErrReplayed
	}
	r.seen[key] = now
	return nil
}

// Len reports how many deliveries are remembered.
func (r *Replays) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}
