package emailjs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/somersetwc/website/internal/leads"
	"github.com/somersetwc/website/internal/pricing"
)

type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

func ok() *http.Response {
	return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewBufferString("OK"))}
}

func TestSendPostsTemplate(t *testing.T) {
	var got sendRequest
	rt := roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		require.Equal(t, defaultEndpoint, req.URL.String())
		require.NoError(t, json.NewDecoder(req.Body).Decode(&got))
		return ok(), nil
	})
	c := New(rt, Config{ServiceID: "svc", PublicKey: "pub", PrivateKey: "priv"})

	require.NoError(t, c.Send(context.Background(), "tpl", map[string]string{"name": "Jo"}))
	assert.Equal(t, sendRequest{
		ServiceID: "svc", TemplateID: "tpl", UserID: "pub", AccessToken: "priv",
		TemplateParams: map[string]string{"name": "Jo"},
	}, got)
}

func TestSendReturnsAPIError(t *testing.T) {
	rt := roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusBadRequest, Body: io.NopCloser(bytes.NewBufferString("The template ID is invalid"))}, nil
	})
	err := New(rt, Config{}).Send(context.Background(), "nope", nil)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "The template ID is invalid", apiErr.Body)
}

func TestNotifyLeadSendsOwnerAndAutoReply(t *testing.T) {
	var sent []sendRequest
	rt := roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		var r sendRequest
		require.NoError(t, json.NewDecoder(req.Body).Decode(&r))
		sent = append(sent, r)
		if r.TemplateID == "reply" {
			return &http.Response{StatusCode: http.StatusBadGateway, Body: io.NopCloser(bytes.NewBufferString("down"))}, nil
		}
		return ok(), nil
	})
	core, logs := observer.New(zap.WarnLevel)
	m := NewLeadMailer(New(rt, Config{}), MailerConfig{
		NotifyTemplate:    "notify",
		AutoReplyTemplate: "reply",
		OwnerEmail:        "owner@example.com",
		BaseURL:           "https://example.com/",
	}, zap.New(core))

	in := pricing.Input{Services: []pricing.Service{pricing.ServiceGutters}, Bedrooms: 2, Property: pricing.PropertyFlat}
	lead := leads.Lead{
		ID: "abc", Kind: leads.KindQuote, Name: "Jo", Email: "jo@example.com",
		Services: in.Services, Bedrooms: 2, Property: pricing.PropertyFlat, Estimate: pricing.Calculate(in),
	}

	require.NoError(t, m.NotifyLead(context.Background(), lead), "auto-reply failure is not fatal")
	require.Len(t, sent, 2)
	assert.Equal(t, "owner@example.com", sent[0].TemplateParams["to_email"])
	assert.Equal(t, "https://example.com/admin/leads/abc", sent[0].TemplateParams["admin_url"])
	assert.Equal(t, "Gutter Clearing", sent[0].TemplateParams["services"])
	assert.Equal(t, "£70", sent[0].TemplateParams["estimate"])
	assert.Equal(t, "jo@example.com", sent[1].TemplateParams["to_email"])
	assert.Equal(t, 1, logs.FilterMessage("customer auto-reply failed").Len())
}

func TestNotifyLeadSkipsAutoReplyWithoutEmail(t *testing.T) {
	calls := 0
	rt := roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		calls++
		return ok(), nil
	})
	m := NewLeadMailer(New(rt, Config{}), MailerConfig{NotifyTemplate: "n", AutoReplyTemplate: "r"}, zap.NewNop())

	require.NoError(t, m.NotifyLead(context.Background(), leads.Lead{Kind: leads.KindContact, Name: "Al", Phone: "01823123456"}))
	assert.Equal(t, 1, calls)
}
