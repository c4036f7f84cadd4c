package web

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myformhq/myform/home"
	"github.com/myformhq/myform/sys"
)

func TestTopGGWebhookAuth(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/topgg",
		strings.NewReader(`{"bot":"1","user":"u1","type":"upvote"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "wrong-secret")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	vc, err := sys.DataStore.GetVoteCredits(context.Background(), "u1")
	require.NoError(t, err)
	assert.Zero(t, vc.Credits, "an unauthorized vote must not grant credits")
}

func TestTopGGWebhookCredits(t *testing.T) {
	router := newTestRouter(t, nil)

	send := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/topgg", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "topgg-secret")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	w := send(`{"bot":"1","user":"u1","type":"upvote","isWeekend":false}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	vc, err := sys.DataStore.GetVoteCredits(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, home.VoteCreditAmount(time.Now()), vc.Credits)
	assert.False(t, vc.LastVote.IsZero())

	// top.gg's weekend flag wins over the local clock.
	w = send(`{"bot":"1","user":"u2","type":"upvote","isWeekend":true}`)
	require.Equal(t, http.StatusOK, w.Code)

	vc, err = sys.DataStore.GetVoteCredits(context.Background(), "u2")
	require.NoError(t, err)
	assert.Equal(t, 3, vc.Credits)

	w = send(`{"bot":"1","type":"upvote"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, "payload without a user is refused")
}

func ipnBody(overrides map[string]string) string {
	values := url.Values{}
	values.Set("payment_status", "Completed")
	values.Set("receiver_email", "sales@myform.app")
	values.Set("payer_email", "buyer@example.com")
	values.Set("custom", "g-premium")
	values.Set("txn_id", "TX123")
	for k, v := range overrides {
		values.Set(k, v)
	}
	return values.Encode()
}

func postIPN(router http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/paypal/ipn", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestPayPalIPNGrantsPremium(t *testing.T) {
	router := newTestRouter(t, nil)
	sys.GlobalConfig.PayPalBusiness = "sales@myform.app"

	var postedBack string
	paypal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		postedBack = string(body)
		w.Write([]byte("VERIFIED"))
	}))
	defer paypal.Close()

	prevVerify := PayPalVerifyURL
	PayPalVerifyURL = paypal.URL
	defer func() { PayPalVerifyURL = prevVerify }()

	w := postIPN(router, ipnBody(nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(postedBack, "cmd=_notify-validate&"), "the raw body is posted back for verification")

	premium, err := sys.DataStore.IsPremium(context.Background(), "g-premium")
	require.NoError(t, err)
	assert.True(t, premium)
}

func TestPayPalIPNRejectsUnverified(t *testing.T) {
	router := newTestRouter(t, nil)
	sys.GlobalConfig.PayPalBusiness = "sales@myform.app"

	paypal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("INVALID"))
	}))
	defer paypal.Close()

	prevVerify := PayPalVerifyURL
	PayPalVerifyURL = paypal.URL
	defer func() { PayPalVerifyURL = prevVerify }()

	// Unverified notifications are acknowledged so PayPal stops retrying,
	// but never honored.
	w := postIPN(router, ipnBody(nil))
	require.Equal(t, http.StatusOK, w.Code)

	premium, err := sys.DataStore.IsPremium(context.Background(), "g-premium")
	require.NoError(t, err)
	assert.False(t, premium)
}

func TestPayPalIPNChecks(t *testing.T) {
	paypal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("VERIFIED"))
	}))
	defer paypal.Close()

	prevVerify := PayPalVerifyURL
	PayPalVerifyURL = paypal.URL
	defer func() { PayPalVerifyURL = prevVerify }()

	tests := []struct {
		name      string
		overrides map[string]string
	}{
		{"pending payment", map[string]string{"payment_status": "Pending"}},
		{"wrong receiver", map[string]string{"receiver_email": "attacker@example.com"}},
		{"missing guild", map[string]string{"custom": ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(t, nil)
			sys.GlobalConfig.PayPalBusiness = "sales@myform.app"

			w := postIPN(router, ipnBody(tt.overrides))
			require.Equal(t, http.StatusOK, w.Code)

			premium, err := sys.DataStore.IsPremium(context.Background(), "g-premium")
			require.NoError(t, err)
			assert.False(t, premium)
		})
	}
}
