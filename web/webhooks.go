package web

import (
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/myformhq/myform/home"
	"github.com/myformhq/myform/sys"
)

// ===========================
// top.gg vote webhook
// ===========================

type topGGVote struct {
	Bot       string `json:"bot"`
	User      string `json:"user"`
	Type      string `json:"type"`
	IsWeekend bool   `json:"isWeekend"`
}

// handleTopGGWebhook credits a voter. top.gg authenticates with a shared
// secret in the Authorization header.
func handleTopGGWebhook(c *gin.Context) {
	if sys.GlobalConfig.TopGGAuth == "" || c.GetHeader("Authorization") != sys.GlobalConfig.TopGGAuth {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "bad authorization"})
		return
	}

	var vote topGGVote
	if err := c.ShouldBindJSON(&vote); err != nil || vote.User == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	now := time.Now()
	amount := home.VoteCreditAmount(now)
	if vote.IsWeekend {
		amount = 3
	}

	if err := sys.DataStore.AddVoteCredits(c.Request.Context(), vote.User, amount, now); err != nil {
		sys.LogVote("credit grant failed for %s: %v", vote.User, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage error"})
		return
	}

	sys.LogVote("vote from %s (+%d credits)", vote.User, amount)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ===========================
// PayPal IPN
// ===========================

// PayPalVerifyURL is a variable so tests can stand in for PayPal.
var PayPalVerifyURL = "https://ipnpb.paypal.com/cgi-bin/webscr"

// handlePayPalIPN grants premium after a completed payment. The raw body is
// posted back to PayPal for verification before anything is trusted.
func handlePayPalIPN(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<16))
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	verified, err := verifyIPN(string(body))
	if err != nil {
		sys.LogPanel("IPN verification failed: %v", err)
		c.Status(http.StatusBadGateway)
		return
	}
	if !verified {
		sys.AuditLog("⚠️ Rejected unverified PayPal IPN")
		c.Status(http.StatusOK) // acknowledged, not honored
		return
	}

	values, err := url.ParseQuery(string(body))
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	if values.Get("payment_status") != "Completed" {
		c.Status(http.StatusOK)
		return
	}
	if sys.GlobalConfig.PayPalBusiness != "" && !strings.EqualFold(values.Get("receiver_email"), sys.GlobalConfig.PayPalBusiness) {
		sys.AuditLog("⚠️ PayPal IPN for wrong receiver %q", values.Get("receiver_email"))
		c.Status(http.StatusOK)
		return
	}

	// The checkout page passes the guild ID through the custom field.
	guildID := values.Get("custom")
	if guildID == "" {
		sys.AuditLog("⚠️ Completed PayPal payment without a guild ID (txn %s)", values.Get("txn_id"))
		c.Status(http.StatusOK)
		return
	}

	if err := grantPremium(c, guildID, values.Get("payer_email")); err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Status(http.StatusOK)
}

func verifyIPN(rawBody string) (bool, error) {
	resp, err := sys.HttpClient.Post(PayPalVerifyURL, "application/x-www-form-urlencoded",
		strings.NewReader("cmd=_notify-validate&"+rawBody))
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	answer, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(string(answer)) == "VERIFIED", nil
}

func grantPremium(c *gin.Context, guildID, payer string) error {
	// A purchased premium rides the gift-code rails with a synthetic code,
	// so the grant shares the redemption transaction and audit trail.
	code := home.NewGiftCode()
	ctx := c.Request.Context()
	if err := sys.DataStore.CreateGiftCode(ctx, code, "paypal"); err != nil {
		sys.LogPanel("IPN premium grant failed: %v", err)
		return err
	}
	if err := sys.DataStore.RedeemGiftCode(ctx, code, guildID, "paypal:"+payer); err != nil {
		sys.LogPanel("IPN premium grant failed: %v", err)
		return err
	}
	sys.AuditLog("💰 Premium purchased for guild %s (PayPal %s)", guildID, payer)
	return nil
}
