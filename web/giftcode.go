package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/myformhq/myform/sys"
)

type redeemRequest struct {
	Code    string `json:"code"`
	GuildID string `json:"guildId"`
}

// handleRedeemGiftCode redeems a premium gift code from the panel. The
// store's conditional update makes a double redeem lose cleanly.
func handleRedeemGiftCode(c *gin.Context) {
	session := currentSession(c)

	var req redeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
		return
	}
	if !session.canManage(req.GuildID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "you cannot manage this server"})
		return
	}

	code := strings.ToUpper(strings.TrimSpace(req.Code))
	err := sys.DataStore.RedeemGiftCode(c.Request.Context(), code, req.GuildID, session.UserID)
	switch {
	case errors.Is(err, sys.ErrGiftCodeNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "this gift code does not exist"})
	case errors.Is(err, sys.ErrGiftCodeUsed):
		c.JSON(http.StatusConflict, gin.H{"error": "this gift code was already redeemed"})
	case err != nil:
		sys.LogPanel("redemption failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage error"})
	default:
		sys.AuditLog("💎 Premium redeemed for guild %s by <@%s> (panel)", req.GuildID, session.UserID)
		c.JSON(http.StatusOK, gin.H{"premium": true})
	}
}
