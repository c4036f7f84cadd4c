package web

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/myformhq/myform/home"
	"github.com/myformhq/myform/sys"
)

// JSON API behind the panel. Every route requires a session with
// manage-guild on the target guild.

func guildFromPath(c *gin.Context) (string, bool) {
	guildID := c.Param("guildId")
	session := currentSession(c)
	if session == nil || !session.canManage(guildID) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "you cannot manage this server"})
		return "", false
	}
	return guildID, true
}

func handleListForms(c *gin.Context) {
	guildID, ok := guildFromPath(c)
	if !ok {
		return
	}
	forms, err := sys.DataStore.ListForms(c.Request.Context(), guildID)
	if err != nil {
		sys.LogPanel("form list failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage error"})
		return
	}
	if forms == nil {
		forms = []*sys.Form{}
	}
	c.JSON(http.StatusOK, forms)
}

func handleGetForm(c *gin.Context) {
	guildID, ok := guildFromPath(c)
	if !ok {
		return
	}
	form, err := sys.DataStore.GetForm(c.Request.Context(), guildID, c.Param("formId"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage error"})
		return
	}
	if form == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "form not found"})
		return
	}
	c.JSON(http.StatusOK, form)
}

func validateFormPayload(f *sys.Form) error {
	if f.Title == "" {
		return fmt.Errorf("title is required")
	}
	if len(f.Questions) == 0 {
		return fmt.Errorf("at least one question is required")
	}
	if len(f.Questions) > 25 {
		return fmt.Errorf("too many questions (max 25)")
	}
	for i, q := range f.Questions {
		if q.Text == "" {
			return fmt.Errorf("question %d has no text", i+1)
		}
		if len([]rune(q.Text)) > 100 {
			return fmt.Errorf("question %d is over 100 characters", i+1)
		}
		if q.Style != sys.QuestionStyleShort && q.Style != sys.QuestionStyleParagraph {
			return fmt.Errorf("question %d has unknown style %q", i+1, q.Style)
		}
	}
	if f.EmbedChannelID == "" || f.ResponseChannelID == "" {
		return fmt.Errorf("embed and response channels are required")
	}
	return nil
}

// handleUpsertForm serves POST /api/form/:guildId (create) and
// POST /api/form/:guildId/:formId (update). The generate-ai pseudo-form ID
// is dispatched separately because it shares the update path shape.
func handleUpsertForm(c *gin.Context) {
	if c.Param("formId") == "generate-ai" {
		handleGenerateAI(c)
		return
	}

	guildID, ok := guildFromPath(c)
	if !ok {
		return
	}

	var payload sys.Form
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
		return
	}
	payload.GuildID = guildID
	if err := validateFormPayload(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	formID := c.Param("formId")

	if formID == "" {
		// Create: free plan is capped.
		count, err := sys.DataStore.CountForms(ctx, guildID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "storage error"})
			return
		}
		premium, err := sys.DataStore.IsPremium(ctx, guildID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "storage error"})
			return
		}
		if !premium && count >= sys.GlobalConfig.FreeFormLimit {
			c.JSON(http.StatusPaymentRequired, gin.H{"error": fmt.Sprintf("free servers are limited to %d forms", sys.GlobalConfig.FreeFormLimit)})
			return
		}

		payload.ID = home.NewFormID()
		payload.EmbedMessageID = ""
		if err := sys.DataStore.CreateForm(ctx, &payload); err != nil {
			sys.LogPanel("form create failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "storage error"})
			return
		}
		sys.LogPanel("form %s created in guild %s via panel", payload.ID, guildID)
		c.JSON(http.StatusCreated, payload)
		return
	}

	existing, err := sys.DataStore.GetForm(ctx, guildID, formID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage error"})
		return
	}
	if existing == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "form not found"})
		return
	}

	// The embed message identity and disabled state are owned by the bot
	// side; the panel cannot rewrite them through this route.
	payload.ID = formID
	payload.EmbedMessageID = existing.EmbedMessageID
	payload.Disabled = existing.Disabled

	if err := sys.DataStore.UpdateForm(ctx, &payload); err != nil {
		sys.LogPanel("form update failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage error"})
		return
	}
	c.JSON(http.StatusOK, payload)
}

func handleDeleteFormAPI(c *gin.Context) {
	guildID, ok := guildFromPath(c)
	if !ok {
		return
	}
	if err := sys.DataStore.DeleteForm(c.Request.Context(), guildID, c.Param("formId")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func handleToggleForm(c *gin.Context) {
	guildID, ok := guildFromPath(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	form, err := sys.DataStore.GetForm(ctx, guildID, c.Param("formId"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage error"})
		return
	}
	if form == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "form not found"})
		return
	}
	if err := sys.DataStore.SetFormDisabled(ctx, guildID, form.ID, !form.Disabled); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"disabled": !form.Disabled})
}

type generateAIRequest struct {
	Kind      string `json:"kind"`
	FormTitle string `json:"formTitle"`
	Reason    string `json:"reason"`
}

// handleGenerateAI drafts an accept/reject message for the panel's form
// editor. Charged against the same quota as the Discord-side flow.
func handleGenerateAI(c *gin.Context) {
	_, ok := guildFromPath(c)
	if !ok {
		return
	}
	session := currentSession(c)

	var req generateAIRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
		return
	}
	if req.Kind != sys.AIKindAccept && req.Kind != sys.AIKindReject {
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be accept or reject"})
		return
	}

	ctx := c.Request.Context()
	used, err := sys.DataStore.GetAIUsage(ctx, session.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage error"})
		return
	}
	if used >= sys.GlobalConfig.FreeAIQuota {
		if err := sys.DataStore.SpendVoteCredit(ctx, session.UserID); err != nil {
			if errors.Is(err, sys.ErrNoCredits) {
				c.JSON(http.StatusPaymentRequired, gin.H{"error": "no AI credits left, vote to earn more"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "storage error"})
			return
		}
	}

	text, err := sys.GenerateReviewMessage(ctx, req.Kind, req.FormTitle, req.Reason)
	if err != nil {
		sys.LogPanel("AI generation failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "generation failed, please retry"})
		return
	}
	if err := sys.DataStore.IncrementAIUsage(ctx, session.UserID); err != nil {
		sys.LogPanel("failed to record AI usage: %v", err)
	}

	c.JSON(http.StatusOK, gin.H{"message": text})
}
