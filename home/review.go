package home

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/myformhq/myform/sys"
)

const (
	MsgReviewDenied        = "❌ You need the Manage Messages permission to review responses."
	MsgReviewAlreadyDone   = "❌ This response was already processed."
	MsgReviewAccepted      = "✅ Response accepted."
	MsgReviewRejected      = "❌ Response rejected."
	MsgReviewNoCredits     = "❌ You are out of AI credits. Vote for the bot to earn more."
	MsgReviewAIFallback    = "⚠️ AI generation failed, the default message was used instead."
	MsgReviewDefaultAccept = "✅ Votre réponse au formulaire **%s** a été acceptée !"
	MsgReviewDefaultReject = "❌ Votre réponse au formulaire **%s** a été refusée."

	reviewColorAccept = 0x57F287
	reviewColorReject = 0xED4245
)

func init() {
	sys.RegisterComponentHandler(ComponentReviewAccept, func(event *events.ComponentInteractionCreate) {
		handleReviewButton(event, sys.AIKindAccept)
	})
	sys.RegisterComponentHandler(ComponentReviewReject, func(event *events.ComponentInteractionCreate) {
		handleReviewButton(event, sys.AIKindReject)
	})
	sys.RegisterModalHandler(ModalReviewMessage, handleReviewMessageModal)
}

func handleReviewButton(event *events.ComponentInteractionCreate, kind string) {
	guildID := event.GuildID()
	if guildID == nil {
		return
	}
	if event.Member() == nil || !event.Member().Permissions.Has(discord.PermissionManageMessages) {
		respondComponentEphemeral(event, MsgReviewDenied)
		return
	}

	var prefix string
	if kind == sys.AIKindAccept {
		prefix = ComponentReviewAccept
	} else {
		prefix = ComponentReviewReject
	}
	formID := strings.TrimPrefix(event.Data.CustomID(), prefix)
	messageID := event.Message.ID.String()
	ctx := context.Background()

	record, err := sys.DataStore.GetResponse(ctx, messageID)
	if err != nil || record == nil {
		respondComponentEphemeral(event, MsgFormStoreError)
		return
	}
	if record.Status != sys.ResponseStatusPending {
		respondComponentEphemeral(event, MsgReviewAlreadyDone)
		return
	}

	form, err := sys.DataStore.GetForm(ctx, guildID.String(), formID)
	if err != nil || form == nil {
		respondComponentEphemeral(event, MsgFormGone)
		return
	}

	if form.Review.CustomMessagesEnabled {
		err := event.Modal(discord.NewModalCreate(fmt.Sprintf("%s%s:%s", ModalReviewMessage, kind, messageID), "Review message", []discord.LayoutComponent{
			discord.NewLabel("Custom message (empty = default)", discord.NewParagraphTextInput("message").WithRequired(false).WithMaxLength(1000)),
			discord.NewLabel("AI feedback to expand (uses 1 credit)", discord.NewShortTextInput("ai").WithRequired(false).WithMaxLength(200)),
		}))
		if err != nil {
			sys.LogReview("failed to open review modal: %v", err)
		}
		return
	}

	result := commitReview(ctx, event.Client(), form, record, kind, event.User().ID.String(), "")
	respondComponentEphemeral(event, result)
}

func handleReviewMessageModal(event *events.ModalSubmitInteractionCreate) {
	guildID := event.GuildID()
	if guildID == nil {
		return
	}
	parts := strings.SplitN(strings.TrimPrefix(event.Data.CustomID, ModalReviewMessage), ":", 2)
	if len(parts) != 2 {
		return
	}
	kind, messageID := parts[0], parts[1]
	actorID := event.User().ID.String()
	ctx := context.Background()

	record, err := sys.DataStore.GetResponse(ctx, messageID)
	if err != nil || record == nil {
		respondModalEphemeral(event, MsgFormStoreError)
		return
	}
	form, err := sys.DataStore.GetForm(ctx, guildID.String(), record.FormID)
	if err != nil || form == nil {
		respondModalEphemeral(event, MsgFormGone)
		return
	}

	// Whitespace-only input means "use the default message", not cancel.
	custom := strings.TrimSpace(event.Data.Text("message"))

	aiFailed := false
	if aiReason := strings.TrimSpace(event.Data.Text("ai")); aiReason != "" {
		generated, err := generateWithQuota(ctx, actorID, kind, form.Title, aiReason)
		switch {
		case errors.Is(err, sys.ErrNoCredits):
			respondModalEphemeral(event, MsgReviewNoCredits)
			return
		case err != nil:
			// Fall through to the default message; the interaction gets
			// one reply, after the decision is committed.
			sys.LogReview("AI generation failed: %v", err)
			aiFailed = true
		default:
			custom = generated
		}
	}

	result := commitReview(ctx, event.Client(), form, record, kind, actorID, custom)
	respondModalEphemeral(event, reviewModalReply(result, aiFailed))
}

// reviewModalReply appends the AI-fallback note to a committed decision's
// reply. Replies that report no new decision pass through untouched.
func reviewModalReply(result string, aiFailed bool) string {
	if aiFailed && (result == MsgReviewAccepted || result == MsgReviewRejected) {
		return result + "\n" + MsgReviewAIFallback
	}
	return result
}

// generateWithQuota runs the AI generation, debiting one vote credit once
// the actor's free quota is spent.
func generateWithQuota(ctx context.Context, actorID, kind, formTitle, reason string) (string, error) {
	used, err := sys.DataStore.GetAIUsage(ctx, actorID)
	if err != nil {
		return "", err
	}
	if used >= sys.GlobalConfig.FreeAIQuota {
		if err := sys.DataStore.SpendVoteCredit(ctx, actorID); err != nil {
			return "", err
		}
	}

	text, err := sys.GenerateReviewMessage(ctx, kind, formTitle, reason)
	if err != nil {
		return "", err
	}
	if err := sys.DataStore.IncrementAIUsage(ctx, actorID); err != nil {
		sys.LogReview("failed to record AI usage: %v", err)
	}
	return text, nil
}

// commitReview performs the accept/reject transition. The store's
// first-wins update makes double-processing a no-op with an explicit reply.
func commitReview(ctx context.Context, client *bot.Client, form *sys.Form, record *sys.Response, kind, actorID, customMsg string) string {
	status := sys.ResponseStatusAccepted
	if kind == sys.AIKindReject {
		status = sys.ResponseStatusRejected
	}

	won, err := sys.DataStore.DecideResponse(ctx, record.MessageID, status, actorID)
	if err != nil {
		sys.LogReview("decision persist failed: %v", err)
		return MsgFormStoreError
	}
	if !won {
		return MsgReviewAlreadyDone
	}

	updateReviewedMessage(client, form, record, kind, actorID, customMsg)
	notifySubmitter(client, form, record, kind, customMsg)
	grantReviewRole(client, form, record, kind)

	outcome := "accepted"
	reply := MsgReviewAccepted
	if kind == sys.AIKindReject {
		outcome = "rejected"
		reply = MsgReviewRejected
	}
	permalink := fmt.Sprintf("https://discord.com/channels/%s/%s/%s", record.GuildID, record.ChannelID, record.MessageID)
	sys.AuditLog("📋 Response %s by <@%s> on form %s (%s): %s", outcome, actorID, form.Title, form.GuildID, permalink)

	return reply
}

// reviewFooter builds the outcome line appended to a reviewed response. The
// actor and the custom reason only appear when the form opted into status
// messages; otherwise just the outcome is shown.
func reviewFooter(kind, actorID, customMsg string, showStatus bool) string {
	footer := "✅ Acceptée"
	if kind == sys.AIKindReject {
		footer = "❌ Refusée"
	}
	if !showStatus {
		return footer
	}
	footer += fmt.Sprintf(" par <@%s>", actorID)
	if customMsg != "" {
		footer += " — " + sys.Truncate(customMsg, 200)
	}
	return footer
}

// updateReviewedMessage recolors the response in place, appends the outcome
// footer, and swaps the review controls for a delete-only control.
func updateReviewedMessage(client *bot.Client, form *sys.Form, record *sys.Response, kind, actorID, customMsg string) {
	channelID := sys.ParseSnowflake(record.ChannelID)
	messageID := sys.ParseSnowflake(record.MessageID)

	msg, err := client.Rest.GetMessage(channelID, messageID)
	if err != nil {
		sys.LogReview("failed to fetch response message: %v", err)
		return
	}

	color := reviewColorAccept
	if kind == sys.AIKindReject {
		color = reviewColorReject
	}
	footer := reviewFooter(kind, actorID, customMsg, form.Review.ShowStatusMessage)

	var kept []discord.ContainerSubComponent
	for _, layout := range msg.Components {
		container, ok := layout.(discord.ContainerComponent)
		if !ok {
			continue
		}
		for _, sub := range container.Components {
			if _, isRow := sub.(discord.ActionRowComponent); isRow {
				continue
			}
			kept = append(kept, sub)
		}
	}

	kept = append(kept,
		discord.NewTextDisplay(footer),
		discord.NewActionRow(
			discord.NewButton(discord.ButtonStyleSecondary, "Supprimer", ComponentResponseDel+form.ID, "", 0),
		),
	)

	_, err = client.Rest.UpdateMessage(channelID, messageID, discord.NewMessageUpdateV2([]discord.LayoutComponent{
		discord.NewContainer(kept...).WithAccentColor(color),
	}))
	if err != nil {
		sys.LogReview("failed to update response message: %v", err)
	}
}

// notifySubmitter DMs the respondent. Closed DMs are an expected failure
// and only logged.
func notifySubmitter(client *bot.Client, form *sys.Form, record *sys.Response, kind, customMsg string) {
	text := customMsg
	if text == "" {
		if kind == sys.AIKindAccept {
			text = form.Review.AcceptMessage
		} else {
			text = form.Review.RejectMessage
		}
	}
	if text == "" {
		if kind == sys.AIKindAccept {
			text = fmt.Sprintf(MsgReviewDefaultAccept, form.Title)
		} else {
			text = fmt.Sprintf(MsgReviewDefaultReject, form.Title)
		}
	}

	if _, err := sys.SendDM(client, sys.ParseSnowflake(record.UserID), sys.TextMessage(text)); err != nil {
		sys.LogReview("DM to %s failed (likely closed DMs): %v", record.UserID, err)
	}
}

func grantReviewRole(client *bot.Client, form *sys.Form, record *sys.Response, kind string) {
	roleID := form.Review.AcceptRoleID
	if kind == sys.AIKindReject {
		roleID = form.Review.RejectRoleID
	}
	if roleID == "" {
		return
	}

	err := client.Rest.AddMemberRole(sys.ParseSnowflake(record.GuildID), sys.ParseSnowflake(record.UserID), sys.ParseSnowflake(roleID))
	if err != nil {
		sys.LogReview("role grant failed for %s: %v", record.UserID, err)
	}
}
