package home

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/myformhq/myform/sys"
)

func init() {
	sys.RegisterComponentHandler(ComponentResponseDel, handleResponseDelete)
}

// answeredQuestion pairs a question's full text with the submitted answer.
type answeredQuestion struct {
	Question string
	Answer   string
}

const (
	MsgResponseDeleted   = "🗑️ Réponse supprimée."
	MsgResponseDelDenied = "❌ Seul l'auteur de la réponse ou un modérateur peut la supprimer."
)

func responseBody(form *sys.Form, userID string, answers []answeredQuestion) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## 📋 %s\nRéponse de <@%s>", form.Title, userID))
	for _, qa := range answers {
		sb.WriteString(fmt.Sprintf("\n\n**%s**\n%s", qa.Question, sys.Truncate(qa.Answer, answerFieldMaxLen)))
	}
	return sb.String()
}

// publishResponse posts the assembled answers to the form's response
// channel, attaches the review or delete controls, and persists the
// tracking rows. If the tracking rows cannot be written the message is
// rolled back so no untracked response lingers.
func publishResponse(ctx context.Context, client *bot.Client, form *sys.Form, user discord.User, answers []answeredQuestion) error {
	userID := user.ID.String()

	var buttons []discord.InteractiveComponent
	if form.Review.Enabled {
		buttons = append(buttons,
			discord.NewButton(discord.ButtonStyleSuccess, "Accepter", ComponentReviewAccept+form.ID, "", 0),
			discord.NewButton(discord.ButtonStyleDanger, "Refuser", ComponentReviewReject+form.ID, "", 0),
		)
	}
	buttons = append(buttons,
		discord.NewButton(discord.ButtonStyleSecondary, "Supprimer", ComponentResponseDel+form.ID, "", 0),
	)

	msg, err := client.Rest.CreateMessage(sys.ParseSnowflake(form.ResponseChannelID), sys.ContainerMessage(
		discord.NewTextDisplay(responseBody(form, userID, answers)),
		discord.NewActionRow(buttons...),
	))
	if err != nil {
		return err
	}

	status := sys.ResponseStatusNone
	if form.Review.Enabled {
		status = sys.ResponseStatusPending
	}
	record := &sys.Response{
		GuildID:   form.GuildID,
		FormID:    form.ID,
		UserID:    userID,
		ChannelID: form.ResponseChannelID,
		MessageID: msg.ID.String(),
		Status:    status,
	}
	if err := sys.DataStore.CreateResponse(ctx, record); err != nil {
		rollbackResponseMessage(client, form, msg.ID.String())
		return err
	}

	if form.SingleResponse {
		err := sys.DataStore.PutRespondent(ctx, &sys.Respondent{
			GuildID:   form.GuildID,
			FormID:    form.ID,
			UserID:    userID,
			MessageID: msg.ID.String(),
		})
		if err != nil {
			rollbackResponseMessage(client, form, msg.ID.String())
			return err
		}
	}

	if form.Cooldown.Enabled && form.Cooldown.DurationMinutes > 0 {
		expiry := time.Now().Add(time.Duration(form.Cooldown.DurationMinutes) * time.Minute).UnixMilli()
		if err := sys.DataStore.SetCooldown(ctx, form.GuildID, form.ID, userID, expiry); err != nil {
			sys.LogForm("failed to record cooldown for %s: %v", userID, err)
		}
	}

	if form.CreateThreads {
		_, err := client.Rest.CreateThreadFromMessage(msg.ChannelID, msg.ID, discord.ThreadCreateFromMessage{
			Name: sys.Truncate(fmt.Sprintf("Réponse de %s", user.Username), 100),
		})
		if err != nil {
			sys.LogForm("thread creation failed on form %s: %v", form.ID, err)
		}
	}

	sys.LogForm("response by %s published for form %s in guild %s", userID, form.ID, form.GuildID)
	return nil
}

func rollbackResponseMessage(client *bot.Client, form *sys.Form, messageID string) {
	if err := client.Rest.DeleteMessage(sys.ParseSnowflake(form.ResponseChannelID), sys.ParseSnowflake(messageID)); err != nil {
		sys.LogForm("rollback delete failed for message %s: %v", messageID, err)
	}
}

// handleResponseDelete removes a published response. Policy: the original
// submitter or anyone with manage-messages may delete, on both the reviewed
// and unreviewed paths.
func handleResponseDelete(event *events.ComponentInteractionCreate) {
	guildID := event.GuildID()
	if guildID == nil {
		return
	}
	formID := strings.TrimPrefix(event.Data.CustomID(), ComponentResponseDel)
	messageID := event.Message.ID.String()
	actorID := event.User().ID.String()
	ctx := context.Background()

	record, err := sys.DataStore.GetResponse(ctx, messageID)
	if err != nil {
		sys.LogForm("response lookup failed: %v", err)
		respondComponentEphemeral(event, MsgFormStoreError)
		return
	}

	canModerate := event.Member() != nil && event.Member().Permissions.Has(discord.PermissionManageMessages)
	isSubmitter := record != nil && record.UserID == actorID
	if !canModerate && !isSubmitter {
		respondComponentEphemeral(event, MsgResponseDelDenied)
		return
	}

	if err := event.Client().Rest.DeleteMessage(event.Message.ChannelID, event.Message.ID); err != nil {
		sys.LogForm("response message delete failed: %v", err)
		respondComponentEphemeral(event, MsgFormStoreError)
		return
	}

	// Deleting the message re-opens single-response eligibility.
	if err := sys.DataStore.DeleteRespondentByMessage(ctx, guildID.String(), formID, messageID); err != nil {
		sys.LogForm("respondent cleanup failed: %v", err)
	}
	if err := sys.DataStore.DeleteResponse(ctx, messageID); err != nil {
		sys.LogForm("response row cleanup failed: %v", err)
	}

	respondComponentEphemeral(event, MsgResponseDeleted)
}
