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

// ===========================
// Form Messages
// ===========================

const (
	// Respondent-facing messages are in French, matching the bot's audience.
	MsgFormGone          = "❌ Ce formulaire n'existe plus."
	MsgFormDisabled      = "❌ Ce formulaire est désactivé."
	MsgFormBlacklisted   = "❌ Vous êtes sur liste noire et ne pouvez pas répondre à ce formulaire."
	MsgFormClartyBlocked = "❌ Vous êtes sur la liste noire globale et ne pouvez pas répondre à ce formulaire."
	MsgFormCooldown      = "⏳ Vous pourrez répondre à nouveau dans %s."
	MsgFormAlreadySent   = "❌ Vous avez déjà répondu à ce formulaire."
	MsgFormSubmitted     = "✅ Votre réponse a bien été envoyée !"
	MsgFormSessionGone   = "❌ Cette session de réponse a expiré. Cliquez à nouveau sur le bouton du formulaire."

	// Moderator-facing messages are in English, matching the panel.
	MsgFormCreated          = "✅ Form **%s** created and published in <#%s>."
	MsgFormUpdated          = "✅ Form **%s** updated."
	MsgFormDeleted          = "🗑️ Form **%s** deleted."
	MsgFormDeleteConfirm    = "⚠️ Delete form **%s**? This removes its embed and all response tracking."
	MsgFormDeleteCancelled  = "Deletion cancelled."
	MsgFormNotFound         = "❌ No form with that ID exists on this server."
	MsgFormLimitReached     = "❌ Free servers are limited to %d forms. Redeem a premium code to create more."
	MsgFormNoQuestions      = "❌ A form needs at least one question."
	MsgFormTooManyQuestions = "❌ A form cannot have more than %d questions."
	MsgFormQuestionTooLong  = "❌ Question %d is over %d characters."
	MsgFormToggled          = "✅ Form **%s** is now %s."
	MsgFormPublishFailed    = "❌ Could not publish the form embed: %v"
	MsgFormStoreError       = "❌ The operation failed, please try again."
	MsgFormNoForms          = "No forms exist on this server yet."
)

// Component custom ID prefixes. Everything after the prefix is routed by the
// loader's prefix match.
const (
	ComponentFormSubmit    = "form_submit:"    // form_submit:<formID>
	ComponentFormNext      = "form_next:"      // form_next:<formID>:<step>:<token>
	ComponentFormDelete    = "formdel:"        // formdel:<formID>:<yes|no>
	ComponentResponseDel   = "response_del:"   // response_del:<formID>
	ComponentReviewAccept  = "review_accept:"  // review_accept:<formID>
	ComponentReviewReject  = "review_reject:"  // review_reject:<formID>
	ModalFormCreate        = "form_create:"    // form_create:<channelPair...>
	ModalFormModify        = "form_modify:"    // form_modify:<formID>
	ModalFormPage          = "form_page:"      // form_page:<formID>:<step>:<token>
	ModalReviewMessage     = "review_msg:"     // review_msg:<accept|reject>:<messageID>
	questionFieldPrefix    = "q_"              // q_<absoluteIndex> inside submission modals
	maxQuestionsPerForm    = 25
	maxQuestionTextLen     = 100
	questionsPerModal      = 5
	modalLabelMaxLen       = 45
	answerFieldMaxLen      = 1024
	defaultButtonLabel     = "Répondre"
	questionParagraphMark  = "p:"
)

func respondEphemeral(event *events.ApplicationCommandInteractionCreate, content string) {
	if err := event.CreateMessage(sys.EphemeralMessage(content)); err != nil {
		sys.LogForm("failed to respond: %v", err)
	}
}

func respondComponentEphemeral(event *events.ComponentInteractionCreate, content string) {
	if err := event.CreateMessage(sys.EphemeralMessage(content)); err != nil {
		sys.LogForm("failed to respond: %v", err)
	}
}

func respondModalEphemeral(event *events.ModalSubmitInteractionCreate, content string) {
	if err := event.CreateMessage(sys.EphemeralMessage(content)); err != nil {
		sys.LogForm("failed to respond: %v", err)
	}
}

// NewFormID mints an opaque form identifier. Millisecond timestamps are
// unique enough per guild and sort chronologically.
func NewFormID() string {
	return fmt.Sprintf("%d", time.Now().UnixMilli())
}

// parseQuestionLines converts the one-question-per-line modal input into
// typed questions. A "p:" prefix marks a paragraph-style answer box.
// Question text is capped at maxQuestionTextLen runes.
func parseQuestionLines(raw string) ([]sys.Question, error) {
	var questions []sys.Question
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		style := sys.QuestionStyleShort
		if strings.HasPrefix(line, questionParagraphMark) {
			style = sys.QuestionStyleParagraph
			line = strings.TrimSpace(strings.TrimPrefix(line, questionParagraphMark))
			if line == "" {
				continue
			}
		}
		if len([]rune(line)) > maxQuestionTextLen {
			return nil, fmt.Errorf(MsgFormQuestionTooLong, len(questions)+1, maxQuestionTextLen)
		}
		questions = append(questions, sys.Question{Text: line, Style: style})
	}
	return questions, nil
}

// questionLines is the inverse of parseQuestionLines, used to prefill the
// modify modal.
func questionLines(questions []sys.Question) string {
	var sb strings.Builder
	for i, q := range questions {
		if i > 0 {
			sb.WriteByte('\n')
		}
		if q.Style == sys.QuestionStyleParagraph {
			sb.WriteString(questionParagraphMark + " ")
		}
		sb.WriteString(q.Text)
	}
	return sb.String()
}

// publishFormEmbed posts (or reposts) the form's public embed with its
// response button and records the message ID.
func publishFormEmbed(ctx context.Context, client *bot.Client, form *sys.Form) error {
	label := form.ButtonLabel
	if label == "" {
		label = defaultButtonLabel
	}

	text := form.EmbedText
	if text == "" {
		text = fmt.Sprintf("## %s", form.Title)
	} else {
		text = fmt.Sprintf("## %s\n%s", form.Title, text)
	}

	msg, err := client.Rest.CreateMessage(sys.ParseSnowflake(form.EmbedChannelID), sys.ContainerMessage(
		discord.NewTextDisplay(text),
		discord.NewActionRow(
			discord.NewButton(discord.ButtonStylePrimary, label, ComponentFormSubmit+form.ID, "", 0),
		),
	))
	if err != nil {
		return err
	}

	form.EmbedMessageID = msg.ID.String()
	return sys.DataStore.SetFormEmbedMessage(ctx, form.GuildID, form.ID, form.EmbedMessageID)
}

// requireGuildForm loads a form for a moderator command, answering the
// interaction itself when the form is missing.
func requireGuildForm(ctx context.Context, event *events.ApplicationCommandInteractionCreate, formID string) *sys.Form {
	guildID := event.GuildID()
	if guildID == nil {
		respondEphemeral(event, MsgFormNotFound)
		return nil
	}
	form, err := sys.DataStore.GetForm(ctx, guildID.String(), formID)
	if err != nil {
		sys.LogForm("form lookup failed: %v", err)
		respondEphemeral(event, MsgFormStoreError)
		return nil
	}
	if form == nil {
		respondEphemeral(event, MsgFormNotFound)
		return nil
	}
	return form
}

// formAutocomplete suggests the guild's form titles for the "form" option.
func formAutocomplete(event *events.AutocompleteInteractionCreate) {
	guildID := event.GuildID()
	if guildID == nil {
		_ = event.AutocompleteResult(nil)
		return
	}

	forms, err := sys.DataStore.ListForms(context.Background(), guildID.String())
	if err != nil {
		sys.LogForm("autocomplete lookup failed: %v", err)
		_ = event.AutocompleteResult(nil)
		return
	}

	query := strings.ToLower(event.Data.String("form"))
	var choices []discord.AutocompleteChoice
	for _, f := range forms {
		if query != "" && !strings.Contains(strings.ToLower(f.Title), query) {
			continue
		}
		choices = append(choices, discord.AutocompleteChoiceString{
			Name:  sys.Truncate(f.Title, 100),
			Value: f.ID,
		})
		if len(choices) == 25 {
			break
		}
	}
	_ = event.AutocompleteResult(choices)
}
