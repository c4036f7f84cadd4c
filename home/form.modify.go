package home

import (
	"context"
	"fmt"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/omit"
	"github.com/myformhq/myform/sys"
)

func init() {
	managePerm := discord.PermissionManageGuild

	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:                     "modifyform",
		Description:              "Modify an existing form",
		DefaultMemberPermissions: omit.New(&managePerm),
		Contexts: []discord.InteractionContextType{
			discord.InteractionContextTypeGuild,
		},
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionString{
				Name:         "form",
				Description:  "The form to modify",
				Required:     true,
				Autocomplete: true,
			},
			discord.ApplicationCommandOptionChannel{
				Name:        "embed-channel",
				Description: "New channel for the form embed",
				Required:    false,
			},
			discord.ApplicationCommandOptionChannel{
				Name:        "response-channel",
				Description: "New channel for responses",
				Required:    false,
			},
			discord.ApplicationCommandOptionBool{
				Name:        "single-response",
				Description: "Allow only one response per user",
				Required:    false,
			},
			discord.ApplicationCommandOptionBool{
				Name:        "create-threads",
				Description: "Open a thread under every response",
				Required:    false,
			},
			discord.ApplicationCommandOptionBool{
				Name:        "clarty-protection",
				Description: "Check submitters against the Clarty global blacklist",
				Required:    false,
			},
			discord.ApplicationCommandOptionInt{
				Name:        "cooldown-minutes",
				Description: "Cooldown between responses, 0 disables (premium servers only)",
				Required:    false,
			},
			discord.ApplicationCommandOptionBool{
				Name:        "review",
				Description: "Route responses through accept/reject review",
				Required:    false,
			},
			discord.ApplicationCommandOptionBool{
				Name:        "review-custom-messages",
				Description: "Prompt reviewers for a custom message",
				Required:    false,
			},
			discord.ApplicationCommandOptionBool{
				Name:        "review-status-message",
				Description: "Attach a status line naming the reviewer",
				Required:    false,
			},
			discord.ApplicationCommandOptionRole{
				Name:        "accept-role",
				Description: "Role granted on acceptance",
				Required:    false,
			},
			discord.ApplicationCommandOptionRole{
				Name:        "reject-role",
				Description: "Role granted on rejection",
				Required:    false,
			},
			discord.ApplicationCommandOptionBool{
				Name:        "disabled",
				Description: "Disable or re-enable the form",
				Required:    false,
			},
		},
	}, handleModifyForm)

	sys.RegisterAutocompleteHandler("modifyform", formAutocomplete)
	sys.RegisterModalHandler(ModalFormModify, handleModifyFormModal)
}

func handleModifyForm(event *events.ApplicationCommandInteractionCreate) {
	data := event.SlashCommandInteractionData()
	ctx := context.Background()

	form := requireGuildForm(ctx, event, data.String("form"))
	if form == nil {
		return
	}

	changed := false
	if ch, ok := data.OptChannel("embed-channel"); ok {
		form.EmbedChannelID = ch.ID.String()
		changed = true
	}
	if ch, ok := data.OptChannel("response-channel"); ok {
		form.ResponseChannelID = ch.ID.String()
		changed = true
	}
	if b, ok := data.OptBool("single-response"); ok {
		form.SingleResponse = b
		changed = true
	}
	if b, ok := data.OptBool("create-threads"); ok {
		form.CreateThreads = b
		changed = true
	}
	if b, ok := data.OptBool("clarty-protection"); ok {
		form.ClartyProtection = b
		changed = true
	}
	if n, ok := data.OptInt("cooldown-minutes"); ok {
		form.Cooldown.Enabled = n > 0
		form.Cooldown.DurationMinutes = n
		changed = true
	}
	if b, ok := data.OptBool("review"); ok {
		form.Review.Enabled = b
		changed = true
	}
	if b, ok := data.OptBool("review-custom-messages"); ok {
		form.Review.CustomMessagesEnabled = b
		changed = true
	}
	if b, ok := data.OptBool("review-status-message"); ok {
		form.Review.ShowStatusMessage = b
		changed = true
	}
	if role, ok := data.OptRole("accept-role"); ok {
		form.Review.AcceptRoleID = role.ID.String()
		changed = true
	}
	if role, ok := data.OptRole("reject-role"); ok {
		form.Review.RejectRoleID = role.ID.String()
		changed = true
	}
	if b, ok := data.OptBool("disabled"); ok {
		form.Disabled = b
		changed = true
	}

	if changed {
		if err := sys.DataStore.UpdateForm(ctx, form); err != nil {
			sys.LogForm("form update failed: %v", err)
			respondEphemeral(event, MsgFormStoreError)
			return
		}
		if form.Disabled {
			respondEphemeral(event, fmt.Sprintf(MsgFormToggled, form.Title, "disabled"))
		} else {
			respondEphemeral(event, fmt.Sprintf(MsgFormUpdated, form.Title))
		}
		return
	}

	// No options given: edit texts and questions through a prefilled modal.
	err := event.Modal(discord.NewModalCreate(ModalFormModify+form.ID, sys.Truncate("Edit: "+form.Title, modalLabelMaxLen), []discord.LayoutComponent{
		discord.NewLabel("Form title", discord.NewShortTextInput("title").WithRequired(true).WithMaxLength(100).WithValue(form.Title)),
		discord.NewLabel("Questions (one per line, p: = paragraph)", discord.NewParagraphTextInput("questions").WithRequired(true).WithMaxLength(2000).WithValue(questionLines(form.Questions))),
		discord.NewLabel("Response button label", discord.NewShortTextInput("button").WithRequired(false).WithMaxLength(80).WithValue(form.ButtonLabel)),
		discord.NewLabel("Embed text", discord.NewParagraphTextInput("embedtext").WithRequired(false).WithMaxLength(1500).WithValue(form.EmbedText)),
	}))
	if err != nil {
		sys.LogForm("failed to open modify modal: %v", err)
	}
}

func handleModifyFormModal(event *events.ModalSubmitInteractionCreate) {
	guildID := event.GuildID()
	if guildID == nil {
		return
	}
	formID := strings.TrimPrefix(event.Data.CustomID, ModalFormModify)
	ctx := context.Background()

	form, err := sys.DataStore.GetForm(ctx, guildID.String(), formID)
	if err != nil || form == nil {
		respondModalEphemeral(event, MsgFormNotFound)
		return
	}

	questions, err := parseQuestionLines(event.Data.Text("questions"))
	if err != nil {
		respondModalEphemeral(event, err.Error())
		return
	}
	if len(questions) == 0 {
		respondModalEphemeral(event, MsgFormNoQuestions)
		return
	}
	if len(questions) > maxQuestionsPerForm {
		respondModalEphemeral(event, fmt.Sprintf(MsgFormTooManyQuestions, maxQuestionsPerForm))
		return
	}

	form.Title = event.Data.Text("title")
	form.Questions = questions
	form.ButtonLabel = event.Data.Text("button")
	form.EmbedText = event.Data.Text("embedtext")

	if err := sys.DataStore.UpdateForm(ctx, form); err != nil {
		sys.LogForm("form update failed: %v", err)
		respondModalEphemeral(event, MsgFormStoreError)
		return
	}

	// Refresh the published embed so title and button stay in sync.
	if form.EmbedMessageID != "" {
		client := event.Client()
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
		_, err := client.Rest.UpdateMessage(sys.ParseSnowflake(form.EmbedChannelID), sys.ParseSnowflake(form.EmbedMessageID),
			discord.NewMessageUpdateV2([]discord.LayoutComponent{discord.NewContainer(
				discord.NewTextDisplay(text),
				discord.NewActionRow(
					discord.NewButton(discord.ButtonStylePrimary, label, ComponentFormSubmit+form.ID, "", 0),
				),
			)}))
		if err != nil {
			sys.LogForm("embed refresh failed for form %s: %v", form.ID, err)
		}
	}

	sys.LogForm("form %s updated in guild %s", form.ID, form.GuildID)
	respondModalEphemeral(event, fmt.Sprintf(MsgFormUpdated, form.Title))
}
