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
		Name:                     "createform",
		Description:              "Create a new form and publish it",
		DefaultMemberPermissions: omit.New(&managePerm),
		Contexts: []discord.InteractionContextType{
			discord.InteractionContextTypeGuild,
		},
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionChannel{
				Name:        "embed-channel",
				Description: "Channel where the form embed is published",
				Required:    true,
				ChannelTypes: []discord.ChannelType{
					discord.ChannelTypeGuildText,
				},
			},
			discord.ApplicationCommandOptionChannel{
				Name:        "response-channel",
				Description: "Channel where responses are posted",
				Required:    true,
				ChannelTypes: []discord.ChannelType{
					discord.ChannelTypeGuildText,
				},
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
				Description: "Cooldown between responses (premium servers only)",
				Required:    false,
			},
			discord.ApplicationCommandOptionBool{
				Name:        "review",
				Description: "Route responses through accept/reject review",
				Required:    false,
			},
		},
	}, handleCreateForm)

	sys.RegisterModalHandler(ModalFormCreate, handleCreateFormModal)
}

func handleCreateForm(event *events.ApplicationCommandInteractionCreate) {
	guildID := event.GuildID()
	if guildID == nil {
		return
	}
	data := event.SlashCommandInteractionData()
	ctx := context.Background()

	count, err := sys.DataStore.CountForms(ctx, guildID.String())
	if err != nil {
		sys.LogForm("form count failed: %v", err)
		respondEphemeral(event, MsgFormStoreError)
		return
	}
	premium, err := sys.DataStore.IsPremium(ctx, guildID.String())
	if err != nil {
		sys.LogForm("premium lookup failed: %v", err)
		respondEphemeral(event, MsgFormStoreError)
		return
	}
	if !premium && count >= sys.GlobalConfig.FreeFormLimit {
		respondEphemeral(event, fmt.Sprintf(MsgFormLimitReached, sys.GlobalConfig.FreeFormLimit))
		return
	}

	embedChannel := data.Channel("embed-channel")
	responseChannel := data.Channel("response-channel")

	flags := 0
	if b, ok := data.OptBool("single-response"); ok && b {
		flags |= 1
	}
	if b, ok := data.OptBool("create-threads"); ok && b {
		flags |= 2
	}
	if b, ok := data.OptBool("clarty-protection"); ok && b {
		flags |= 4
	}
	if b, ok := data.OptBool("review"); ok && b {
		flags |= 8
	}
	cooldown := 0
	if n, ok := data.OptInt("cooldown-minutes"); ok && n > 0 {
		cooldown = n
	}

	customID := fmt.Sprintf("%s%s:%s:%d:%d", ModalFormCreate, embedChannel.ID, responseChannel.ID, flags, cooldown)

	err = event.Modal(discord.NewModalCreate(customID, "New form", []discord.LayoutComponent{
		discord.NewLabel("Form title", discord.NewShortTextInput("title").WithRequired(true).WithMaxLength(100)),
		discord.NewLabel("Questions (one per line, p: = paragraph)", discord.NewParagraphTextInput("questions").WithRequired(true).WithMaxLength(2000)),
		discord.NewLabel("Response button label", discord.NewShortTextInput("button").WithRequired(false).WithMaxLength(80)),
		discord.NewLabel("Embed text", discord.NewParagraphTextInput("embedtext").WithRequired(false).WithMaxLength(1500)),
	}))
	if err != nil {
		sys.LogForm("failed to open create modal: %v", err)
	}
}

func handleCreateFormModal(event *events.ModalSubmitInteractionCreate) {
	guildID := event.GuildID()
	if guildID == nil {
		return
	}

	parts := strings.Split(strings.TrimPrefix(event.Data.CustomID, ModalFormCreate), ":")
	if len(parts) != 4 {
		return
	}
	flags := sys.Atoi(parts[2])

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

	form := &sys.Form{
		ID:                NewFormID(),
		GuildID:           guildID.String(),
		Title:             event.Data.Text("title"),
		Questions:         questions,
		EmbedChannelID:    parts[0],
		ResponseChannelID: parts[1],
		EmbedText:         event.Data.Text("embedtext"),
		ButtonLabel:       event.Data.Text("button"),
		SingleResponse:    flags&1 != 0,
		CreateThreads:     flags&2 != 0,
		ClartyProtection:  flags&4 != 0,
		Cooldown: sys.CooldownOptions{
			Enabled:         sys.Atoi(parts[3]) > 0,
			DurationMinutes: sys.Atoi(parts[3]),
		},
		Review: sys.ReviewOptions{
			Enabled: flags&8 != 0,
		},
	}

	ctx := context.Background()
	if err := sys.DataStore.CreateForm(ctx, form); err != nil {
		sys.LogForm("form create failed: %v", err)
		respondModalEphemeral(event, MsgFormStoreError)
		return
	}

	if err := publishFormEmbed(ctx, event.Client(), form); err != nil {
		respondModalEphemeral(event, fmt.Sprintf(MsgFormPublishFailed, err))
		return
	}

	sys.LogForm("form %s (%s) created in guild %s", form.ID, form.Title, form.GuildID)
	respondModalEphemeral(event, fmt.Sprintf(MsgFormCreated, form.Title, form.EmbedChannelID))
}
