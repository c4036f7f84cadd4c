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
		Name:                     "deleteform",
		Description:              "Delete a form and its embed",
		DefaultMemberPermissions: omit.New(&managePerm),
		Contexts: []discord.InteractionContextType{
			discord.InteractionContextTypeGuild,
		},
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionString{
				Name:         "form",
				Description:  "The form to delete",
				Required:     true,
				Autocomplete: true,
			},
		},
	}, handleDeleteForm)

	sys.RegisterAutocompleteHandler("deleteform", formAutocomplete)
	sys.RegisterComponentHandler(ComponentFormDelete, handleDeleteFormConfirm)
}

func handleDeleteForm(event *events.ApplicationCommandInteractionCreate) {
	data := event.SlashCommandInteractionData()
	form := requireGuildForm(context.Background(), event, data.String("form"))
	if form == nil {
		return
	}

	err := event.CreateMessage(sys.EphemeralContainer(
		discord.NewTextDisplay(fmt.Sprintf(MsgFormDeleteConfirm, form.Title)),
		discord.NewActionRow(
			discord.NewButton(discord.ButtonStyleDanger, "Delete", fmt.Sprintf("%s%s:yes", ComponentFormDelete, form.ID), "", 0),
			discord.NewButton(discord.ButtonStyleSecondary, "Cancel", fmt.Sprintf("%s%s:no", ComponentFormDelete, form.ID), "", 0),
		),
	))
	if err != nil {
		sys.LogForm("failed to send delete confirmation: %v", err)
	}
}

func handleDeleteFormConfirm(event *events.ComponentInteractionCreate) {
	guildID := event.GuildID()
	if guildID == nil {
		return
	}

	parts := strings.Split(strings.TrimPrefix(event.Data.CustomID(), ComponentFormDelete), ":")
	if len(parts) != 2 {
		return
	}
	formID, verdict := parts[0], parts[1]

	if verdict != "yes" {
		respondComponentEphemeral(event, MsgFormDeleteCancelled)
		return
	}

	ctx := context.Background()
	form, err := sys.DataStore.GetForm(ctx, guildID.String(), formID)
	if err != nil {
		sys.LogForm("form lookup failed: %v", err)
		respondComponentEphemeral(event, MsgFormStoreError)
		return
	}
	if form == nil {
		respondComponentEphemeral(event, MsgFormNotFound)
		return
	}

	if err := sys.DataStore.DeleteForm(ctx, form.GuildID, form.ID); err != nil {
		sys.LogForm("form delete failed: %v", err)
		respondComponentEphemeral(event, MsgFormStoreError)
		return
	}

	// Best effort: the embed may already be gone.
	if form.EmbedMessageID != "" {
		if err := event.Client().Rest.DeleteMessage(sys.ParseSnowflake(form.EmbedChannelID), sys.ParseSnowflake(form.EmbedMessageID)); err != nil {
			sys.LogForm("embed cleanup failed for form %s: %v", form.ID, err)
		}
	}

	sys.LogForm("form %s (%s) deleted from guild %s", form.ID, form.Title, form.GuildID)
	respondComponentEphemeral(event, fmt.Sprintf(MsgFormDeleted, form.Title))
}
