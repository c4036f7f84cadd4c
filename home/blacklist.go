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

const (
	MsgBlacklistAdded   = "✅ <@%s> can no longer answer forms on this server."
	MsgBlacklistRemoved = "✅ <@%s> can answer forms again."
	MsgBlacklistEmpty   = "The blacklist is empty."
	MsgBlacklistHeader  = "## 🚫 Blacklisted users (%d)\n%s"
)

func init() {
	managePerm := discord.PermissionManageGuild

	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:                     "blacklist",
		Description:              "Manage the form blacklist",
		DefaultMemberPermissions: omit.New(&managePerm),
		Contexts: []discord.InteractionContextType{
			discord.InteractionContextTypeGuild,
		},
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionSubCommand{
				Name:        "add",
				Description: "Block a user from answering forms",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionUser{
						Name:        "user",
						Description: "The user to block",
						Required:    true,
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "remove",
				Description: "Unblock a user",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionUser{
						Name:        "user",
						Description: "The user to unblock",
						Required:    true,
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "list",
				Description: "Show blacklisted users",
			},
		},
	}, handleBlacklist)
}

func handleBlacklist(event *events.ApplicationCommandInteractionCreate) {
	guildID := event.GuildID()
	if guildID == nil {
		return
	}
	data := event.SlashCommandInteractionData()
	subCmd := data.SubCommandName
	if subCmd == nil {
		return
	}
	ctx := context.Background()

	switch *subCmd {
	case "add", "remove":
		user := data.User("user")
		blocked := *subCmd == "add"
		if err := sys.DataStore.SetBlacklisted(ctx, guildID.String(), user.ID.String(), blocked); err != nil {
			sys.LogForm("blacklist update failed: %v", err)
			respondEphemeral(event, MsgFormStoreError)
			return
		}
		if blocked {
			sys.LogForm("user %s blacklisted in guild %s", user.ID, guildID)
			respondEphemeral(event, fmt.Sprintf(MsgBlacklistAdded, user.ID))
		} else {
			respondEphemeral(event, fmt.Sprintf(MsgBlacklistRemoved, user.ID))
		}

	case "list":
		users, err := sys.DataStore.ListBlacklist(ctx, guildID.String())
		if err != nil {
			sys.LogForm("blacklist lookup failed: %v", err)
			respondEphemeral(event, MsgFormStoreError)
			return
		}
		if len(users) == 0 {
			respondEphemeral(event, MsgBlacklistEmpty)
			return
		}
		var sb strings.Builder
		for _, id := range users {
			sb.WriteString(fmt.Sprintf("- <@%s>\n", id))
		}
		respondEphemeral(event, fmt.Sprintf(MsgBlacklistHeader, len(users), sb.String()))
	}
}
