package home

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/myformhq/myform/sys"
)

const (
	MsgSupportInfo = "## 🆘 MyForm support\n- Web panel: %s\n- Vote and earn AI credits: /vote\n\nYour preferences: support messages by DM: **%v**, vote reminders: **%v**.\nUse the options of /support to change them."
	MsgSupportUpdated    = "✅ Support preferences updated."
	MsgSupportStaffOnly  = "❌ Only the bot staff can use this command."
	MsgSupportUserStatus = "👤 <@%s> — support by DM: **%v**, reminders: **%v**, updated %s."
	MsgSupportStats      = "## 🆘 Support preferences\n- Users with saved preferences: **%d**\n- Preferring DM: **%d**"
)

func init() {
	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:        "support",
		Description: "Support links and personal preferences",
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionBool{
				Name:        "prefer-dm",
				Description: "Receive support messages by DM",
				Required:    false,
			},
			discord.ApplicationCommandOptionBool{
				Name:        "reminders",
				Description: "Receive vote reminders",
				Required:    false,
			},
		},
	}, handleSupport)

	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:        "support-admin",
		Description: "Support administration (staff only)",
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionSubCommand{
				Name:        "user-status",
				Description: "Inspect a user's support preferences",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionUser{
						Name:        "user",
						Description: "The user to inspect",
						Required:    true,
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "set-preference",
				Description: "Override a user's support preferences",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionUser{
						Name:        "user",
						Description: "The user to update",
						Required:    true,
					},
					discord.ApplicationCommandOptionBool{
						Name:        "prefer-dm",
						Description: "Receive support messages by DM",
						Required:    true,
					},
					discord.ApplicationCommandOptionBool{
						Name:        "reminders",
						Description: "Receive vote reminders",
						Required:    true,
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "statistics",
				Description: "Support preference statistics",
			},
		},
	}, handleSupportAdmin)
}

func handleSupport(event *events.ApplicationCommandInteractionCreate) {
	data := event.SlashCommandInteractionData()
	userID := event.User().ID.String()
	ctx := context.Background()

	pref, err := sys.DataStore.GetSupportPreference(ctx, userID)
	if err != nil {
		respondEphemeral(event, MsgFormStoreError)
		return
	}

	changed := false
	if b, ok := data.OptBool("prefer-dm"); ok {
		pref.PreferDM = b
		changed = true
	}
	if b, ok := data.OptBool("reminders"); ok {
		pref.Reminders = b
		changed = true
	}

	if changed {
		if err := sys.DataStore.SetSupportPreference(ctx, pref); err != nil {
			respondEphemeral(event, MsgFormStoreError)
			return
		}
		respondEphemeral(event, MsgSupportUpdated)
		return
	}

	panelURL := sys.GlobalConfig.BaseURL
	if panelURL == "" {
		panelURL = "not configured"
	}
	respondEphemeral(event, fmt.Sprintf(MsgSupportInfo, panelURL, pref.PreferDM, pref.Reminders))
}

func handleSupportAdmin(event *events.ApplicationCommandInteractionCreate) {
	if !sys.GlobalConfig.IsStaff(event.User().ID.String()) {
		respondEphemeral(event, MsgSupportStaffOnly)
		return
	}
	data := event.SlashCommandInteractionData()
	subCmd := data.SubCommandName
	if subCmd == nil {
		return
	}
	ctx := context.Background()

	switch *subCmd {
	case "user-status":
		user := data.User("user")
		pref, err := sys.DataStore.GetSupportPreference(ctx, user.ID.String())
		if err != nil {
			respondEphemeral(event, MsgFormStoreError)
			return
		}
		updated := "never"
		if !pref.UpdatedAt.IsZero() {
			updated = pref.UpdatedAt.Format(time.DateTime)
		}
		respondEphemeral(event, fmt.Sprintf(MsgSupportUserStatus, user.ID, pref.PreferDM, pref.Reminders, updated))

	case "set-preference":
		user := data.User("user")
		preferDM, _ := data.OptBool("prefer-dm")
		reminders, _ := data.OptBool("reminders")
		err := sys.DataStore.SetSupportPreference(ctx, &sys.SupportPreference{
			UserID:    user.ID.String(),
			PreferDM:  preferDM,
			Reminders: reminders,
		})
		if err != nil {
			respondEphemeral(event, MsgFormStoreError)
			return
		}
		respondEphemeral(event, MsgSupportUpdated)

	case "statistics":
		total, preferDM, err := sys.DataStore.CountSupportPreferences(ctx)
		if err != nil {
			respondEphemeral(event, MsgFormStoreError)
			return
		}
		respondEphemeral(event, fmt.Sprintf(MsgSupportStats, total, preferDM))
	}
}
