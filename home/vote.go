package home

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/dustin/go-humanize"
	"github.com/myformhq/myform/proc"
	"github.com/myformhq/myform/sys"
)

const (
	MsgVoteInfo = "## 🗳️ Vote for MyForm\nVote on top.gg to earn AI credits: **2 credits** per vote, **3 on weekends**.\n%s\n\nYou currently have **%d** credit(s)."
	MsgVoteCredits     = "💳 You have **%d** AI credit(s). Last vote: %s."
	MsgVoteNever       = "never"
	MsgVoteStaffOnly   = "❌ Only the bot staff can use this command."
	MsgVoteUserInfo    = "👤 <@%s> has **%d** credit(s), last vote: %s."
	MsgVoteReminderOK  = "✅ Reminder sent to <@%s>."
	MsgVoteReminderErr = "❌ Could not DM <@%s> (closed DMs?)."
	MsgVoteNoEligible  = "Nobody is currently eligible to re-vote."
	MsgVoteEligible    = "## Eligible to re-vote (%d)\n%s"
	MsgVoteAllSent     = "✅ Reminders sent: %d delivered, %d failed."
	MsgVoteStatistics  = "## 🗳️ Vote statistics\n- Voters: **%d**\n- Credits outstanding: **%d**\n- Votes today: **%d**"

	// Votes unlock again 12 hours after the last one.
	voteCooldown = 12 * time.Hour
)

func init() {
	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:        "vote",
		Description: "Vote for the bot and earn AI credits",
	}, handleVote)

	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:        "vote-credits",
		Description: "Show your AI credit balance",
	}, handleVoteCredits)

	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:        "vote-admin",
		Description: "Vote system administration (staff only)",
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionSubCommand{
				Name:        "user-info",
				Description: "Inspect a user's credits",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionUser{
						Name:        "user",
						Description: "The user to inspect",
						Required:    true,
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "send-reminder",
				Description: "DM one user a vote reminder",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionUser{
						Name:        "user",
						Description: "The user to remind",
						Required:    true,
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "list-eligible",
				Description: "List users whose vote cooldown is over",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "send-all-reminders",
				Description: "DM every eligible user a vote reminder",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "statistics",
				Description: "Vote system statistics",
			},
		},
	}, handleVoteAdmin)
}

func handleVote(event *events.ApplicationCommandInteractionCreate) {
	credits, err := sys.DataStore.GetVoteCredits(context.Background(), event.User().ID.String())
	if err != nil {
		respondEphemeral(event, MsgFormStoreError)
		return
	}
	respondEphemeral(event, fmt.Sprintf(MsgVoteInfo, sys.VoteURL(), credits.Credits))
}

func handleVoteCredits(event *events.ApplicationCommandInteractionCreate) {
	credits, err := sys.DataStore.GetVoteCredits(context.Background(), event.User().ID.String())
	if err != nil {
		respondEphemeral(event, MsgFormStoreError)
		return
	}
	last := MsgVoteNever
	if !credits.LastVote.IsZero() {
		last = humanize.Time(credits.LastVote)
	}
	respondEphemeral(event, fmt.Sprintf(MsgVoteCredits, credits.Credits, last))
}

func handleVoteAdmin(event *events.ApplicationCommandInteractionCreate) {
	if !sys.GlobalConfig.IsStaff(event.User().ID.String()) {
		respondEphemeral(event, MsgVoteStaffOnly)
		return
	}
	data := event.SlashCommandInteractionData()
	subCmd := data.SubCommandName
	if subCmd == nil {
		return
	}
	ctx := context.Background()

	switch *subCmd {
	case "user-info":
		user := data.User("user")
		credits, err := sys.DataStore.GetVoteCredits(ctx, user.ID.String())
		if err != nil {
			respondEphemeral(event, MsgFormStoreError)
			return
		}
		last := MsgVoteNever
		if !credits.LastVote.IsZero() {
			last = humanize.Time(credits.LastVote)
		}
		respondEphemeral(event, fmt.Sprintf(MsgVoteUserInfo, user.ID, credits.Credits, last))

	case "send-reminder":
		user := data.User("user")
		if err := proc.SendVoteReminder(event.Client(), user.ID.String()); err != nil {
			respondEphemeral(event, fmt.Sprintf(MsgVoteReminderErr, user.ID))
			return
		}
		respondEphemeral(event, fmt.Sprintf(MsgVoteReminderOK, user.ID))

	case "list-eligible":
		eligible, err := sys.DataStore.ListVoteEligible(ctx, time.Now().Add(-voteCooldown))
		if err != nil {
			respondEphemeral(event, MsgFormStoreError)
			return
		}
		if len(eligible) == 0 {
			respondEphemeral(event, MsgVoteNoEligible)
			return
		}
		var sb strings.Builder
		for i, v := range eligible {
			if i == 30 {
				sb.WriteString(fmt.Sprintf("… and %d more\n", len(eligible)-30))
				break
			}
			sb.WriteString(fmt.Sprintf("- <@%s> (last vote %s)\n", v.UserID, humanize.Time(v.LastVote)))
		}
		respondEphemeral(event, fmt.Sprintf(MsgVoteEligible, len(eligible), sb.String()))

	case "send-all-reminders":
		eligible, err := sys.DataStore.ListVoteEligible(ctx, time.Now().Add(-voteCooldown))
		if err != nil {
			respondEphemeral(event, MsgFormStoreError)
			return
		}
		sent, failed := 0, 0
		for _, v := range eligible {
			if err := proc.SendVoteReminder(event.Client(), v.UserID); err != nil {
				failed++
			} else {
				sent++
			}
		}
		respondEphemeral(event, fmt.Sprintf(MsgVoteAllSent, sent, failed))

	case "statistics":
		stats, err := sys.DataStore.GetVoteStats(ctx)
		if err != nil {
			respondEphemeral(event, MsgFormStoreError)
			return
		}
		respondEphemeral(event, fmt.Sprintf(MsgVoteStatistics, stats.Voters, stats.TotalCredits, stats.VotesToday))
	}
}

// VoteCreditAmount returns the credit grant for a vote at the given time:
// 2 normally, 3 on weekends (UTC).
func VoteCreditAmount(at time.Time) int {
	switch at.UTC().Weekday() {
	case time.Saturday, time.Sunday:
		return 3
	}
	return 2
}
