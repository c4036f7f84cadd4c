package home

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/omit"
	"github.com/myformhq/myform/sys"
)

func init() {
	managePerm := discord.PermissionManageGuild

	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:                     "stats",
		Description:              "Overview of this server's forms",
		DefaultMemberPermissions: omit.New(&managePerm),
		Contexts: []discord.InteractionContextType{
			discord.InteractionContextTypeGuild,
		},
	}, handleStats)
}

func handleStats(event *events.ApplicationCommandInteractionCreate) {
	guildID := event.GuildID()
	if guildID == nil {
		return
	}
	ctx := context.Background()

	forms, err := sys.DataStore.ListForms(ctx, guildID.String())
	if err != nil {
		respondEphemeral(event, MsgFormStoreError)
		return
	}
	premium, err := sys.DataStore.IsPremium(ctx, guildID.String())
	if err != nil {
		respondEphemeral(event, MsgFormStoreError)
		return
	}

	var sb strings.Builder
	sb.WriteString("## 📊 MyForm on this server\n")
	if premium {
		sb.WriteString("✨ Premium server\n")
	} else {
		sb.WriteString(fmt.Sprintf("Free plan (%d/%d forms)\n", len(forms), sys.GlobalConfig.FreeFormLimit))
	}
	sb.WriteString(fmt.Sprintf("Uptime: %s\n", time.Since(sys.StartupTime).Round(time.Second)))

	if len(forms) == 0 {
		sb.WriteString("\n" + MsgFormNoForms)
	}
	for _, f := range forms {
		state := "🟢"
		if f.Disabled {
			state = "🔴"
		}
		extras := []string{fmt.Sprintf("%d question(s)", len(f.Questions))}
		if f.SingleResponse {
			extras = append(extras, "single response")
		}
		if f.Review.Enabled {
			extras = append(extras, "review")
		}
		if f.Cooldown.Enabled {
			extras = append(extras, fmt.Sprintf("cooldown %dm", f.Cooldown.DurationMinutes))
		}
		sb.WriteString(fmt.Sprintf("\n%s **%s** (`%s`) — %s", state, f.Title, f.ID, strings.Join(extras, ", ")))
	}

	respondEphemeral(event, sb.String())
}
