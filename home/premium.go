package home

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/omit"
	"github.com/myformhq/myform/sys"
)

const (
	MsgPremiumStaffOnly   = "❌ Only the bot staff can generate gift codes."
	MsgPremiumGenerated   = "🎁 Gift code generated:\n```%s```\nIt grants premium to one server, once."
	MsgPremiumRedeemed    = "🎉 This server is now premium! Thank you for the support."
	MsgPremiumAlready     = "✨ This server already has premium."
	MsgPremiumBadCode     = "❌ This gift code does not exist."
	MsgPremiumUsedCode    = "❌ This gift code was already redeemed."
	MsgPremiumStatusOn    = "✨ This server has premium."
	MsgPremiumStatusOff   = "This server does not have premium. Redeem a gift code with /redeem-premium."
	giftCodeAlphabet      = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	giftCodeGroups        = 4
	giftCodeGroupLen      = 4
)

func init() {
	adminPerm := discord.PermissionAdministrator

	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:        "gen-premium",
		Description: "Generate a premium gift code (staff only)",
	}, handleGenPremium)

	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:                     "redeem-premium",
		Description:              "Redeem a premium gift code for this server",
		DefaultMemberPermissions: omit.New(&adminPerm),
		Contexts: []discord.InteractionContextType{
			discord.InteractionContextTypeGuild,
		},
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionString{
				Name:        "code",
				Description: "The gift code",
				Required:    true,
			},
		},
	}, handleRedeemPremium)

	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:                     "premium",
		Description:              "Show this server's premium status",
		DefaultMemberPermissions: omit.New(&adminPerm),
		Contexts: []discord.InteractionContextType{
			discord.InteractionContextTypeGuild,
		},
	}, handlePremiumStatus)
}

// NewGiftCode mints an XXXX-XXXX-XXXX-XXXX code from an alphabet without
// lookalike characters.
func NewGiftCode() string {
	raw := make([]byte, giftCodeGroups*giftCodeGroupLen)
	if _, err := rand.Read(raw); err != nil {
		panic(err)
	}

	groups := make([]string, giftCodeGroups)
	for g := 0; g < giftCodeGroups; g++ {
		chars := make([]byte, giftCodeGroupLen)
		for i := 0; i < giftCodeGroupLen; i++ {
			chars[i] = giftCodeAlphabet[int(raw[g*giftCodeGroupLen+i])%len(giftCodeAlphabet)]
		}
		groups[g] = string(chars)
	}
	return strings.Join(groups, "-")
}

func handleGenPremium(event *events.ApplicationCommandInteractionCreate) {
	userID := event.User().ID.String()
	if !sys.GlobalConfig.IsStaff(userID) {
		respondEphemeral(event, MsgPremiumStaffOnly)
		return
	}

	code := NewGiftCode()
	if err := sys.DataStore.CreateGiftCode(context.Background(), code, userID); err != nil {
		sys.LogPremium("gift code create failed: %v", err)
		respondEphemeral(event, MsgFormStoreError)
		return
	}

	sys.AuditLog("🎁 Gift code generated by <@%s>", userID)
	respondEphemeral(event, fmt.Sprintf(MsgPremiumGenerated, code))
}

func handleRedeemPremium(event *events.ApplicationCommandInteractionCreate) {
	guildID := event.GuildID()
	if guildID == nil {
		return
	}
	data := event.SlashCommandInteractionData()
	code := strings.ToUpper(strings.TrimSpace(data.String("code")))
	userID := event.User().ID.String()
	ctx := context.Background()

	premium, err := sys.DataStore.IsPremium(ctx, guildID.String())
	if err != nil {
		respondEphemeral(event, MsgFormStoreError)
		return
	}
	if premium {
		respondEphemeral(event, MsgPremiumAlready)
		return
	}

	err = sys.DataStore.RedeemGiftCode(ctx, code, guildID.String(), userID)
	switch {
	case errors.Is(err, sys.ErrGiftCodeNotFound):
		respondEphemeral(event, MsgPremiumBadCode)
	case errors.Is(err, sys.ErrGiftCodeUsed):
		respondEphemeral(event, MsgPremiumUsedCode)
	case err != nil:
		sys.LogPremium("redemption failed: %v", err)
		respondEphemeral(event, MsgFormStoreError)
	default:
		sys.AuditLog("💎 Premium redeemed for guild %s by <@%s>", guildID, userID)
		respondEphemeral(event, MsgPremiumRedeemed)
	}
}

func handlePremiumStatus(event *events.ApplicationCommandInteractionCreate) {
	guildID := event.GuildID()
	if guildID == nil {
		return
	}
	premium, err := sys.DataStore.IsPremium(context.Background(), guildID.String())
	if err != nil {
		respondEphemeral(event, MsgFormStoreError)
		return
	}
	if premium {
		respondEphemeral(event, MsgPremiumStatusOn)
	} else {
		respondEphemeral(event, MsgPremiumStatusOff)
	}
}
