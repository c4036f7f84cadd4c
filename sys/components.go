package sys

import (
	"strconv"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
)

// ===========================
// Message builders
// ===========================

// TextMessage wraps content in a ComponentsV2 container, the layout every
// bot-authored message uses.
func TextMessage(content string) discord.MessageCreate {
	return discord.NewMessageCreateV2(discord.NewContainer(discord.NewTextDisplay(content)))
}

// EphemeralMessage is TextMessage visible only to the interaction user.
func EphemeralMessage(content string) discord.MessageCreate {
	return discord.NewMessageCreateV2(discord.NewContainer(discord.NewTextDisplay(content))).
		WithEphemeral(true)
}

// ContainerMessage builds a ComponentsV2 message from arbitrary layout
// components, used when a message carries buttons alongside text.
func ContainerMessage(components ...discord.ContainerSubComponent) discord.MessageCreate {
	return discord.NewMessageCreateV2(discord.NewContainer(components...))
}

// EphemeralContainer is ContainerMessage visible only to the interaction user.
func EphemeralContainer(components ...discord.ContainerSubComponent) discord.MessageCreate {
	return discord.NewMessageCreateV2(discord.NewContainer(components...)).
		WithEphemeral(true)
}

// SendText posts a container message to a channel.
func SendText(client *bot.Client, channelID snowflake.ID, content string) (*discord.Message, error) {
	return client.Rest.CreateMessage(channelID, TextMessage(content))
}

// SendDM opens (or reuses) a DM channel for userID and sends a container
// message there.
func SendDM(client *bot.Client, userID snowflake.ID, message discord.MessageCreate) (*discord.Message, error) {
	channel, err := client.Rest.CreateDMChannel(userID)
	if err != nil {
		return nil, err
	}
	return client.Rest.CreateMessage(channel.ID(), message)
}

// ===========================
// Small utilities
// ===========================

func Min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func Atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// Truncate cuts s at maxLen runes with an ellipsis.
func Truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

// ParseSnowflake parses a Discord ID string, returning 0 on bad input.
func ParseSnowflake(s string) snowflake.ID {
	id, err := snowflake.Parse(s)
	if err != nil {
		return 0
	}
	return id
}
