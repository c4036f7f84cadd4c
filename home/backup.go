package home

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/dustin/go-humanize"
	"github.com/myformhq/myform/proc"
	"github.com/myformhq/myform/sys"
)

const (
	MsgBackupStaffOnly = "❌ Only the bot staff can manage backups."
	MsgBackupTestOK    = "✅ Backup target is reachable."
	MsgBackupTestFail  = "❌ Backup target test failed: %v"
	MsgBackupDone      = "✅ Manual backup uploaded."
	MsgBackupFail      = "❌ Backup failed: %v"
	MsgBackupNever     = "No backup has run since startup."
	MsgBackupStatus    = "🗄️ Last backup attempt: %s — %s\nNext scheduled run: %s"
)

func init() {
	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:        "backup",
		Description: "Database backup controls (staff only)",
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionSubCommand{
				Name:        "test",
				Description: "Check that the backup target is reachable",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "manual",
				Description: "Run a backup now",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "status",
				Description: "Show the last backup attempt",
			},
		},
	}, handleBackup)
}

func handleBackup(event *events.ApplicationCommandInteractionCreate) {
	if !sys.GlobalConfig.IsStaff(event.User().ID.String()) {
		respondEphemeral(event, MsgBackupStaffOnly)
		return
	}
	data := event.SlashCommandInteractionData()
	subCmd := data.SubCommandName
	if subCmd == nil {
		return
	}
	ctx := context.Background()

	switch *subCmd {
	case "test":
		if err := proc.VerifyBackupTarget(ctx); err != nil {
			respondEphemeral(event, fmt.Sprintf(MsgBackupTestFail, err))
			return
		}
		respondEphemeral(event, MsgBackupTestOK)

	case "manual":
		if err := proc.RunBackup(ctx); err != nil {
			respondEphemeral(event, fmt.Sprintf(MsgBackupFail, err))
			return
		}
		respondEphemeral(event, MsgBackupDone)

	case "status":
		at, result, next := proc.BackupStatus()
		if at.IsZero() {
			msg := MsgBackupNever
			if !next.IsZero() {
				msg += fmt.Sprintf(" Next scheduled run: %s.", humanize.Time(next))
			}
			respondEphemeral(event, msg)
			return
		}
		nextRun := "not scheduled"
		if !next.IsZero() {
			nextRun = humanize.Time(next)
		}
		respondEphemeral(event, fmt.Sprintf(MsgBackupStatus, at.UTC().Format(time.DateTime), result, nextRun))
	}
}
