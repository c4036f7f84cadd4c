package proc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/myformhq/myform/sys"
)

// Vote reminders: once a user's 12-hour top.gg cooldown lapses, DM them a
// single reminder, unless they opted out.

const (
	voteReminderInterval = 15 * time.Minute
	voteReminderCooldown = 12 * time.Hour

	MsgVoteReminder = "🗳️ Your top.gg vote cooldown is over, you can vote again and earn credits!\n%s"
)

// SendVoteReminder DMs a user that their vote cooldown is over. Also used
// by the /vote-admin reminder commands.
func SendVoteReminder(client *bot.Client, userID string) error {
	_, err := sys.SendDM(client, sys.ParseSnowflake(userID), sys.TextMessage(fmt.Sprintf(MsgVoteReminder, sys.VoteURL())))
	if err != nil {
		sys.LogVote("reminder DM to %s failed: %v", userID, err)
	}
	return err
}

var (
	remindedMu sync.Mutex
	reminded   = map[string]time.Time{} // userID -> the lastVote already reminded for
)

func init() {
	sys.OnClientReady(func(ctx context.Context, client *bot.Client) {
		sys.RegisterDaemon(sys.LogVote, func(ctx context.Context) (bool, func(), func()) {
			return startVoteReminder(ctx, client)
		})
	})
}

func startVoteReminder(ctx context.Context, client *bot.Client) (bool, func(), func()) {
	daemonCtx, cancel := context.WithCancel(ctx)

	run := func() {
		ticker := time.NewTicker(voteReminderInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				sweepVoteReminders(daemonCtx, client)
			case <-daemonCtx.Done():
				return
			}
		}
	}

	return true, run, cancel
}

func sweepVoteReminders(ctx context.Context, client *bot.Client) {
	eligible, err := sys.DataStore.ListVoteEligible(ctx, time.Now().Add(-voteReminderCooldown))
	if err != nil {
		sys.LogVote("eligibility query failed: %v", err)
		return
	}

	for _, v := range eligible {
		remindedMu.Lock()
		already := reminded[v.UserID].Equal(v.LastVote)
		remindedMu.Unlock()
		if already {
			continue
		}

		pref, err := sys.DataStore.GetSupportPreference(ctx, v.UserID)
		if err != nil {
			sys.LogVote("preference lookup failed for %s: %v", v.UserID, err)
			continue
		}
		if !pref.Reminders {
			continue
		}

		// A failed DM still counts as handled; retrying every tick would
		// spam the log for users with closed DMs.
		_ = SendVoteReminder(client, v.UserID)

		remindedMu.Lock()
		reminded[v.UserID] = v.LastVote
		remindedMu.Unlock()
	}
}
