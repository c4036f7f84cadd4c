package home

import (
	"context"
	"fmt"
	"time"

	"github.com/myformhq/myform/sys"
)

// Gate block codes, in evaluation order.
const (
	GateBlockGone        = "gone"
	GateBlockDisabled    = "disabled"
	GateBlockBlacklisted = "blacklisted"
	GateBlockClarty      = "clarty"
	GateBlockCooldown    = "cooldown"
	GateBlockAlreadySent = "already_sent"
)

// GateBlock describes why a submission attempt was refused. Message is the
// user-facing reply.
type GateBlock struct {
	Code    string
	Message string
}

// EvaluateGate runs the submission predicate chain in fixed order and
// short-circuits on the first failing check. A nil form stands for a form
// that no longer exists. Apart from the Clarty lookup every check is
// read-only.
func EvaluateGate(ctx context.Context, form *sys.Form, userID string) (*GateBlock, error) {
	if form == nil {
		return &GateBlock{GateBlockGone, MsgFormGone}, nil
	}
	if form.Disabled {
		return &GateBlock{GateBlockDisabled, MsgFormDisabled}, nil
	}

	blocked, err := sys.DataStore.IsBlacklisted(ctx, form.GuildID, userID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return &GateBlock{GateBlockBlacklisted, MsgFormBlacklisted}, nil
	}

	if form.ClartyProtection {
		if hit, reason := sys.CheckClarty(ctx, userID); hit {
			if reason == "" {
				reason = "no reason provided"
			}
			sys.AuditLog("🚫 Clarty blocked user %s on form %s (%s): %s", userID, form.ID, form.GuildID, reason)
			return &GateBlock{GateBlockClarty, MsgFormClartyBlocked}, nil
		}
	}

	if form.Cooldown.Enabled {
		premium, err := sys.DataStore.IsPremium(ctx, form.GuildID)
		if err != nil {
			return nil, err
		}
		if premium {
			expiry, err := sys.DataStore.GetCooldownExpiry(ctx, form.GuildID, form.ID, userID)
			if err != nil {
				return nil, err
			}
			if remaining := time.Until(time.UnixMilli(expiry)); expiry > 0 && remaining > 0 {
				return &GateBlock{
					GateBlockCooldown,
					fmt.Sprintf(MsgFormCooldown, sys.FormatDurationFR(remaining)),
				}, nil
			}
		}
	}

	if form.SingleResponse {
		existing, err := sys.DataStore.GetRespondent(ctx, form.GuildID, form.ID, userID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return &GateBlock{GateBlockAlreadySent, MsgFormAlreadySent}, nil
		}
	}

	return nil, nil
}
