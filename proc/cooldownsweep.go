package proc

import (
	"context"
	"time"

	"github.com/myformhq/myform/sys"
)

// Periodic sweep pruning expired cooldown rows so the table stays small.

const cooldownSweepInterval = 10 * time.Minute

func init() {
	sys.RegisterDaemon(sys.LogCooldown, startCooldownSweeper)
}

func startCooldownSweeper(ctx context.Context) (bool, func(), func()) {
	daemonCtx, cancel := context.WithCancel(ctx)

	run := func() {
		ticker := time.NewTicker(cooldownSweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				removed, err := sys.DataStore.SweepCooldowns(daemonCtx, time.Now().UnixMilli())
				if err != nil {
					sys.LogCooldown("sweep failed: %v", err)
					continue
				}
				if removed > 0 {
					sys.LogCooldown("pruned %d expired cooldown(s)", removed)
				}
			case <-daemonCtx.Done():
				return
			}
		}
	}

	return true, run, cancel
}
