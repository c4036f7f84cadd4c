package proc

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/myformhq/myform/sys"
)

// Daily off-site backup: VACUUM the database into a temp snapshot and ship
// it to the configured Discord webhook.

const backupInterval = 24 * time.Hour

var (
	backupMu         sync.Mutex
	lastBackupAt     time.Time
	lastBackupResult string
	nextBackupAt     time.Time
)

func init() {
	sys.RegisterDaemon(sys.LogBackup, startBackupDaemon)
}

func startBackupDaemon(ctx context.Context) (bool, func(), func()) {
	if sys.GlobalConfig.BackupWebhookURL == "" {
		return false, nil, nil
	}

	daemonCtx, cancel := context.WithCancel(ctx)

	run := func() {
		ticker := time.NewTicker(backupInterval)
		defer ticker.Stop()
		scheduleNextBackup(time.Now().Add(backupInterval))

		for {
			select {
			case <-ticker.C:
				if err := RunBackup(daemonCtx); err != nil {
					sys.LogBackup("scheduled backup failed: %v", err)
				}
				scheduleNextBackup(time.Now().Add(backupInterval))
			case <-daemonCtx.Done():
				return
			}
		}
	}

	return true, run, cancel
}

// RunBackup snapshots the database and uploads it to the backup webhook.
// Also invoked by the /backup manual command.
func RunBackup(ctx context.Context) error {
	path := filepath.Join(os.TempDir(), fmt.Sprintf("myform-%s.db", time.Now().UTC().Format("20060102-150405")))
	defer os.Remove(path)

	if err := sys.DataStore.BackupTo(ctx, path); err != nil {
		recordBackup(fmt.Sprintf("snapshot failed: %v", err))
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		recordBackup(fmt.Sprintf("stat failed: %v", err))
		return err
	}

	file, err := os.Open(path)
	if err != nil {
		recordBackup(fmt.Sprintf("open failed: %v", err))
		return err
	}
	defer file.Close()

	caption := fmt.Sprintf("🗄️ Database backup %s (%s)", time.Now().UTC().Format(time.DateTime), humanize.Bytes(uint64(info.Size())))
	if err := sys.UploadFileToWebhook(ctx, sys.GlobalConfig.BackupWebhookURL, filepath.Base(path), file, caption); err != nil {
		recordBackup(fmt.Sprintf("upload failed: %v", err))
		return err
	}

	recordBackup(fmt.Sprintf("ok (%s)", humanize.Bytes(uint64(info.Size()))))
	sys.LogBackup("backup uploaded (%s)", humanize.Bytes(uint64(info.Size())))
	return nil
}

func recordBackup(result string) {
	backupMu.Lock()
	lastBackupAt = time.Now()
	lastBackupResult = result
	backupMu.Unlock()
}

func scheduleNextBackup(at time.Time) {
	backupMu.Lock()
	nextBackupAt = at
	backupMu.Unlock()
}

// BackupStatus reports the last backup attempt and the next scheduled run
// for the status command. Next is zero when the daemon is not running.
func BackupStatus() (last time.Time, result string, next time.Time) {
	backupMu.Lock()
	defer backupMu.Unlock()
	return lastBackupAt, lastBackupResult, nextBackupAt
}

// VerifyBackupTarget checks that a webhook is configured without uploading
// anything, for /backup test.
func VerifyBackupTarget(ctx context.Context) error {
	if sys.GlobalConfig.BackupWebhookURL == "" {
		return fmt.Errorf("no backup webhook configured")
	}
	return sys.PostWebhook(ctx, sys.GlobalConfig.BackupWebhookURL, "🔧 Backup target test: reachable.")
}
