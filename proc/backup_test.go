package proc

import (
	"testing"
	"time"
)

func resetBackupState(t *testing.T) {
	t.Helper()
	backupMu.Lock()
	prevLast, prevResult, prevNext := lastBackupAt, lastBackupResult, nextBackupAt
	lastBackupAt, lastBackupResult, nextBackupAt = time.Time{}, "", time.Time{}
	backupMu.Unlock()
	t.Cleanup(func() {
		backupMu.Lock()
		lastBackupAt, lastBackupResult, nextBackupAt = prevLast, prevResult, prevNext
		backupMu.Unlock()
	})
}

func TestBackupStatusTracksNextRun(t *testing.T) {
	resetBackupState(t)

	last, result, next := BackupStatus()
	if !last.IsZero() || result != "" || !next.IsZero() {
		t.Fatal("fresh state must report nothing")
	}

	scheduled := time.Now().Add(backupInterval)
	scheduleNextBackup(scheduled)
	recordBackup("ok (2.1 MB)")

	last, result, next = BackupStatus()
	if last.IsZero() {
		t.Error("last attempt not recorded")
	}
	if result != "ok (2.1 MB)" {
		t.Errorf("result = %q", result)
	}
	if !next.Equal(scheduled) {
		t.Errorf("next = %v, want %v", next, scheduled)
	}
}
