package logstore

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"
)

// RunCleaner periodically removes log files and archives in dir whose run
// started before now-retention. The file named keep is never touched.
// It returns when ctx is done.
func RunCleaner(ctx context.Context, dir string, retention, interval time.Duration, keep string) {
	if retention <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("Cleaner started. Retention: %v, Interval: %v", retention, interval)

	for {
		select {
		case <-ticker.C:
			PurgeExpired(dir, time.Now().Add(-retention), keep)
		case <-ctx.Done():
			return
		}
	}
}

// PurgeExpired deletes log files older than threshold and returns their names.
func PurgeExpired(dir string, threshold time.Time, keep string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		log.Printf("Cleaner error: failed to read log dir: %v", err)
		return nil
	}

	keep = filepath.Base(keep)
	var removed []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == keep {
			continue
		}

		ts, err := ParseFileTime(name)
		if err != nil {
			continue // not ours
		}
		if !ts.Before(threshold) {
			continue
		}

		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			log.Printf("Cleaner error: failed to delete %s: %v", name, err)
			continue
		}
		log.Printf("Expired file deleted: %s", name)
		removed = append(removed, name)
	}
	return removed
}
