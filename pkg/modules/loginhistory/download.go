// pkg/modules/loginhistory/download.go
package loginhistory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// downloadWatch observes a download directory for a CSV that was not there
// when the watch started.
type downloadWatch struct {
	dir     string
	watcher *fsnotify.Watcher
	before  map[string]bool
}

// watchDownloads starts watching dir. Call it before triggering the download
// so the new file cannot be missed.
func watchDownloads(dir string) (*downloadWatch, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read download dir: %w", err)
	}
	before := make(map[string]bool, len(entries))
	for _, e := range entries {
		before[e.Name()] = true
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create download watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch download dir: %w", err)
	}
	return &downloadWatch{dir: dir, watcher: w, before: before}, nil
}

func isCSV(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".csv")
}

// Wait returns the path of the first new CSV, or "" when none appears
// within limit. Browsers write to a temporary name and rename on completion,
// so only the final .csv name counts.
func (d *downloadWatch) Wait(ctx context.Context, limit time.Duration) (string, error) {
	timer := time.NewTimer(limit)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
			return d.scan(), nil
		case ev, ok := <-d.watcher.Events:
			if !ok {
				return d.scan(), nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Write) {
				continue
			}
			name := filepath.Base(ev.Name)
			if isCSV(name) && !d.before[name] {
				if _, err := os.Stat(ev.Name); err == nil {
					return ev.Name, nil
				}
			}
		case err, ok := <-d.watcher.Errors:
			if !ok {
				return d.scan(), nil
			}
			return "", fmt.Errorf("download watcher: %w", err)
		}
	}
}

// scan is the fallback for events the watcher dropped.
func (d *downloadWatch) scan() string {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return ""
	}
	for _, e := range entries {
		if !e.IsDir() && isCSV(e.Name()) && !d.before[e.Name()] {
			return filepath.Join(d.dir, e.Name())
		}
	}
	return ""
}

func (d *downloadWatch) Close() error {
	return d.watcher.Close()
}
