package refresh

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	appLog "schedbot/internal/log"
)

// DefaultDebounce coalesces the burst of events an editor save produces.
const DefaultDebounce = 250 * time.Millisecond

// Watch calls onChange after .csv files in dir are written, created,
// renamed or removed. Bursts closer than debounce collapse into one call.
// It blocks until ctx is done.
func Watch(ctx context.Context, dir string, debounce time.Duration, onChange func()) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch init: %w", err)
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	appLog.Info("watching sheet files", "dir", dir)

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	schedule := func(name string) {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		appLog.Debug("sheet file change detected; scheduling refresh", "file", name)
		timer = time.AfterFunc(debounce, func() {
			if ctx.Err() == nil {
				onChange()
			}
		})
	}
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !strings.EqualFold(filepath.Ext(ev.Name), ".csv") {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				schedule(filepath.Base(ev.Name))
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			// Overflow means events may be lost; refresh once to catch up.
			appLog.Warn("sheet watch error", "dir", dir, "err", err)
			schedule("")
		}
	}
}
