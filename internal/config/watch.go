package config

import (
	"context"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"rafflebot/pkg/logx"
)

const debounceWindow = 300 * time.Millisecond

// Watch reloads the config file on change and calls onChange with each new,
// validated config. Invalid edits are logged and skipped; the previous config
// stays in effect. Events are debounced because editors commonly emit several
// write events per save, and identical content is deduped by hash.
//
// Watch blocks until ctx is done.
func Watch(ctx context.Context, path string, log logx.Logger, onChange func(*Config)) error {
	dir := filepath.Dir(path)
	file := filepath.Base(path)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return err
	}

	var lastHash uint64
	if b, err := readAndHash(path); err == nil {
		lastHash = b
	}

	var tmr *time.Timer
	reload := make(chan struct{}, 1)
	debounce := func() {
		if tmr != nil {
			tmr.Stop()
		}
		tmr = time.AfterFunc(debounceWindow, func() {
			select {
			case reload <- struct{}{}:
			default:
			}
		})
	}

	log.Debug("config watcher started", logx.String("dir", dir), logx.String("file", file))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			// Compare by basename; editors often replace the file via rename.
			if strings.EqualFold(filepath.Base(ev.Name), file) {
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Chmod) != 0 {
					debounce()
				}
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			if err != nil {
				log.Warn("config watch error", logx.Err(err), logx.String("dir", dir))
			}
		case <-reload:
			h, err := readAndHash(path)
			if err != nil {
				log.Warn("config reload read failed", logx.Err(err), logx.String("path", path))
				continue
			}
			if h == lastHash {
				continue
			}
			cfg, err := Load(path)
			if err != nil {
				log.Warn("config reload rejected", logx.Err(err), logx.String("path", path))
				continue
			}
			lastHash = h
			log.Info("config reloaded", logx.String("path", path))
			onChange(cfg)
		}
	}
}

func readAndHash(path string) (uint64, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64(), nil
}
