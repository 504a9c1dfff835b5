package config

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("config")

// Editors write files in bursts (truncate, write, chmod); wait this long
// after the last event before re-reading.
const watchSettle = 200 * time.Millisecond

// Watch re-reads the config file whenever it changes and hands every valid
// result to onChange. Invalid files are logged and skipped. The parent
// directory is watched so atomic rename-over saves are seen too.
func Watch(path string, onChange func(Config)) (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		// The settle timer only signals; reloads run here, one at a time and
		// in event order.
		settle := time.NewTimer(watchSettle)
		if !settle.Stop() {
			<-settle.C
		}
		defer settle.Stop()

		for {
			select {
			case <-done:
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs {
					continue
				}
				if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
					continue
				}
				settle.Reset(watchSettle)
			case <-settle.C:
				cfg, err := Load(abs)
				if err != nil {
					log.Warnf("ignoring config change in %s: %v", abs, err)
					continue
				}
				log.Infof("config reloaded from %s", abs)
				onChange(cfg)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warnf("config watcher error: %v", err)
			}
		}
	}()

	return func() {
		close(done)
		w.Close()
	}, nil
}
