// Package tokenfile serves an ACL token read from a file and reloads it when
// the file changes on disk.
package tokenfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"pkt.systems/consulate/internal/pathutil"
	"pkt.systems/consulate/internal/svcfields"
	"pkt.systems/pslog"
)

// Watcher is a transport.TokenSource backed by a file. The parent directory
// is watched so editors and secret managers that replace the file through a
// rename are picked up.
type Watcher struct {
	path    string
	logger  pslog.Base
	watcher *fsnotify.Watcher

	mu    sync.RWMutex
	token string

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// Read returns the trimmed contents of path.
func Read(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("consulate: read token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Open reads path and starts watching it. Close stops the watcher.
func Open(path string, logger pslog.Base) (*Watcher, error) {
	resolved, err := pathutil.Resolve(path)
	if err != nil {
		return nil, fmt.Errorf("consulate: token file: %w", err)
	}
	token, err := Read(resolved)
	if err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("consulate: create token watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(resolved)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("consulate: watch token directory: %w", err)
	}
	w := &Watcher{
		path:    resolved,
		logger:  svcfields.Tag(logger, "client.tokenfile"),
		watcher: watcher,
		token:   token,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Path returns the resolved file path.
func (w *Watcher) Path() string { return w.path }

// Token returns the most recently loaded token.
func (w *Watcher) Token() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.token
}

// Reload re-reads the file. On failure the previous token is kept.
func (w *Watcher) Reload() error {
	token, err := Read(w.path)
	if err != nil {
		return err
	}
	w.mu.Lock()
	changed := token != w.token
	w.token = token
	w.mu.Unlock()
	if changed {
		w.logger.Info("client.tokenfile.reloaded", "path", w.path)
	}
	return nil
}

// Close stops watching and waits for the watch loop to exit.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.stop)
		err = w.watcher.Close()
		<-w.done
	})
	return err
}

func (w *Watcher) run() {
	defer close(w.done)
	for {
		select {
		case <-w.stop:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if err := w.Reload(); err != nil {
				w.logger.Warn("client.tokenfile.reload_failed", "path", w.path, "error", err)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("client.tokenfile.watch_error", "path", w.path, "error", err)
		}
	}
}
