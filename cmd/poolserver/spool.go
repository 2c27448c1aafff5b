package main

import (
	"log/slog"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/orizon-lang/arenapool/pool"
)

// spoolRegistry maps a spool file's path to the request pool that owns its
// cleanup handler, so the filesystem watcher can trigger an early close
// when something outside the request's own lifecycle (an operator, a
// disk-quota daemon) truncates or removes the file first.
type spoolRegistry struct {
	mu      sync.Mutex
	entries map[string]*spoolEntry
}

type spoolEntry struct {
	mu   *sync.Mutex // shared with the owning request handler
	pool *pool.Pool
	fd   int
}

func newSpoolRegistry() *spoolRegistry {
	return &spoolRegistry{entries: make(map[string]*spoolEntry)}
}

func (r *spoolRegistry) register(path string, p *pool.Pool, fd int, mu *sync.Mutex) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[path] = &spoolEntry{mu: mu, pool: p, fd: fd}
}

func (r *spoolRegistry) unregister(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, path)
}

// triggerExternalClose runs RunCleanupFile for the pool that owns path, if
// any request is still holding it open. It holds that request's own mutex
// while doing so, since the request goroutine and this watcher goroutine
// both touch the same (otherwise single-owner) pool.
func (r *spoolRegistry) triggerExternalClose(path string, log *slog.Logger) {
	r.mu.Lock()
	entry, ok := r.entries[path]
	r.mu.Unlock()

	if !ok {
		return
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.pool.RunCleanupFile(entry.fd) {
		if log != nil {
			log.Info("spool watcher: closed descriptor after external change", "path", path)
		}

		r.unregister(path)
	}
}

// watchSpoolDir watches dir for writes/removes to files already registered
// with reg, closing the matching pool's spool handler pre-emptively. It
// runs until stop is closed.
func watchSpoolDir(dir string, reg *spoolRegistry, log *slog.Logger, stop <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()

		for {
			select {
			case <-stop:
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}

				if event.Has(fsnotify.Write) || event.Has(fsnotify.Remove) {
					reg.triggerExternalClose(event.Name, log)
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}

				if log != nil {
					log.Error("spool watcher error", "error", err)
				}
			}
		}
	}()

	return nil
}
