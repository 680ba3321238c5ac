package config

import (
	"errors"
	"path/filepath"
	"slices"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/ffbridge/engine/core"
)

// Watcher reloads a configuration file whenever it is written and hands
// the new value to the registered callbacks.
type Watcher struct {
	path      string
	mutex     sync.RWMutex
	callbacks []func(*Config)

	done     chan struct{}
	fsnotify *fsnotify.Watcher
	isClosed bool
	wg       sync.WaitGroup
}

func NewWatcher(path string) (*Watcher, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		fsWatch.Close()
		return nil, err
	}
	// Editors replace files on save, so the directory is watched instead of the file.
	if err := fsWatch.Add(filepath.Dir(abs)); err != nil {
		fsWatch.Close()
		return nil, err
	}
	w := &Watcher{
		path:     abs,
		fsnotify: fsWatch,
		done:     make(chan struct{}),
	}
	w.wg.Add(1)
	go w.start()
	return w, nil
}

func (w *Watcher) OnReload(fn func(*Config)) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	w.callbacks = append(w.callbacks, fn)
}

func (w *Watcher) Close() error {
	w.mutex.Lock()
	if w.isClosed {
		w.mutex.Unlock()
		return errors.New("config watcher already closed")
	}
	w.isClosed = true
	w.mutex.Unlock()
	close(w.done)
	w.wg.Wait()
	return nil
}

func (w *Watcher) start() {
	defer w.wg.Done()
	for {
		select {
		case e := <-w.fsnotify.Events:
			if filepath.Clean(e.Name) != w.path {
				continue
			}
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.reload()
			}

		case err := <-w.fsnotify.Errors:
			if err != nil {
				core.LogError("config watcher: %s", err)
			}

		case <-w.done:
			w.fsnotify.Close()
			return
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		core.LogWarn("config reload of %s rejected: %s", w.path, err)
		return
	}
	w.mutex.RLock()
	cbs := slices.Clone(w.callbacks)
	w.mutex.RUnlock()
	core.LogInfo("configuration %s reloaded", w.path)
	for _, fn := range cbs {
		fn(cfg)
	}
}
