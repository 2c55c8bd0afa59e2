package resource

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const reloadDebounce = 200 * time.Millisecond

// Watcher reloads a Loader whenever one of its table files changes on disk.
type Watcher struct {
	loader  *Loader
	watcher *fsnotify.Watcher
	logger  *zap.Logger
	// Reloaded receives the result of every reload attempt (nil on success).
	Reloaded chan error
	closeCh  chan struct{}
	once     sync.Once
}

// NewWatcher starts watching rl.DataPath.
func NewWatcher(rl *Loader, logger *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(rl.DataPath); err != nil {
		_ = fw.Close()
		return nil, err
	}
	w := &Watcher{
		loader:   rl,
		watcher:  fw,
		logger:   logger,
		Reloaded: make(chan error, 4),
		closeCh:  make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Close stops the watcher. Safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.closeCh)
		err = w.watcher.Close()
	})
	return err
}

// run reloads once the table files have been quiet for reloadDebounce, so a
// burst of writes (an editor save, several tables in a row) loads its final
// state.
func (w *Watcher) run() {
	var (
		fire    <-chan time.Time
		changed string
	)
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 || !isTableFile(ev.Name) {
				continue
			}
			changed = ev.Name
			fire = time.After(reloadDebounce)
		case <-fire:
			fire = nil
			err := w.loader.Reload()
			if err != nil {
				w.logger.Warn("attribute table reload failed", zap.String("file", changed), zap.Error(err))
			} else {
				w.logger.Info("attribute tables reloaded", zap.String("file", changed))
			}
			select {
			case w.Reloaded <- err:
			default:
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("attribute watcher error", zap.Error(err))
		case <-w.closeCh:
			return
		}
	}
}

func isTableFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}
