package studyaids

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/fyrsmithlabs/mindmapd/internal/logging"
	"go.uber.org/zap"
)

// DefaultReferenceLimit is how many reference questions go into a prompt.
const DefaultReferenceLimit = 50

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

// References holds past exam questions loaded from a JSON array file. The
// file is optional: a missing or invalid file leaves the set empty.
type References struct {
	path   string
	limit  int
	logger *logging.Logger

	mu    sync.RWMutex
	items []json.RawMessage

	watcher  *fsnotify.Watcher
	stop     chan struct{}
	stopOnce sync.Once
	reloaded chan struct{}
}

// LoadReferences reads path and keeps the first limit entries. limit <= 0
// uses DefaultReferenceLimit.
func LoadReferences(ctx context.Context, path string, limit int, logger *logging.Logger) *References {
	if limit <= 0 {
		limit = DefaultReferenceLimit
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &References{
		path:     path,
		limit:    limit,
		logger:   logger,
		stop:     make(chan struct{}),
		reloaded: make(chan struct{}, 1),
	}
	if path == "" {
		return r
	}
	if err := r.reload(); err != nil {
		logger.Warn(ctx, "mcq reference data unavailable, generating without style guide",
			zap.String("path", path), zap.Error(err))
	}
	return r
}

// Sample returns the loaded reference questions.
func (r *References) Sample() []json.RawMessage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]json.RawMessage(nil), r.items...)
}

// Len returns the number of loaded questions.
func (r *References) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Reloaded signals after each successful reload triggered by the watcher.
func (r *References) Reloaded() <-chan struct{} {
	return r.reloaded
}

func (r *References) reload() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return err
	}
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("parsing %s: %w", filepath.Base(r.path), err)
	}
	if len(items) > r.limit {
		items = items[:r.limit]
	}

	r.mu.Lock()
	r.items = items
	r.mu.Unlock()
	return nil
}

// Watch reloads the file whenever it changes until ctx is done or Stop is
// called. The parent directory is watched so replace-by-rename edits are
// seen too.
func (r *References) Watch(ctx context.Context) error {
	if r.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	if err := watcher.Add(filepath.Dir(r.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watching %s: %w", filepath.Dir(r.path), err)
	}
	r.watcher = watcher

	go r.processEvents(ctx)
	return nil
}

// Stop stops watching. It is safe to call more than once.
func (r *References) Stop() {
	r.stopOnce.Do(func() {
		close(r.stop)
		if r.watcher != nil {
			_ = r.watcher.Close()
		}
	})
}

func (r *References) processEvents(ctx context.Context) {
	target := filepath.Clean(r.path)
	for {
		select {
		case <-r.stop:
			return
		case <-ctx.Done():
			return
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := r.reload(); err != nil {
				r.logger.Warn(ctx, "mcq reference reload failed, keeping previous data",
					zap.String("path", r.path), zap.Error(err))
				continue
			}
			r.logger.Info(ctx, "mcq reference data reloaded", zap.Int("questions", r.Len()))
			select {
			case r.reloaded <- struct{}{}:
			default:
			}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.logger.Warn(ctx, "mcq reference watcher error", zap.Error(err))
		}
	}
}
