package config

import (
	"context"
	"crypto/sha256"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vyrodovalexey/avafx/internal/observability"
)

// DefaultDebounceDelay coalesces the burst of events editors and secret
// mounts produce for a single logical change.
const DefaultDebounceDelay = 250 * time.Millisecond

// ReloadFunc receives each configuration that loaded and validated.
type ReloadFunc func(*FXGatewayConfig)

// ReloadErrorFunc receives reload and watch failures.
type ReloadErrorFunc func(error)

// Watcher reloads the configuration when the configuration file, the
// client keystore or the CA bundle changes on disk. Parent directories are
// watched, and any event in one of them restarts the debounce, so that
// Kubernetes secret volumes, which swap a "..data" symlink rather than
// touching the files themselves, are seen. A reload is only attempted when
// the content of some watched file actually differs from what was last
// loaded.
type Watcher struct {
	path     string
	fsw      *fsnotify.Watcher
	onReload ReloadFunc
	onError  ReloadErrorFunc
	logger   observability.Logger
	debounce time.Duration

	mu      sync.RWMutex
	current *FXGatewayConfig
	digests map[string][sha256.Size]byte
	dirs    map[string]bool
	running bool

	stop chan struct{}
	done chan struct{}
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounceDelay overrides DefaultDebounceDelay.
func WithDebounceDelay(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// WithLogger sets the watcher's logger.
func WithLogger(logger observability.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = logger }
}

// WithErrorCallback registers fn for failed reloads and watch errors.
func WithErrorCallback(fn ReloadErrorFunc) WatcherOption {
	return func(w *Watcher) { w.onError = fn }
}

// NewWatcher prepares a watcher for the configuration at path. Nothing is
// loaded until Start or ForceReload.
func NewWatcher(path string, onReload ReloadFunc, opts ...WatcherOption) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:     abs,
		fsw:      fsw,
		onReload: onReload,
		logger:   observability.NopLogger(),
		debounce: DefaultDebounceDelay,
		digests:  make(map[string][sha256.Size]byte),
		dirs:     make(map[string]bool),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start loads the configuration and begins watching. The initial load is
// not delivered to the reload callback. A failed Start releases the
// underlying file watcher.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	cfg, err := LoadAndValidate(w.path)
	if err == nil {
		err = w.track(cfg)
	}
	if err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		_ = w.fsw.Close()
		return err
	}

	w.logger.Info("watching configuration",
		observability.String("path", w.path),
		observability.Strings("files", w.WatchedFiles()),
	)
	go w.loop(ctx)
	return nil
}

// Stop ends watching. It is safe to call on a watcher that never started.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.stop)
	<-w.done
	return w.fsw.Close()
}

// GetLastConfig returns the configuration most recently loaded.
func (w *Watcher) GetLastConfig() *FXGatewayConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// WatchedFiles returns the sorted absolute paths being watched.
func (w *Watcher) WatchedFiles() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	files := make([]string, 0, len(w.digests))
	for f := range w.digests {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// ForceReload loads the configuration now and delivers it, regardless of
// whether any file changed.
func (w *Watcher) ForceReload() error {
	cfg, err := LoadAndValidate(w.path)
	if err != nil {
		return err
	}
	if err := w.track(cfg); err != nil {
		return err
	}
	if w.onReload != nil {
		w.onReload(cfg)
	}
	return nil
}

// track makes cfg current and records the digest of every file it
// depends on, adding watches for directories not seen before.
func (w *Watcher) track(cfg *FXGatewayConfig) error {
	paths := append([]string{w.path}, cfg.Spec.Upstream.WatchedFiles()...)

	digests := make(map[string][sha256.Size]byte, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		digests[abs] = fileDigest(abs)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	for f := range digests {
		dir := filepath.Dir(f)
		if w.dirs[dir] {
			continue
		}
		if err := w.fsw.Add(dir); err != nil {
			return err
		}
		w.dirs[dir] = true
	}

	w.current = cfg
	w.digests = digests
	return nil
}

// changed reports whether any watched file differs from its recorded digest.
func (w *Watcher) changed() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	for f, sum := range w.digests {
		if fileDigest(f) != sum {
			return true
		}
	}
	return false
}

// inWatchedDir reports whether name lives in one of the watched directories.
func (w *Watcher) inWatchedDir(name string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.dirs[filepath.Dir(filepath.Clean(name))]
}

const relevantOps = fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Remove

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&relevantOps == 0 || !w.inWatchedDir(ev.Name) {
				continue
			}
			w.logger.Debug("watched directory event",
				observability.String("path", ev.Name),
				observability.String("op", ev.Op.String()),
			)
			timer.Reset(w.debounce)

		case <-timer.C:
			if !w.changed() {
				w.logger.Debug("watched files unchanged, skipping reload")
				continue
			}
			w.reload()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.fail("config watcher error", err)
		}
	}
}

func (w *Watcher) reload() {
	w.logger.Info("reloading configuration", observability.String("path", w.path))
	if err := w.ForceReload(); err != nil {
		w.fail("configuration reload failed", err)
		return
	}
	w.logger.Info("configuration reloaded")
}

func (w *Watcher) fail(msg string, err error) {
	w.logger.Error(msg, observability.Error(err))
	if w.onError != nil {
		w.onError(err)
	}
}

// fileDigest hashes the file at path. An unreadable file hashes to the
// zero digest so that its reappearance counts as a change.
func fileDigest(path string) [sha256.Size]byte {
	data, err := os.ReadFile(path)
	if err != nil {
		return [sha256.Size]byte{}
	}
	return sha256.Sum256(data)
}
