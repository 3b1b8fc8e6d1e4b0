package sites

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher drops a project's cached tree when files under its templates
// directory change. Events are debounced per project.
type Watcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	repo        *Repository
	roots       map[string]string // templates dir -> project
	pending     map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
	logger      *zap.Logger
}

// NewWatcher returns a Watcher for repo. Call Add for each project, then Start.
func NewWatcher(repo *Repository, logger *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		watcher:     fw,
		repo:        repo,
		roots:       map[string]string{},
		pending:     map[string]time.Time{},
		debounceDur: 500 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
		logger:      logger,
	}, nil
}

// Add watches every directory of the project's templates tree. The project
// is only listed by Projects once the whole tree is watched.
func (w *Watcher) Add(project string) error {
	root := filepath.Join(w.repo.RepoPath(project), "templates")
	if err := w.addTree(root); err != nil {
		return err
	}
	w.mu.Lock()
	w.roots[root] = project
	w.mu.Unlock()
	return nil
}

// fsnotify does not recurse, so each directory is added on its own.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

// Projects returns the watched project names.
func (w *Watcher) Projects() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.roots))
	for _, p := range w.roots {
		out = append(out, p)
	}
	return out
}

// Start runs the event loop until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	go w.run(ctx)
}

// Stop ends the event loop and releases the watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	running := w.running
	w.running = false
	w.mu.Unlock()

	if running {
		close(w.stopCh)
		<-w.doneCh
	}
	if err := w.watcher.Close(); err != nil {
		w.logger.Warn("closing watcher", zap.Error(err))
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("template watcher error", zap.Error(err))
		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	project, ok := w.projectOf(event.Name)
	if !ok {
		return
	}

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.logger.Warn("watching new directory", zap.String("dir", event.Name), zap.Error(err))
			}
		}
	}

	w.mu.Lock()
	w.pending[project] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) projectOf(path string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for root, project := range w.roots {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return project, true
		}
	}
	return "", false
}

// flush invalidates projects whose last change is older than the debounce window.
func (w *Watcher) flush(ctx context.Context) {
	now := time.Now()
	var settled []string
	w.mu.Lock()
	for project, at := range w.pending {
		if now.Sub(at) >= w.debounceDur {
			settled = append(settled, project)
			delete(w.pending, project)
		}
	}
	w.mu.Unlock()

	for _, project := range settled {
		if err := w.repo.Invalidate(ctx, project); err != nil {
			w.logger.Warn("invalidating tree", zap.String("project", project), zap.Error(err))
			continue
		}
		w.logger.Info("templates changed, tree invalidated", zap.String("project", project))
	}
}
