package server

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"matrixci/internal/core"
)

// WorkflowStore holds the workflow definitions loaded from a directory and
// keeps them fresh while a watcher is running.
type WorkflowStore struct {
	dir    string
	logger *zap.Logger

	mu        sync.RWMutex
	workflows map[string]*core.Workflow // keyed by file name
}

// NewWorkflowStore loads every *.yaml / *.yml file under dir. Files that fail
// to parse are logged and skipped.
func NewWorkflowStore(dir string, logger *zap.Logger) (*WorkflowStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &WorkflowStore{
		dir:       dir,
		logger:    logger,
		workflows: make(map[string]*core.Workflow),
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "read workflows directory")
	}
	for _, entry := range entries {
		if entry.IsDir() || !isWorkflowFile(entry.Name()) {
			continue
		}
		s.load(filepath.Join(dir, entry.Name()))
	}
	return s, nil
}

func isWorkflowFile(name string) bool {
	ext := filepath.Ext(name)
	return ext == ".yaml" || ext == ".yml"
}

func (s *WorkflowStore) load(path string) {
	w, err := core.LoadWorkflow(path)
	if err != nil {
		// Keep the previous version, if any, rather than dropping a
		// workflow over a bad edit.
		s.logger.Warn("skip workflow", zap.String("file", filepath.Base(path)), zap.Error(err))
		return
	}
	s.mu.Lock()
	s.workflows[filepath.Base(path)] = w
	s.mu.Unlock()
	s.logger.Info("workflow loaded",
		zap.String("file", filepath.Base(path)),
		zap.String("workflow", w.Name))
}

func (s *WorkflowStore) remove(path string) {
	s.mu.Lock()
	delete(s.workflows, filepath.Base(path))
	s.mu.Unlock()
	s.logger.Info("workflow removed", zap.String("file", filepath.Base(path)))
}

// Workflows returns the current definitions, ordered by file name.
func (s *WorkflowStore) Workflows() []*core.Workflow {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.workflows))
	for name := range s.workflows {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]*core.Workflow, 0, len(names))
	for _, name := range names {
		out = append(out, s.workflows[name])
	}
	return out
}

// Watch reloads workflow files as they change, until ctx is done.
func (s *WorkflowStore) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create watcher")
	}
	if err := watcher.Add(s.dir); err != nil {
		watcher.Close()
		return errors.Wrap(err, "watch workflows directory")
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !isWorkflowFile(ev.Name) {
					continue
				}
				switch {
				case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
					s.remove(ev.Name)
				case ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write):
					s.load(ev.Name)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("workflow watcher", zap.Error(err))
			}
		}
	}()
	return nil
}
