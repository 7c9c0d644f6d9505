package taxonomy

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Watcher reloads the taxonomy document when its file changes on disk
// and hands each successfully parsed version to a callback. A document
// that fails validation is logged and skipped; the previous taxonomy
// stays in effect.
type Watcher struct {
	path     string
	onChange func(*Taxonomy)
	fw       *fsnotify.Watcher
}

// NewWatcher creates a watcher for the given taxonomy file. onChange is
// called from the watch goroutine for every valid reload.
func NewWatcher(path string, onChange func(*Taxonomy)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, eris.Wrap(err, "taxonomy: create file watcher")
	}

	// Watch the directory, not the file: editors and atomic writers
	// replace the file, which drops a watch registered on the file itself.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, eris.Wrapf(err, "taxonomy: watch %s", filepath.Dir(path))
	}

	return &Watcher{path: path, onChange: onChange, fw: fw}, nil
}

// Run blocks, reloading on file changes, until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "taxonomy.watcher"), zap.String("path", w.path))
	log.Info("watching taxonomy file")

	target := filepath.Clean(w.path)
	for {
		select {
		case <-ctx.Done():
			log.Info("taxonomy watcher stopped")
			return
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if filepath.Clean(event.Name) != target {
				continue
			}

			// Give the writer a moment to finish the file.
			time.Sleep(100 * time.Millisecond)

			tax, err := Load(w.path)
			if err != nil {
				log.Error("taxonomy reload failed, keeping previous version", zap.Error(err))
				continue
			}
			log.Info("taxonomy reloaded",
				zap.Int("categories", len(tax.Categories)),
				zap.String("version", tax.Version),
			)
			w.onChange(tax)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			log.Error("taxonomy watcher error", zap.Error(err))
		}
	}
}

// Close releases the underlying file watcher.
func (w *Watcher) Close() error {
	return w.fw.Close()
}
