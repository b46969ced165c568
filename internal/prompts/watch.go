package prompts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads path whenever it is written or recreated until ctx is done.
// The parent directory is watched so editors that replace the file by rename
// are picked up too.
func (r *Registry) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		watcher.Close()
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
					r.reloadFile(abs)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				r.log.Error().Err(err).Msg("prompt watch error")
			}
		}
	}()
	return nil
}

func (r *Registry) reloadFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		r.log.Warn().Err(err).Str("path", path).Msg("prompt reload skipped")
		return
	}
	if err := r.reload(data); err != nil {
		r.log.Warn().Err(err).Str("path", path).Msg("prompt reload rejected, keeping previous prompts")
		return
	}
	r.log.Info().Str("path", path).Strs("names", r.Names()).Msg("prompts reloaded")
}
