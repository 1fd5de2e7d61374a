package config

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"shopkeeper/internal/models"
)

// WatchSkillModels watches the skill models file and calls onReload with the
// freshly parsed table whenever it changes. Parse failures keep the current
// table. The watch runs until ctx is cancelled.
//
// The parent directory is watched rather than the file itself: editors and
// config management tools typically replace the file, which would invalidate
// a direct file watch.
func WatchSkillModels(ctx context.Context, filePath string, onReload func(*models.SkillModelFile)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	dir := filepath.Dir(filePath)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	target := filepath.Clean(filePath)

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
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}

				file, err := LoadSkillModels(filePath)
				if err != nil {
					log.Printf("⚠️ [CONFIG] Skill models reload failed, keeping current table: %v", err)
					continue
				}
				log.Printf("🔄 [CONFIG] Skill models file changed, reloading")
				onReload(file)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("⚠️ [CONFIG] File watcher error: %v", err)
			}
		}
	}()

	log.Printf("👀 [CONFIG] Watching %s for changes", filePath)
	return nil
}
