package watcher

import (
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

var walkDirs = collectDirs

// addTree registers root and every directory below it. On failure the
// directories added by this call are unregistered again.
func (watcher *Watcher) addTree(root string) ([]string, error) {
	dirs, err := walkDirs(root)
	if err != nil {
		return nil, err
	}

	added := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		fresh, err := watcher.addWatch(dir)
		if err != nil {
			watcher.removeWatches(added)
			return nil, err
		}
		if fresh {
			added = append(added, dir)
		}
	}
	return added, nil
}

func collectDirs(root string) ([]string, error) {
	dirs := []string{}
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if entry.IsDir() {
			dirs = append(dirs, path)
		}
		return nil
	})
	return dirs, err
}

func (watcher *Watcher) addWatch(path string) (bool, error) {
	watcher.mutex.Lock()
	defer watcher.mutex.Unlock()

	if _, ok := watcher.watched[path]; ok {
		return false, nil
	}
	if len(watcher.watched) >= watcher.maxWatches {
		return false, ErrMaxWatchesExceeded
	}
	if err := watcher.monitor.Add(path); err != nil {
		return false, err
	}
	watcher.watched[path] = struct{}{}
	watcher.logger.Debug("watch added", map[string]string{
		"path":           path,
		"active_watches": strconv.Itoa(len(watcher.watched)),
	})
	return true, nil
}

func (watcher *Watcher) removeWatches(paths []string) {
	watcher.mutex.Lock()
	defer watcher.mutex.Unlock()

	for _, path := range paths {
		delete(watcher.watched, path)
		_ = watcher.monitor.Remove(path)
	}
}

// forget drops bookkeeping for a removed or renamed path and everything
// below it. The kernel watch is already gone at that point.
func (watcher *Watcher) forget(path string) {
	watcher.mutex.Lock()
	defer watcher.mutex.Unlock()

	for watched := range watcher.watched {
		if isWithinPath(path, watched) {
			delete(watcher.watched, watched)
		}
	}
}

// resync reconciles the registered watches with the tree on disk after a
// rename. A moved directory keeps its kernel watch under the old path, so
// stale paths are dropped from the monitor first and every directory that
// lost its watch is registered again under its current name.
func (watcher *Watcher) resync() {
	live := make(map[string]struct{})
	for _, path := range watcher.monitor.WatchList() {
		if info, err := os.Stat(path); err != nil || !info.IsDir() {
			_ = watcher.monitor.Remove(path)
			watcher.forget(path)
			continue
		}
		live[path] = struct{}{}
	}

	dirs, err := walkDirs(watcher.root)
	if err != nil {
		watcher.logger.Warn("watch resync failed", map[string]string{
			"root":  watcher.root,
			"error": err.Error(),
		})
		return
	}
	restored := 0
	for _, dir := range dirs {
		if _, ok := live[dir]; ok {
			continue
		}
		watcher.mutex.Lock()
		delete(watcher.watched, dir)
		watcher.mutex.Unlock()
		if _, err := watcher.addWatch(dir); err != nil {
			watcher.logger.Warn("watch add failed", map[string]string{
				"path":  dir,
				"error": err.Error(),
			})
			continue
		}
		restored++
	}
	if restored > 0 {
		watcher.logger.Debug("watches restored", map[string]string{
			"root":     watcher.root,
			"restored": strconv.Itoa(restored),
		})
	}
}

func isWithinPath(parent, child string) bool {
	rel, err := filepath.Rel(filepath.Clean(parent), filepath.Clean(child))
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator))
}
