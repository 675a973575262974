package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WaitForCredentials blocks until both the certificate and key files exist,
// or the context is cancelled. The daemon writes its client credentials
// shortly after first startup, so the files may not be there yet when the
// application launches. The parent directories must already exist.
func WaitForCredentials(ctx context.Context, certPath, keyPath string) error {
	if bothExist(certPath, keyPath) {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dirs := map[string]struct{}{
		filepath.Dir(certPath): {},
		filepath.Dir(keyPath):  {},
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	// The files may have appeared between the first check and the watch
	// registration.
	if bothExist(certPath, keyPath) {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("credential watcher closed")
			}
			if bothExist(certPath, keyPath) {
				return nil
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("credential watcher closed")
			}
			return err
		}
	}
}

func bothExist(certPath, keyPath string) bool {
	if _, err := os.Stat(certPath); err != nil {
		return false
	}
	if _, err := os.Stat(keyPath); err != nil {
		return false
	}
	return true
}
