package privacy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Allowlist errors.
var (
	ErrInvalidTOML  = errors.New("invalid allowlist TOML")
	ErrInvalidRegex = errors.New("invalid allowlist regex")
)

// LoadAllowlist reads regexes from a TOML file of the form
//
//	[allowlist]
//	regexes = ['''example\.com''', '''127\.0\.0\.1''']
//
// A missing file yields an empty list and no error.
func LoadAllowlist(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	var doc struct {
		Allowlist struct {
			Regexes []string `toml:"regexes"`
		} `toml:"allowlist"`
	}
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTOML, path, err)
	}
	for _, pattern := range doc.Allowlist.Regexes {
		if _, err := regexp.Compile(pattern); err != nil {
			return nil, fmt.Errorf("%w: '%s' in %s: %v", ErrInvalidRegex, pattern, path, err)
		}
	}
	return doc.Allowlist.Regexes, nil
}

// WatchAllowlist reloads the allowlist into f whenever path changes, until ctx
// is cancelled. The parent directory is watched so editors that replace the
// file by rename are handled. A reload that fails keeps the previous list.
func WatchAllowlist(ctx context.Context, path string, f *Filter, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating allowlist watcher: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		watcher.Close()
		return fmt.Errorf("resolving allowlist path: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
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
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
					!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
					continue
				}
				patterns, err := LoadAllowlist(abs)
				if err != nil {
					logger.Warn("allowlist reload failed, keeping previous", zap.String("path", abs), zap.Error(err))
					continue
				}
				if err := f.SetAllowList(patterns); err != nil {
					logger.Warn("allowlist rejected", zap.String("path", abs), zap.Error(err))
					continue
				}
				logger.Info("allowlist reloaded", zap.String("path", abs), zap.Int("patterns", len(patterns)))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("allowlist watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}
