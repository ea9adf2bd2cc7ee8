// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Sentinel watches for creation or modification of a single file.
//
// The watch is placed on the file's parent directory, so the file need
// not exist when the watch starts and replacing it by rename is seen.
type Sentinel struct {
	path    string
	name    string
	watcher *fsnotify.Watcher
	logger  *slog.Logger
}

// NewSentinel installs the watch. The parent directory of path must
// exist. The caller must Close the Sentinel.
func NewSentinel(path string, logger *slog.Logger) (*Sentinel, error) {
	if logger == nil {
		logger = slog.Default()
	}
	absolute, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving sentinel path %s: %w", path, err)
	}
	directory := filepath.Dir(absolute)
	info, err := os.Stat(directory)
	if err != nil {
		return nil, fmt.Errorf("sentinel directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("sentinel directory %s is not a directory", directory)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	if err := watcher.Add(directory); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching %s: %w", directory, err)
	}
	return &Sentinel{
		path:    absolute,
		name:    filepath.Base(absolute),
		watcher: watcher,
		logger:  logger,
	}, nil
}

// Run calls onChange for every create, write, or chmod of the sentinel
// file until ctx is cancelled or the Sentinel is closed.
func (s *Sentinel) Run(ctx context.Context, onChange func()) error {
	s.logger.Info("watching sentinel file", "path", s.path)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-s.watcher.Events:
			if !ok {
				return nil
			}
			if !s.matches(event) {
				continue
			}
			s.logger.Info("sentinel file changed", "path", s.path, "op", event.Op.String())
			onChange()

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return nil
			}
			// Not fatal: the next touch is still seen.
			s.logger.Warn("sentinel watcher error", "error", err)
		}
	}
}

// Close releases the watch. Run returns after Close.
func (s *Sentinel) Close() error {
	return s.watcher.Close()
}

func (s *Sentinel) matches(event fsnotify.Event) bool {
	if filepath.Base(event.Name) != s.name {
		return false
	}
	return event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Chmod)
}

// WatchSentinel watches path in a goroutine tracked by group and fires
// trigger when the file is created or modified. Setup errors are
// returned synchronously. The watch ends, and its watcher is closed,
// when ctx is cancelled; group.Wait then returns only after that.
func WatchSentinel(ctx context.Context, group *sync.WaitGroup, path string, trigger *Trigger, logger *slog.Logger) error {
	sentinel, err := NewSentinel(path, logger)
	if err != nil {
		return err
	}
	group.Go(func() {
		defer sentinel.Close()
		sentinel.Run(ctx, func() {
			trigger.Fire("sentinel " + sentinel.path)
		})
	})
	return nil
}
