// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[stub]\nreply = \"first\"\n"), 0o644))

	var (
		mu      sync.Mutex
		replies []string
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, 10*time.Millisecond, func(cfg *Config) {
			mu.Lock()
			defer mu.Unlock()
			replies = append(replies, cfg.Stub.Reply)
		})
	}()

	last := func() string {
		mu.Lock()
		defer mu.Unlock()
		if len(replies) == 0 {
			return ""
		}
		return replies[len(replies)-1]
	}

	// Keep rewriting until the watcher, which starts asynchronously, sees it.
	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("[stub]\nreply = \"second\"\n"), 0o644)
		return last() == "second"
	}, 5*time.Second, 50*time.Millisecond)

	// An invalid file is skipped.
	require.NoError(t, os.WriteFile(path, []byte("[stub]\nbogus = 1\n"), 0o644))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, "second", last())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestWatchMissingDirectory(t *testing.T) {
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "nope", "config.toml"), 0, func(*Config) {})
	assert.Error(t, err)
}
