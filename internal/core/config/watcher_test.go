package config

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, "[output]\nformat = \"json\"\n")

	var (
		mu     sync.Mutex
		loaded *Config
	)
	w := NewWatcher(path, func(cfg *Config) {
		mu.Lock()
		loaded = cfg
		mu.Unlock()
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("[output]\nformat = \"tsv\"\n"), 0o644))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return loaded != nil && loaded.Output.Format == FormatTSV
	}, 3*time.Second, 20*time.Millisecond)
}

func TestWatcher_InvalidReloadKeepsCallbackQuiet(t *testing.T) {
	path := writeConfig(t, "[output]\nformat = \"json\"\n")

	calls := make(chan *Config, 1)
	w := NewWatcher(path, func(cfg *Config) { calls <- cfg })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	require.NoError(t, os.WriteFile(path, []byte("[output]\nformat = \"xml\"\n"), 0o644))
	time.Sleep(3 * reloadDebounce)
	w.Stop()

	select {
	case cfg := <-calls:
		t.Fatalf("unexpected reload: %+v", cfg.Output)
	default:
	}
}

func TestWatcher_StopTwice(t *testing.T) {
	w := NewWatcher(writeConfig(t, ""), nil)
	require.NoError(t, w.Start(context.Background()))
	w.Stop()
	w.Stop()
}
