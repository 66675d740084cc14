package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherDeliversReloadOnWrite(t *testing.T) {
	path := writeTempConfig(t, "source:\n  mode: capture\n  device: eth0\n")

	w := NewWatcher(path, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to register before mutating the file.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("source:\n  mode: replay\n  pcap_path: /tmp/x.pcap\n"), 0o644))

	select {
	case cfg := <-w.Changes():
		assert.Equal(t, "replay", cfg.Source.Mode)
	case <-time.After(1500 * time.Millisecond):
		t.Fatal("timed out waiting for reload")
	}

	cancel()
	<-done
}

func TestWatcherSkipsMalformedReloadWithoutClosingChannel(t *testing.T) {
	path := writeTempConfig(t, "source:\n  mode: capture\n  device: eth0\n")

	w := NewWatcher(path, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go w.Run(ctx)
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("source: [not a mapping"), 0o644))
	time.Sleep(200 * time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("source:\n  mode: replay\n  pcap_path: /tmp/y.pcap\n"), 0o644))

	select {
	case cfg := <-w.Changes():
		assert.Equal(t, "replay", cfg.Source.Mode)
	case <-time.After(1500 * time.Millisecond):
		t.Fatal("timed out waiting for reload after malformed write")
	}
	cancel()
}
