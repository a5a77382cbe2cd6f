package logging

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZeroLoggerDiscards(t *testing.T) {
	var l Logger
	lg := l.Load()
	require.NotNil(t, lg)
	assert.False(t, lg.Enabled(context.Background(), slog.LevelError))
	assert.Same(t, Discard(), lg)
	// Derived loggers stay silent.
	assert.False(t, lg.With("k", 1).WithGroup("g").Enabled(context.Background(), slog.LevelError))
}

func TestStoreAndRestore(t *testing.T) {
	var l Logger
	var buf bytes.Buffer
	l.Store(slog.New(slog.NewTextHandler(&buf, nil)))
	l.Load().Info("hello", "n", 3)
	assert.Contains(t, buf.String(), "msg=hello n=3")

	l.Store(nil)
	assert.Same(t, Discard(), l.Load())
}

func TestConcurrentStore(t *testing.T) {
	var l Logger
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for k := 0; k < 100; k++ {
				l.Store(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
				require.NotNil(t, l.Load())
			}
		}()
	}
	wg.Wait()
}
