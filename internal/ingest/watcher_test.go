package ingest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestWatch_DebouncesRelevantChanges(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, _, err := Watch(ctx, WatchConfig{Root: root, Options: DefaultOptions(), Debounce: 100 * time.Millisecond}, nil)
	require.NoError(t, err)

	writeFile(t, root, "ignored.txt", "x")
	writeFile(t, root, "~$lock.docx", "x")
	a := writeFile(t, root, "a.docx", "1")
	writeFile(t, root, "a.docx", "2")
	b := writeFile(t, root, "b.docx", "1")

	select {
	case batch := <-events:
		assert.Equal(t, []string{a, b}, batch)
	case <-time.After(5 * time.Second):
		t.Fatal("no batch received")
	}

	cancel()
	for range events {
	}
}

func TestWatch_MissingRoot(t *testing.T) {
	_, _, err := Watch(context.Background(), WatchConfig{Root: filepath.Join(t.TempDir(), "nope")}, nil)
	assert.Error(t, err)

	_, _, err = Watch(context.Background(), WatchConfig{}, nil)
	assert.Error(t, err)
}
