package archiver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	metadataoxia "github.com/scour-io/scour/internal/metadata/oxia"
	"github.com/scour-io/scour/internal/scrub"
)

func TestArchiverOnOxia(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping oxia integration test in short mode")
	}

	server := metadataoxia.StartTestServer(t)
	store, err := metadataoxia.New(metadataoxia.Config{
		ServiceAddress: server.Addr(),
		Namespace:      "default",
		RequestTimeout: 10 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	a, err := New(ctx, store, "orders", 3, 1, nil, nil)
	require.NoError(t, err)

	detected := scrub.NewAnomalySet()
	detected.AddMissingSegment(seg(0, 99))
	require.NoError(t, a.ProcessAnomalies(ctx, time.Now(), scrub.StatusFull, detected))

	// A fresh archiver over the same store sees the persisted state.
	b, err := New(ctx, store, "orders", 3, 1, nil, nil)
	require.NoError(t, err)
	assert.False(t, b.LastScrubTime().IsZero())
	assert.Len(t, b.State().MissingSegments, 1)
}
