package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidatesExceptBucket(t *testing.T) {
	cfg := Default()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket")

	cfg.ObjectStore.Bucket = "tiered-logs"
	require.NoError(t, cfg.Validate())
}

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scour.yaml")
	data := `
objectStore:
  bucket: tiered-logs
  endpoint: http://localhost:9000
  usePathStyle: true
scrub:
  intervalMs: 60000
  jitterMs: 5000
  deepScrub: true
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "tiered-logs", cfg.ObjectStore.Bucket)
	assert.True(t, cfg.ObjectStore.UsePathStyle)
	assert.Equal(t, int64(60000), cfg.Scrub.IntervalMs)
	assert.True(t, cfg.Scrub.DeepScrub)
	// Untouched keys keep defaults.
	assert.Equal(t, "localhost:6648", cfg.Metadata.OxiaEndpoint)
	assert.Equal(t, time.Minute.Milliseconds(), cfg.Scrub.RunTimeoutMs)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SCOUR_S3_BUCKET", "from-env")
	t.Setenv("SCOUR_SCRUB_INTERVAL_MS", "1234")
	t.Setenv("SCOUR_SCRUB_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.ObjectStore.Bucket)
	assert.Equal(t, int64(1234), cfg.Scrub.IntervalMs)
	assert.False(t, cfg.Scrub.Enabled)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.ObjectStore.Bucket = "b"

	cfg.Scrub.IntervalMs = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.ObjectStore.Bucket = "b"
	cfg.Scrub.JitterMs = -1
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.ObjectStore.Bucket = "b"
	cfg.Report.Enabled = true
	assert.Error(t, cfg.Validate())
}

func TestBindingGetSetWatch(t *testing.T) {
	b := NewBinding(time.Minute)
	assert.Equal(t, time.Minute, b.Get())

	var seen []time.Duration
	b.Watch(func(d time.Duration) { seen = append(seen, d) })

	b.Set(2 * time.Minute)
	b.Set(3 * time.Minute)

	assert.Equal(t, 3*time.Minute, b.Get())
	assert.Equal(t, []time.Duration{2 * time.Minute, 3 * time.Minute}, seen)
}
