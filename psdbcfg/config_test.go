package psdbcfg

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, uint32(4000000), cfg.SWDFreqHz)
	assert.Equal(t, 1*time.Second, cfg.Timeout)
	assert.Equal(t, 10, cfg.Retries)
	assert.Equal(t, 100*time.Millisecond, cfg.RetryDelay)
}

func TestLoadFillsFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "psdb.ini")
	contents := "[probe]\nserial = 0123ABCD\nswd_freq_hz = 1000000\nretries = 3\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0123ABCD", cfg.SerialNumber)
	assert.Equal(t, uint32(1000000), cfg.SWDFreqHz)
	assert.Equal(t, 3, cfg.Retries)
	// Keys absent from the file keep the hard-coded default.
	assert.Equal(t, 1*time.Second, cfg.Timeout)
	assert.Equal(t, 100*time.Millisecond, cfg.RetryDelay)
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load("/nonexistent/psdb.ini")
	assert.Error(t, err)
}
