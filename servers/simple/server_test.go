package simple

import (
	"io"
	"os"
	"testing"

	"github.com/AnishMulay/vtfs/internal/config"
	fss "github.com/AnishMulay/vtfs/internal/filesystem_service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.DataDir = t.TempDir()
	cfg.Log.Level = "error"
	return cfg
}

func TestOptions(t *testing.T) {
	cfg := testConfig(t)
	cfg.Filesystem.RootMode = "0750"
	cfg.Filesystem.MaxNegativeEntries = 7

	opts, err := Options(cfg)
	require.NoError(t, err)
	assert.Equal(t, uint32(0o750), opts.RootMode)
	assert.Equal(t, 7, opts.MaxNegativeEntries)

	cfg.Filesystem.RootMode = "banana"
	_, err = Options(cfg)
	assert.Error(t, err)
}

func TestNode_StopReportsSinkCloseError(t *testing.T) {
	cfg := testConfig(t)
	cfg.Log.Sink = config.SinkLocalDisc

	node, err := New(cfg, io.Discard)
	require.NoError(t, err)
	require.NoError(t, node.Start())
	assert.NotEmpty(t, node.Address())

	require.NoError(t, node.Stop())

	// A second stop finds the sink already closed and the filesystem unmounted.
	err = node.Stop()
	assert.ErrorIs(t, err, os.ErrClosed)
	assert.ErrorIs(t, err, fss.ErrNotMounted)
}

func TestNode_ConsoleSinkStop(t *testing.T) {
	node, err := New(testConfig(t), io.Discard)
	require.NoError(t, err)
	require.NoError(t, node.Start())
	assert.NoError(t, node.Stop())
}
