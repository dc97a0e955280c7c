package main

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/AnishMulay/vtfs/internal/config"
	fss "github.com/AnishMulay/vtfs/internal/filesystem_service"
	"github.com/AnishMulay/vtfs/servers/simple"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startNode(t *testing.T) string {
	t.Helper()
	cfg := config.Default()
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.Log.Level = "error"

	node, err := simple.New(cfg, io.Discard)
	require.NoError(t, err)
	require.NoError(t, node.Start())
	t.Cleanup(func() { _ = node.Stop() })
	return node.Address()
}

func runCtl(t *testing.T, addr string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := New()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--server", addr}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVtfsctl_Workflow(t *testing.T) {
	addr := startNode(t)

	out, err := runCtl(t, addr, "mkdir", "/docs")
	require.NoError(t, err)
	assert.Contains(t, out, "/docs: inode 2")

	_, err = runCtl(t, addr, "touch", "/docs/a")
	require.NoError(t, err)

	out, err = runCtl(t, addr, "cat", "/docs/a")
	require.NoError(t, err)
	assert.Equal(t, config.Default().Filesystem.DefaultContent, out)

	out, err = runCtl(t, addr, "write", "/docs/a", "HELLO")
	require.NoError(t, err)
	assert.Equal(t, "wrote 5 B\n", out)

	_, err = runCtl(t, addr, "ln", "/docs/a", "/docs/b")
	require.NoError(t, err)
	_, err = runCtl(t, addr, "ln", "-s", "/docs/a", "/latest")
	require.NoError(t, err)

	out, err = runCtl(t, addr, "readlink", "/latest")
	require.NoError(t, err)
	assert.Equal(t, "/docs/a\n", out)

	out, err = runCtl(t, addr, "ls", "/docs")
	require.NoError(t, err)
	assert.Equal(t, "a\nb\n", out)

	out, err = runCtl(t, addr, "stat", "/docs/b")
	require.NoError(t, err)
	assert.Contains(t, out, "Links:")
	assert.Contains(t, out, "-rw-r--r--")

	_, err = runCtl(t, addr, "rmdir", "/docs")
	assert.ErrorIs(t, err, fss.ErrNotEmpty)

	_, err = runCtl(t, addr, "rm", "/docs/a")
	require.NoError(t, err)

	out, err = runCtl(t, addr, "journal")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "create a")
	assert.Contains(t, lines[2], "unlink a")

	out, err = runCtl(t, addr, "fsstat")
	require.NoError(t, err)
	assert.Contains(t, out, "unlimited")
	assert.Contains(t, out, "Journal:")
}

func TestVtfsctl_Access(t *testing.T) {
	addr := startNode(t)

	_, err := runCtl(t, addr, "--uid", "100", "--gid", "100", "touch", "/secret", "--mode", "0640")
	require.NoError(t, err)

	out, err := runCtl(t, addr, "--uid", "200", "--gid", "100", "access", "/secret", "r")
	require.NoError(t, err)
	assert.Contains(t, out, "r-- granted")

	_, err = runCtl(t, addr, "--uid", "200", "--gid", "100", "access", "/secret", "w")
	assert.ErrorIs(t, err, fss.ErrAccessDenied)

	_, err = runCtl(t, addr, "access", "/secret", "q")
	assert.ErrorContains(t, err, "invalid access")
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    uint32
		wantErr bool
	}{
		{in: "0644", want: 0o644},
		{in: "755", want: 0o755},
		{in: "0o700", want: 0o700},
		{in: "999", wantErr: true},
		{in: "1777", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
