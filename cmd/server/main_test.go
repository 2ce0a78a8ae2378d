package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfig writes a memory-backed config and clears env overrides that would shadow it
func writeConfig(t *testing.T, level string) string {
	t.Helper()
	for _, key := range []string{"ALLFENCE_ADDR", "LOG_LEVEL", "STORAGE_TYPE", "JWT_SECRET", "EXPORT_TYPE", "EXPORT_DIR"} {
		t.Setenv(key, "")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `server:
  addr: "127.0.0.1:0"
  shutdown_timeout: 5s
log:
  level: ` + level + `
storage:
  type: memory
auth:
  jwt_secret: server-test-secret
  admin_username: admin
  admin_password: server-test-password
export:
  type: dir
  dir: ` + filepath.Join(dir, "exports") + `
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	return path
}

func TestRunServesUntilCancelled(t *testing.T) {
	path := writeConfig(t, "debug")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrCh := make(chan string, 1)
	var logs bytes.Buffer
	done := make(chan error, 1)
	go func() {
		done <- run(ctx, []string{"-config", path}, &logs, func(addr string) { addrCh <- addr })
	}()

	var addr string
	select {
	case addr = <-addrCh:
	case err := <-done:
		t.Fatalf("server exited before listening: %v", err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not start")
	}

	resp, err := http.Get("http://" + addr + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.Contains(t, logs.String(), `"msg":"server stopped"`)
}

func TestRunRejectsUnknownLogLevel(t *testing.T) {
	path := writeConfig(t, "chatty")

	err := run(context.Background(), []string{"-config", path}, &bytes.Buffer{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.level")
}

func TestRunRejectsUnknownFlag(t *testing.T) {
	err := run(context.Background(), []string{"-verbose"}, &bytes.Buffer{}, nil)
	require.Error(t, err)
}
