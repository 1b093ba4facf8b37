package application

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/msgrelay/internal/json"
	"github.com/lk2023060901/msgrelay/internal/network/connector"
	"github.com/lk2023060901/msgrelay/internal/relay"
	"github.com/lk2023060901/msgrelay/internal/server"
)

func writeConfig(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("MSGRELAY_CONFIG_FILE_PATH", "")
	a := New(WithConfigPath(writeConfig(t, "server:\n  basePort: 6000\n")))
	require.NoError(t, a.loadConfig())

	conf := a.Settings()
	assert.Equal(t, "127.0.0.1:50051", conf.Server.Address)
	assert.Equal(t, 6000, conf.Server.BasePort)
	assert.Equal(t, uint32(64), conf.Server.MaxArgs)
	assert.Equal(t, "memory", conf.Snapshot.Backend)
	assert.Equal(t, 5*time.Second, conf.Snapshot.Etcd.DialTimeout)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("MSGRELAY_SERVER_ADDRESS", "0.0.0.0:7000")
	a := New(WithConfigPath(writeConfig(t, "snapshot:\n  backend: file\n")))
	require.NoError(t, a.loadConfig())
	assert.Equal(t, "0.0.0.0:7000", a.Settings().Server.Address)
	assert.Equal(t, "file", a.Settings().Snapshot.Backend)
}

func TestLoadConfigErrors(t *testing.T) {
	a := New(WithConfigPath(filepath.Join(t.TempDir(), "missing.yaml")))
	assert.Error(t, a.loadConfig())

	a = New(WithConfigPath(writeConfig(t, "server:\n  basePort: 70000\n")))
	assert.Error(t, a.loadConfig())

	a = New(WithConfigPath(writeConfig(t, "snapshot:\n  encryptionKey: abc\n")))
	assert.Error(t, a.loadConfig())
}

func TestRunRestoresSnapshot(t *testing.T) {
	t.Setenv("MSGRELAY_LOG_ENABLE", "false")
	dir := t.TempDir()
	path := writeConfig(t, `
server:
  address: 127.0.0.1:0
  basePort: 40000
snapshot:
  backend: file
  dir: `+dir+`
  compress: true
`)

	run := func(fn func(c *connector.Client)) {
		a := New(WithConfigPath(path))
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- a.Run(ctx) }()

		select {
		case <-a.Ready():
		case err := <-done:
			t.Fatalf("run exited early: %v", err)
		case <-time.After(10 * time.Second):
			t.Fatal("application not ready")
		}

		c, err := connector.Dial(ctx, a.Addr(), connector.Config{MaxElapsed: time.Second})
		require.NoError(t, err)
		fn(c)
		require.NoError(t, c.Close())

		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Fatal("application did not stop")
		}
	}

	run(func(c *connector.Client) {
		info, err := c.CreateAccount("alice", "10.1.1.1")
		require.NoError(t, err)
		assert.Equal(t, 40000, info.Port)
		require.NoError(t, c.SendMessage("alice", "bob", "see you later"))
	})

	// 重启后账号与离线消息仍在，会话不保存。
	run(func(c *connector.Client) {
		accounts, err := c.GetAccounts("")
		require.NoError(t, err)
		assert.Equal(t, []string{"alice"}, accounts)

		_, err = c.Login("alice", "10.1.1.1")
		require.NoError(t, err)

		msgs, err := c.GetUndeliveredMessages("bob")
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, "see you later", msgs[0].Body)
	})
}

func TestMetricsRouter(t *testing.T) {
	core := relay.NewCore(1000)
	_, err := core.CreateAccount(context.Background(), "alice", "h")
	require.NoError(t, err)
	srv, err := server.New(server.Config{Address: "127.0.0.1:0", BasePort: 1000}, core)
	require.NoError(t, err)
	defer srv.Close()

	ts := httptest.NewServer(newMetricsRouter(core, srv))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status healthStatus
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, &status))
	assert.Equal(t, healthStatus{Status: "ok", Accounts: 1, Sessions: 1}, status)

	metricsResp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer metricsResp.Body.Close()
	assert.Equal(t, http.StatusOK, metricsResp.StatusCode)
}
