package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestMustLoadPath(t *testing.T) {
	path := writeConfig(t, `
env: prod
http:
  address: ":9000"
signaling:
  room_capacity: 2
  pending_join_timeout: 5s
webrtc:
  stun_servers: ["stun:example.org:3478"]
database:
  dsn: "postgres://signal@localhost/signal"
`)

	cfg := MustLoadPath(path)

	assert.Equal(t, "prod", cfg.Env)
	assert.Equal(t, ":9000", cfg.HTTP.Address)
	assert.Equal(t, 2, cfg.Signaling.RoomCapacity)
	assert.Equal(t, 5*time.Second, cfg.Signaling.PendingJoinTimeout)
	assert.Equal(t, []string{"stun:example.org:3478"}, cfg.WebRTC.STUNServers)
	assert.Equal(t, "postgres://signal@localhost/signal", cfg.Database.DSN)
}

func TestMustLoadPath_Defaults(t *testing.T) {
	cfg := MustLoadPath(writeConfig(t, "env: local\n"))

	assert.Equal(t, ":8080", cfg.HTTP.Address)
	assert.Equal(t, 10*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, 0, cfg.Signaling.RoomCapacity)
	assert.Equal(t, 30*time.Second, cfg.Signaling.PendingJoinTimeout)
	assert.Equal(t, 64, cfg.Signaling.QueueSize)
	assert.Equal(t, int64(65536), cfg.Signaling.MaxMessageBytes)
	assert.Equal(t, 60*time.Second, cfg.Signaling.PongWait)
	assert.Equal(t, []string{"stun:stun.l.google.com:19302"}, cfg.WebRTC.STUNServers)
	assert.Equal(t, 5*time.Second, cfg.WebRTC.CallTimeout)
	assert.Equal(t, 3*time.Second, cfg.WebRTC.GatherTimeout)
	assert.Empty(t, cfg.HTTP.AllowOrigins, "an empty list lets any origin through")
	assert.Empty(t, cfg.Database.DSN)
}

func TestMustLoadPath_AllowOrigins(t *testing.T) {
	cfg := MustLoadPath(writeConfig(t, "http:\n  allow_origins: [\"https://app.example.org\"]\n"))
	assert.Equal(t, []string{"https://app.example.org"}, cfg.HTTP.AllowOrigins)
}

func TestMustLoadPath_EnvOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDRESS", ":7000")
	t.Setenv("ROOM_CAPACITY", "3")
	t.Setenv("DATABASE_DSN", "sqlite://journal.db")

	cfg := MustLoadPath(writeConfig(t, "env: dev\n"))

	assert.Equal(t, ":7000", cfg.HTTP.Address)
	assert.Equal(t, 3, cfg.Signaling.RoomCapacity)
	assert.Equal(t, "sqlite://journal.db", cfg.Database.DSN)
}

func TestMustLoadPath_PortOverridesAddress(t *testing.T) {
	t.Setenv("PORT", "3000")

	cfg := MustLoadPath(writeConfig(t, "http:\n  address: \"127.0.0.1:8080\"\n"))
	assert.Equal(t, "127.0.0.1:3000", cfg.HTTP.Address)

	cfg = MustLoadPath(writeConfig(t, "env: prod\n"))
	assert.Equal(t, ":3000", cfg.HTTP.Address)
}

func TestMustLoadPath_MissingFile(t *testing.T) {
	assert.Panics(t, func() {
		MustLoadPath(filepath.Join(t.TempDir(), "absent.yaml"))
	})
}

func TestLocalConfigLoads(t *testing.T) {
	cfg := MustLoadPath(filepath.Join("..", "..", "config", "local.yaml"))
	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, 8, cfg.Signaling.RoomCapacity)
}
