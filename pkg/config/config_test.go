package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ROOM_SCOPE", RoomScopePairProduct)
	t.Setenv("DEV_SEED_FILE", "seed.json")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, RoomScopePairProduct, cfg.RoomScope)
	assert.Equal(t, 2, cfg.RoomCreateAttempts)
	assert.Equal(t, 5*time.Minute, cfg.DBConnMaxLifetime)
}

func TestLoadReadsOverrides(t *testing.T) {
	t.Setenv("ROOM_SCOPE", RoomScopePair)
	t.Setenv("NOTIFY_WORKERS", "8")
	t.Setenv("PUSH_ENABLED", "false")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("SHUTDOWN_TIMEOUT", "3s")
	t.Setenv("DATABASE_URL", "postgres://localhost/oysloe")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, RoomScopePair, cfg.RoomScope)
	assert.Equal(t, 8, cfg.NotifyWorkers)
	assert.False(t, cfg.PushEnabled)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
}

func TestLoadRejectsUnknownRoomScope(t *testing.T) {
	t.Setenv("ROOM_SCOPE", "product")

	_, err := Load()
	assert.ErrorContains(t, err, "ROOM_SCOPE")
}

func TestSMSEnabledNeedsKeyAndSender(t *testing.T) {
	cfg := &Config{ArkeselAPIKey: "key"}
	assert.False(t, cfg.SMSEnabled())

	cfg.SMSSenderID = "Oysloe"
	assert.True(t, cfg.SMSEnabled())
}

func TestDirectoryBackend(t *testing.T) {
	t.Setenv("DIRECTORY_BACKEND", "ldap")
	_, err := Load()
	assert.ErrorContains(t, err, "DIRECTORY_BACKEND")

	cfg := &Config{AuthProvider: AuthProviderJWT, DirectoryBackend: DirectoryStore}
	assert.False(t, cfg.NeedsFirebase())
	cfg.DirectoryBackend = DirectoryFirestore
	assert.True(t, cfg.NeedsFirebase())
}

func TestEmptyMemoryDirectoryFailsStartup(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DIRECTORY_BACKEND", DirectoryStore)
	t.Setenv("DEV_SEED_FILE", "")

	_, err := Load()
	assert.ErrorContains(t, err, "DEV_SEED_FILE")

	t.Setenv("DEV_SEED_FILE", "seed.json")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.MemoryDirectory())
	assert.Equal(t, "seed.json", cfg.SeedFile)

	cfg = &Config{DatabaseURL: "", DirectoryBackend: DirectoryFirestore}
	assert.False(t, cfg.MemoryDirectory())
	cfg = &Config{DatabaseURL: "postgres://localhost/oysloe", DirectoryBackend: DirectoryStore}
	assert.False(t, cfg.MemoryDirectory())
}
