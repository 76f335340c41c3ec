package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestLoadFrom_MissingFile(t *testing.T) {
	cfg, err := LoadFrom(t.TempDir())
	require.NoError(t, err)

	assert.Empty(t, cfg.Connections)
	assert.Equal(t, "default", cfg.Preferences.Theme)
	assert.Equal(t, "info", cfg.Preferences.LogLevel)
	assert.Nil(t, DefaultConnection(cfg))
}

func TestLoadFrom_File(t *testing.T) {
	dir := t.TempDir()
	yaml := `connections:
  - name: local
    host: localhost
    username: alice
  - name: prod
    host: db.internal
    port: 6432
    username: app
    sslmode: require
preferences:
  default_connection: prod
  log_level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)

	want := []Connection{
		{Name: "local", Host: "localhost", Username: "alice"},
		{Name: "prod", Host: "db.internal", Port: 6432, Username: "app", SSLMode: "require"},
	}
	if diff := cmp.Diff(want, cfg.Connections); diff != "" {
		t.Errorf("connections mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "debug", cfg.Preferences.LogLevel)
	assert.Equal(t, "default", cfg.Preferences.Theme)
	assert.Equal(t, "prod", DefaultConnection(cfg).Name)
}

func TestLoadFrom_Malformed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("connections: [\n"), 0o600))

	_, err := LoadFrom(dir)
	assert.Error(t, err)
}

func TestSaveTo_RoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	cfg := &Config{
		Connections: []Connection{{Name: "local", Host: "localhost", Username: "alice", Port: 5432}},
		Preferences: Preferences{Theme: "default", DefaultConnection: "local", LogLevel: "warn"},
	}
	require.NoError(t, SaveTo(dir, cfg))

	got, err := LoadFrom(dir)
	require.NoError(t, err)
	if diff := cmp.Diff(cfg, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	data, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "password")
}

func TestDefaultConnection_FallsBackToFirst(t *testing.T) {
	cfg := &Config{
		Connections: []Connection{{Name: "a"}, {Name: "b"}},
		Preferences: Preferences{DefaultConnection: "missing"},
	}
	assert.Equal(t, "a", DefaultConnection(cfg).Name)
}

func TestSaveConnection(t *testing.T) {
	keyring.MockInit()
	dir := t.TempDir()
	kr := Keyring{}

	conn := Connection{Name: "prod", Host: "db", Username: "app"}
	require.NoError(t, SaveConnection(dir, conn, "s3cret", kr))

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)
	require.Len(t, cfg.Connections, 1)
	assert.Equal(t, "prod", cfg.Preferences.DefaultConnection)

	desc, err := DefaultConnection(cfg).Descriptor(kr)
	require.NoError(t, err)
	assert.Equal(t, "host=db user=app password=s3cret", desc.String())

	data, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "s3cret")
}

func TestKeyring(t *testing.T) {
	keyring.MockInit()
	kr := Keyring{}

	pw, err := kr.Password("nobody")
	require.NoError(t, err)
	assert.Empty(t, pw)

	require.NoError(t, kr.SetPassword("local", "pw"))
	pw, err = kr.Password("local")
	require.NoError(t, err)
	assert.Equal(t, "pw", pw)

	require.NoError(t, kr.DeletePassword("local"))
	require.NoError(t, kr.DeletePassword("local"))
	pw, err = kr.Password("local")
	require.NoError(t, err)
	assert.Empty(t, pw)
}
