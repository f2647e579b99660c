// ABOUTME: Tests for config loading, layering and persistence
// ABOUTME: Isolates XDG data home, HOME and environment per test
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/adrg/xdg"
	"github.com/harperreed/kontakty/airtable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	origHome := xdg.DataHome
	xdg.DataHome = filepath.Join(tmp, "data")
	t.Cleanup(func() { xdg.DataHome = origHome })

	t.Setenv("HOME", tmp)
	for _, key := range []string{
		"AIRTABLE_TOKEN", "AIRTABLE_API_KEY", "AIRTABLE_BASE_ID", "AIRTABLE_TABLE",
		"KONTAKTY_API_URL", "KONTAKTY_RULES", "KONTAKTY_FORMATS", "KONTAKTY_SNAPSHOT_DB",
	} {
		t.Setenv(key, "")
	}
	return tmp
}

func TestLoadDefaultsWhenMissing(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, cfg.Token)
	assert.Equal(t, airtable.DefaultBaseURL, cfg.APIURL)
	assert.Equal(t, "Kontakty", cfg.Schema.Contacts.Table)
	assert.Equal(t, "E-mail", cfg.Schema.Contacts.Email)
	assert.Equal(t, filepath.Join(Dir(), "snapshots.db"), cfg.SnapshotDB)

	var cfgErr *airtable.ConfigurationError
	require.ErrorAs(t, cfg.Validate(), &cfgErr)
	assert.Contains(t, cfgErr.Error(), "token")
	assert.Contains(t, cfgErr.Error(), "base id")
}

func TestSaveAndLoad(t *testing.T) {
	isolate(t)

	cfg := DefaultConfig()
	cfg.Token = "patABC123456"
	cfg.BaseID = "appXYZ"
	cfg.Schema.Companies.Table = "Firmy"
	require.NoError(t, cfg.Save(""))

	info, err := os.Stat(Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "patABC123456", loaded.Token)
	assert.Equal(t, Path(), loaded.TokenSource)
	assert.Equal(t, "appXYZ", loaded.BaseID)
	assert.Equal(t, "Firmy", loaded.Schema.Companies.Table)
	assert.Equal(t, "Firma", loaded.Schema.Companies.Name, "unset names keep defaults")
	assert.NoError(t, loaded.Validate())
	assert.Equal(t, "********3456", loaded.MaskedToken())
}

func TestEnvOverrides(t *testing.T) {
	isolate(t)
	cfg := DefaultConfig()
	cfg.Token = "from-file"
	cfg.BaseID = "appFile"
	require.NoError(t, cfg.Save(""))

	t.Setenv("AIRTABLE_API_KEY", "from-env")
	t.Setenv("AIRTABLE_BASE_ID", "appEnv")
	t.Setenv("AIRTABLE_TABLE", "tblAAAAAAAAAAAAAA")
	t.Setenv("KONTAKTY_API_URL", "http://localhost:9999/v0")

	loaded, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-env", loaded.Token)
	assert.Equal(t, "$AIRTABLE_API_KEY", loaded.TokenSource)
	assert.Equal(t, "appEnv", loaded.BaseID)
	assert.Equal(t, "tblAAAAAAAAAAAAAA", loaded.Schema.Contacts.Table)
	assert.Equal(t, "http://localhost:9999/v0", loaded.APIURL)

	fileOnly, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, "from-file", fileOnly.Token)
	assert.Equal(t, Path(), fileOnly.TokenSource)
	assert.Equal(t, "appFile", fileOnly.BaseID)
	assert.Equal(t, "Kontakty", fileOnly.Schema.Contacts.Table)
	assert.Equal(t, airtable.DefaultBaseURL, fileOnly.APIURL)
}

func TestTokenFromMCPFallback(t *testing.T) {
	home := isolate(t)
	mcp := filepath.Join(home, ".cursor", "mcp.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(mcp), 0700))
	require.NoError(t, os.WriteFile(mcp,
		[]byte(`{"mcpServers":{"airtable":{"env":{"AIRTABLE_API_KEY":"pat-mcp"}}}}`), 0600))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "pat-mcp", cfg.Token)
	assert.Equal(t, mcp, cfg.TokenSource)

	token, err := TokenFromMCP(filepath.Join(home, "missing.json"))
	assert.Error(t, err)
	assert.Empty(t, token)
}

func TestLoadRejectsBrokenFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestClient(t *testing.T) {
	isolate(t)
	cfg := DefaultConfig()
	_, err := cfg.Client()
	var cfgErr *airtable.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)

	cfg.Token = "x"
	cfg.BaseID = "app1"
	client, err := cfg.Client()
	require.NoError(t, err)
	assert.Equal(t, "app1", client.Config().BaseID)
}
