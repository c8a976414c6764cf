package pgpass

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePgpass(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pgpass")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLookupFile_ExactMatch(t *testing.T) {
	path := writePgpass(t, "db.example.com:5432:orders:admin:s3cret\n")

	pw, found := LookupFile(path, "db.example.com", 5432, "orders", "admin")

	require.True(t, found)
	assert.Equal(t, "s3cret", pw)
}

func TestLookupFile_Wildcards(t *testing.T) {
	path := writePgpass(t, "*:*:*:admin:wildpw\n")

	pw, found := LookupFile(path, "anywhere", 5433, "whatever", "admin")

	require.True(t, found)
	assert.Equal(t, "wildpw", pw)
}

func TestLookupFile_FirstMatchWins(t *testing.T) {
	path := writePgpass(t, `
db.example.com:5432:orders:admin:specific
*:*:*:*:fallback
`)

	pw, found := LookupFile(path, "db.example.com", 5432, "orders", "admin")
	require.True(t, found)
	assert.Equal(t, "specific", pw)

	pw, found = LookupFile(path, "other", 5432, "orders", "admin")
	require.True(t, found)
	assert.Equal(t, "fallback", pw)
}

func TestLookupFile_EscapedColonInField(t *testing.T) {
	path := writePgpass(t, `host\:weird:5432:orders:admin:pw\:with\:colons` + "\n")

	pw, found := LookupFile(path, "host:weird", 5432, "orders", "admin")

	require.True(t, found)
	assert.Equal(t, "pw:with:colons", pw)
}

func TestLookupFile_SkipsCommentsAndBlankLines(t *testing.T) {
	path := writePgpass(t, `
# credentials for the orders database
db.example.com:5432:orders:admin:s3cret
`)

	pw, found := LookupFile(path, "db.example.com", 5432, "orders", "admin")

	require.True(t, found)
	assert.Equal(t, "s3cret", pw)
}

func TestLookupFile_NoMatch(t *testing.T) {
	path := writePgpass(t, "db.example.com:5432:orders:admin:s3cret\n")

	_, found := LookupFile(path, "db.example.com", 5432, "orders", "other_user")

	assert.False(t, found)
}

func TestLookupFile_MissingFile(t *testing.T) {
	_, found := LookupFile(filepath.Join(t.TempDir(), "nope"), "h", 5432, "d", "u")

	assert.False(t, found)
}

func TestLookup_UsesPgpassfileEnv(t *testing.T) {
	path := writePgpass(t, "db.example.com:5432:orders:admin:envfile\n")
	t.Setenv("PGPASSFILE", path)

	pw, found := Lookup("db.example.com", 5432, "orders", "admin")

	require.True(t, found)
	assert.Equal(t, "envfile", pw)
}
