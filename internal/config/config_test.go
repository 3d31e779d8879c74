package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "memory", c.Store.Driver)
	assert.Equal(t, 15*time.Second, c.Rules.HoldWindow)
	assert.Equal(t, 10*time.Second, c.Rules.EscalatedWindow)
	assert.Equal(t, 5, c.Rules.QuestionCount)
	assert.Equal(t, 30*time.Second, c.Rooms.AbandonGrace)
}

func TestLoad_FileThenEnv(t *testing.T) {
	p := writeFile(t, `
port: "9000"
rules:
  hold_window: 20s
  escalated_window: 8s
  buzz_wrong_points: -1
guard:
  driver: redis
`)
	t.Setenv("PORT", "9100")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("TOKEN_EXPIRE_TIME", "3600")

	c, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "9100", c.Port)
	assert.Equal(t, 20*time.Second, c.Rules.HoldWindow)
	assert.Equal(t, 8*time.Second, c.Rules.EscalatedWindow)
	assert.Equal(t, -1, c.Rules.BuzzWrongPoints)
	assert.Equal(t, "redis", c.Guard.Driver)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, c.AllowedOrigins)
	assert.Equal(t, time.Hour, c.TokenExpiry)

	r := c.MatchRules()
	assert.Equal(t, 20*time.Second, r.HoldWindow)
	assert.Equal(t, -1, r.BuzzWrongPoints)
}

func TestLoad_PostgresFromPGVars(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("PG_HOST", "db")
	t.Setenv("PG_USER", "arena")
	t.Setenv("PG_PASS", "secret")
	t.Setenv("PG_DB", "certarena")

	c, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "postgres://arena:secret@db:5432/certarena?sslmode=disable", c.Store.DatabaseURL)
}

func TestValidate(t *testing.T) {
	c := Default()
	c.Rules.EscalatedWindow = c.Rules.HoldWindow
	assert.ErrorContains(t, c.Validate(), "escalated_window")

	c = Default()
	c.Store.Driver = "postgres"
	assert.ErrorContains(t, c.Validate(), "database_url")

	c = Default()
	c.Guard.Driver = "etcd"
	assert.ErrorContains(t, c.Validate(), "guard driver")

	assert.NoError(t, Default().Validate())
}

func TestLoad_RejectsBadYAML(t *testing.T) {
	_, err := Load(writeFile(t, "rules: [unterminated"))
	require.Error(t, err)
}
