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
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("JWT_SECRET", "")
	return path
}

func TestLoad_FileValuesAndDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8080
  base_url: "https://social.example"
jwt:
  secret: "s3cret"
mail:
  provider: sendgrid
  sender: "no-reply@social.example"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "https://social.example", cfg.Server.BaseURL)
	assert.Equal(t, "s3cret", cfg.JWT.Secret)
	assert.Equal(t, "sendgrid", cfg.Mail.Provider)
	assert.Equal(t, "local", cfg.Uploads.Backend)
	assert.Equal(t, "public/uploads/users", cfg.Uploads.Dir)
	assert.Equal(t, 48*time.Hour, cfg.JWT.EmailTokenTTL())
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
jwt:
  secret: "from-file"
`)
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("PORT", "9090")
	t.Setenv("UPLOADS_BACKEND", "s3")
	t.Setenv("S3_BUCKET", "avatars")
	t.Setenv("NATS_URL", "nats://localhost:4222")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "s3", cfg.Uploads.Backend)
	assert.Equal(t, "avatars", cfg.Uploads.S3.Bucket)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
}

func TestLoad_DotEnvFile(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 3000\n")
	envPath := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(envPath, []byte("JWT_SECRET=dotenv-secret\n"), 0o600))
	t.Setenv("ENV_FILE", envPath)
	// godotenv never overwrites variables already present in the process.
	require.NoError(t, os.Unsetenv("JWT_SECRET"))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "dotenv-secret", cfg.JWT.Secret)
}

func TestLoad_MissingSecret(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 3000\n")

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrMissingJWTSecret)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	db := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "social", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=social sslmode=disable", db.DSN())
}

func TestSweepInterval(t *testing.T) {
	assert.Equal(t, time.Duration(0), (&SweeperConfig{}).SweepInterval())
	assert.Equal(t, 30*time.Minute, (&SweeperConfig{IntervalMinutes: 30}).SweepInterval())
}
