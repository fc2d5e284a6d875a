package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoiceocr/internal/config"
)

func noEnvFile(t *testing.T) *config.Config {
	t.Helper()
	flags := config.Flags("test")
	require.NoError(t, flags.Parse([]string{"--env-file="}))
	cfg, err := config.Load(flags)
	require.NoError(t, err)
	return cfg
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	cfg := noEnvFile(t)

	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, config.DriverPostgres, cfg.DB.Driver)
	assert.Equal(t, 2, cfg.DB.SaveRetries)
	assert.Equal(t, 30*time.Second, cfg.DB.SaveTimeout)
	assert.Equal(t, "tesseract", cfg.OCR.Binary)
	assert.Equal(t, 3, cfg.OCR.HeaderPSM)
	assert.Equal(t, 6, cfg.OCR.TablePSM)
	assert.Equal(t, 60*time.Second, cfg.OCR.Timeout)
	assert.False(t, cfg.OCR.Confidence)
	assert.Equal(t, "auto", cfg.Extract.TableSplit)
	assert.Equal(t, int64(20*1024*1024), cfg.Upload.MaxBytes())
	assert.False(t, cfg.S3.Enabled)
	assert.Equal(t, []string{"http://localhost:3000", "http://127.0.0.1:3000"}, cfg.CORS.AllowedOrigins)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("INVOICEOCR_DB_DRIVER", "SQLite")
	t.Setenv("INVOICEOCR_DB_PATH", "/data/invoices.db")
	t.Setenv("INVOICEOCR_OCR_CONFIDENCE", "true")
	t.Setenv("INVOICEOCR_CORS_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	cfg := noEnvFile(t)

	assert.Equal(t, config.DriverSQLite, cfg.DB.Driver)
	assert.Equal(t, "/data/invoices.db", cfg.DB.Path)
	assert.True(t, cfg.OCR.Confidence)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestLoad_FlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("INVOICEOCR_LOG_LEVEL", "warn")
	t.Setenv("INVOICEOCR_OCR_LANG", "deu")

	flags := config.Flags("test")
	require.NoError(t, flags.Parse([]string{"--env-file=", "--log.level=debug", "--db.driver=sqlite"}))

	cfg, err := config.Load(flags)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, config.DriverSQLite, cfg.DB.Driver)
	// unset flags leave the environment alone
	assert.Equal(t, "deu", cfg.OCR.Lang)
}

func TestLoad_PlatformPort(t *testing.T) {
	t.Setenv("PORT", "9000")

	cfg := noEnvFile(t)
	assert.Equal(t, ":9000", cfg.Server.Port)
}

func TestLoad_DotenvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("INVOICEOCR_EXTRACT_TABLE_SPLIT=gap\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("INVOICEOCR_EXTRACT_TABLE_SPLIT") })

	flags := config.Flags("test")
	require.NoError(t, flags.Parse([]string{"--env-file=" + path}))

	cfg, err := config.Load(flags)
	require.NoError(t, err)
	assert.Equal(t, "gap", cfg.Extract.TableSplit)
}

func TestLoad_MissingDotenvIsIgnored(t *testing.T) {
	flags := config.Flags("test")
	require.NoError(t, flags.Parse([]string{"--env-file=" + filepath.Join(t.TempDir(), "absent.env")}))

	_, err := config.Load(flags)
	assert.NoError(t, err)
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("INVOICEOCR_DB_DRIVER", "mysql")

	flags := config.Flags("test")
	require.NoError(t, flags.Parse([]string{"--env-file="}))

	_, err := config.Load(flags)
	assert.Error(t, err)
}

func TestValidate_S3RequiresBucket(t *testing.T) {
	cfg := noEnvFile(t)
	cfg.S3.Enabled = true
	cfg.S3.Bucket = ""

	assert.Error(t, cfg.Validate())
}

func TestDBConfig_DSN(t *testing.T) {
	pg := config.DBConfig{Driver: config.DriverPostgres, User: "u", Password: "p", Host: "h", Port: 5432, Name: "n", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@h:5432/n?sslmode=disable", pg.DSN())

	lite := config.DBConfig{Driver: config.DriverSQLite, Path: "/tmp/x.db", BusyTimeout: 5 * time.Second}
	dsn := lite.DSN()
	assert.Contains(t, dsn, "file:/tmp/x.db?")
	assert.Contains(t, dsn, "foreign_keys%281%29")
	assert.Contains(t, dsn, "busy_timeout%285000%29")
}

func TestDBConfig_DSN_EscapesCredentials(t *testing.T) {
	pg := config.DBConfig{
		Driver:   config.DriverPostgres,
		User:     "ocr@team",
		Password: "p@ss/w:rd?#",
		Host:     "db.internal",
		Port:     6543,
		Name:     "invoices",
		SSLMode:  "require",
	}

	parsed, err := pgx.ParseConfig(pg.DSN())
	require.NoError(t, err)
	assert.Equal(t, "ocr@team", parsed.User)
	assert.Equal(t, "p@ss/w:rd?#", parsed.Password)
	assert.Equal(t, "db.internal", parsed.Host)
	assert.Equal(t, uint16(6543), parsed.Port)
	assert.Equal(t, "invoices", parsed.Database)
}
