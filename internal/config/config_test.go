package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"PORT", "DATABASE_URL", "REDIS_URL", "CORS_ORIGINS", "LOG_LEVEL", "LOG_FORMAT", "EXPIRE_SWEEP_SCHEDULE", "EXPIRE_SWEEP_BATCH", "CERTIFICATE_CACHE_TTL"} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	logger, hook := test.NewNullLogger()

	cfg, err := Load(logger)
	require.NoError(t, err)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultDatabaseURL, cfg.DatabaseURL)
	assert.Equal(t, []string{"http://localhost:5173", "http://127.0.0.1:5173"}, cfg.CORSOrigins)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, DefaultSweepBatch, cfg.SweepBatch)
	assert.Equal(t, DefaultCertCacheTTL, cfg.CertCacheTTL)
	assert.Empty(t, cfg.SweepCron)
	assert.Len(t, hook.AllEntries(), 3)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("EXPIRE_SWEEP_SCHEDULE", "@hourly")
	t.Setenv("EXPIRE_SWEEP_BATCH", "50")
	t.Setenv("CERTIFICATE_CACHE_TTL", "30s")
	logger, _ := test.NewNullLogger()

	cfg, err := Load(logger)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "@hourly", cfg.SweepCron)
	assert.Equal(t, 50, cfg.SweepBatch)
	assert.Equal(t, 30*time.Second, cfg.CertCacheTTL)
}

func TestLoad_InvalidValues(t *testing.T) {
	logger, _ := test.NewNullLogger()

	clearEnv(t)
	t.Setenv("EXPIRE_SWEEP_BATCH", "-1")
	_, err := Load(logger)
	assert.Error(t, err)

	clearEnv(t)
	t.Setenv("CERTIFICATE_CACHE_TTL", "soon")
	_, err = Load(logger)
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	logger, err := Config{LogLevel: "debug", LogFormat: "json"}.NewLogger()
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)

	_, err = Config{LogLevel: "loud"}.NewLogger()
	assert.Error(t, err)
	_, err = Config{LogLevel: "info", LogFormat: "xml"}.NewLogger()
	assert.Error(t, err)
}

func TestParseEnvFile(t *testing.T) {
	t.Setenv("ENT_EXISTING", "keep")
	os.Unsetenv("ENT_QUOTED")
	os.Unsetenv("ENT_EXPORTED")
	t.Cleanup(func() {
		os.Unsetenv("ENT_QUOTED")
		os.Unsetenv("ENT_EXPORTED")
	})

	input := "\ufeff# comment\nENT_QUOTED=\"hello world\"\nexport ENT_EXPORTED='x'\nENT_EXISTING=override\nnot a pair\n"
	logger, _ := test.NewNullLogger()
	require.NoError(t, parseEnvFile(logger, strings.NewReader(input)))

	assert.Equal(t, "hello world", os.Getenv("ENT_QUOTED"))
	assert.Equal(t, "x", os.Getenv("ENT_EXPORTED"))
	assert.Equal(t, "keep", os.Getenv("ENT_EXISTING"))
}

func TestParseCSV(t *testing.T) {
	assert.Nil(t, ParseCSV(""))
	assert.Equal(t, []string{"a", "b"}, ParseCSV(" a, ,b ,"))
}
