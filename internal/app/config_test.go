package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("CSRF_SECRET", "s3cret")
	t.Setenv("LEAVE_TIMEZONE", "Asia/Kolkata")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, BackendPostgres, cfg.StorageBackend)
	require.Equal(t, 3, cfg.LeaveMonthlyLimit)
	require.Equal(t, 200, cfg.NotificationRetention)
	require.Equal(t, 30, cfg.RosterRetention)
	require.Equal(t, 8*time.Hour, cfg.SessionTTL)
	require.Equal(t, "Asia/Kolkata", cfg.Location().String())
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"missing csrf secret": {"CSRF_SECRET": ""},
		"unknown backend":     {"STORAGE_BACKEND": "sqlite"},
		"zero quota":          {"LEAVE_MONTHLY_LIMIT": "0"},
		"bad timezone":        {"LEAVE_TIMEZONE": "Mars/Olympus"},
		"zero retention":      {"NOTIFICATION_RETENTION": "0"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("CSRF_SECRET", "s3cret")
			t.Setenv("LEAVE_TIMEZONE", "UTC")
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			require.Error(t, err)
		})
	}
}

func TestNilConfigLocation(t *testing.T) {
	var cfg *Config
	require.Equal(t, time.UTC, cfg.Location())
	require.Equal(t, "INFO", parseLevel(cfg).String())
	require.Equal(t, "DEBUG", parseLevel(&Config{LogLevel: "debug"}).String())
}
