package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScheduleValidator(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name      string
		interval  string
		wantError bool
	}{
		{name: "valid duration 5m", interval: "5m"},
		{name: "valid duration 1h", interval: "1h"},
		{name: "valid duration 24h", interval: "24h"},
		{name: "valid duration 30s", interval: "30s"},
		{name: "valid cron 5 fields", interval: "*/5 * * * *"},
		{name: "valid cron 6 fields with seconds", interval: "*/30 * * * * *"},
		{name: "weekday draw at noon", interval: "0 12 * * 1-5"},
		{name: "empty interval is valid (single draw)", interval: ""},
		{name: "invalid duration 7m (not divisor of 60)", interval: "7m", wantError: true},
		{name: "invalid duration 5h (not divisor of 24)", interval: "5h", wantError: true},
		{name: "invalid cron too few fields", interval: "*/5 * * *", wantError: true},
		{name: "invalid cron too many fields", interval: "*/5 * * * * * *", wantError: true},
		{name: "not a schedule", interval: "hourly", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Interval = tt.interval
			err := v.Struct(cfg)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTimezoneValidator(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name      string
		timezone  string
		wantError bool
	}{
		{name: "valid UTC", timezone: "UTC"},
		{name: "valid America/New_York", timezone: "America/New_York"},
		{name: "valid Europe/Paris", timezone: "Europe/Paris"},
		{name: "valid Asia/Tokyo", timezone: "Asia/Tokyo"},
		{name: "empty timezone is valid (defaults to UTC)", timezone: ""},
		{name: "invalid timezone", timezone: "Invalid/Timezone", wantError: true},
		{name: "random string", timezone: "NotATimezone", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Timezone = tt.timezone
			err := v.Struct(cfg)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatorIntegration(t *testing.T) {
	v := NewValidator()

	t.Run("complete valid config passes all validators", func(t *testing.T) {
		cfg := &Config{
			RPCUrls:     []string{"https://rpc1.example.com", "wss://rpc2.example.com/ws"},
			ManifestURL: "https://raw.githubusercontent.com/broxus/ton-assets/master/manifest.json",
			Request:     "./request.json",
			Interval:    "5m",
			LogLevel:    "debug",
			HTTPPort:    8080,
			Timezone:    "America/New_York",
		}
		assert.NoError(t, v.Struct(cfg))
	})

	t.Run("rpc_url alone is not enough before normalization", func(t *testing.T) {
		cfg := &Config{RPCUrl: "https://rpc.example.com"}
		assert.Error(t, v.Struct(cfg))
		assert.NoError(t, cfg.Normalize())
		assert.NoError(t, v.Struct(cfg))
	})
}
