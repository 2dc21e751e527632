package config

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/matrixise/tip3-raffle/internal/scheduler"
)

// Config represents the application configuration.
type Config struct {
	RPCUrl          string        `mapstructure:"rpc_url" validate:"omitempty,url"`
	RPCUrls         []string      `mapstructure:"rpc_urls" validate:"required,min=1,dive,url"`
	ManifestURL     string        `mapstructure:"manifest_url" validate:"omitempty,url"`
	Request         string        `mapstructure:"request"`
	Interval        string        `mapstructure:"interval" validate:"omitempty,schedule"`
	Timezone        string        `mapstructure:"timezone" validate:"omitempty,timezone"`
	RunImmediately  *bool         `mapstructure:"run_immediately"`
	LogLevel        string        `mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
	HTTPPort        int           `mapstructure:"http_port" validate:"omitempty,min=1024,max=65535"`
	RPCTimeout      time.Duration `mapstructure:"rpc_timeout" validate:"gte=0"`
	ManifestTimeout time.Duration `mapstructure:"manifest_timeout" validate:"gte=0"`
}

// Normalize folds the single rpc_url into rpc_urls. rpc_urls wins when
// both are set.
func (c *Config) Normalize() error {
	if len(c.RPCUrls) == 0 && c.RPCUrl != "" {
		c.RPCUrls = []string{c.RPCUrl}
	}
	c.RPCUrl = ""

	if len(c.RPCUrls) == 0 {
		return errors.New("either rpc_url or rpc_urls must be set")
	}
	return nil
}

// GetTimezone returns the schedule location, UTC when unset or unknown.
func (c *Config) GetTimezone() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ShouldRunImmediately defaults to true.
func (c *Config) ShouldRunImmediately() bool {
	return c.RunImmediately == nil || *c.RunImmediately
}

// IsCronExpression reports whether Interval is a cron expression.
func (c *Config) IsCronExpression() bool {
	return scheduler.IsCronExpression(c.Interval)
}

// Daemon reports whether draws repeat on a schedule.
func (c *Config) Daemon() bool {
	return c.Interval != ""
}

func scheduleValidator(fl validator.FieldLevel) bool {
	return scheduler.ValidateScheduleInterval(fl.Field().String()) == nil
}

// NewValidator creates a validator with the custom rules of this package.
func NewValidator() *validator.Validate {
	validate := validator.New()
	_ = validate.RegisterValidation("schedule", scheduleValidator)
	return validate
}
