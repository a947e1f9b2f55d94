// Package conf provides configuration management using Viper.
// It supports loading configuration from YAML files and environment variables,
// with CLI flag overrides.
package conf

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"google.golang.org/protobuf/types/known/durationpb"
)

// NewBootstrap creates and initializes a Bootstrap configuration.
// It loads configuration from the specified config file path, applies defaults,
// and allows overrides from environment variables prefixed with FUSEBOX_.
//
// Configuration priority: CLI flags > Environment variables > Config file > Defaults
//
// Commonly overridden environment variables:
//   - REDIS_ADDR or FUSEBOX_DATA_REDIS_ADDR: shared state store address
//   - MYSQL_DSN or FUSEBOX_DATA_DATABASE_SOURCE: audit database (optional)
//   - ALERT_WEBHOOK_URL or FUSEBOX_ALERT_WEBHOOK_URL: alert sink (optional)
func NewBootstrap(configPath string) (*Bootstrap, error) {
	v := viper.New()

	// Set default values
	setDefaults(v)

	// Enable environment variable support with FUSEBOX_ prefix
	v.SetEnvPrefix("FUSEBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Allow direct environment variable names (without FUSEBOX_ prefix) for compatibility
	_ = v.BindEnv("data.redis.addr", "REDIS_ADDR", "FUSEBOX_DATA_REDIS_ADDR")
	_ = v.BindEnv("data.database.source", "MYSQL_DSN", "FUSEBOX_DATA_DATABASE_SOURCE")
	_ = v.BindEnv("alert.webhook_url", "ALERT_WEBHOOK_URL", "FUSEBOX_ALERT_WEBHOOK_URL")

	// Load configuration file
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// If config file is specified but not found, return error
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	// Parse configuration into Bootstrap structure
	bc := &Bootstrap{
		Server: &Server{
			Http: &Server_HTTP{
				Network: v.GetString("server.http.network"),
				Addr:    v.GetString("server.http.addr"),
				Timeout: durationpb.New(v.GetDuration("server.http.timeout")),
			},
		},
		Data: &Data{
			Database: &Data_Database{
				Driver: v.GetString("data.database.driver"),
				Source: v.GetString("data.database.source"),
			},
			Redis: &Data_Redis{
				Network:      v.GetString("data.redis.network"),
				Addr:         v.GetString("data.redis.addr"),
				ReadTimeout:  durationpb.New(v.GetDuration("data.redis.read_timeout")),
				WriteTimeout: durationpb.New(v.GetDuration("data.redis.write_timeout")),
			},
		},
		Breaker: &Breaker{
			FailureThreshold: v.GetInt32("breaker.failure_threshold"),
			SuccessThreshold: v.GetInt32("breaker.success_threshold"),
			CallTimeout:      durationpb.New(v.GetDuration("breaker.call_timeout")),
			MonitoringPeriod: durationpb.New(v.GetDuration("breaker.monitoring_period")),
			ResetTimeout:     durationpb.New(v.GetDuration("breaker.reset_timeout")),
			ReportInterval:   durationpb.New(v.GetDuration("breaker.report_interval")),
			FlushOnCall:      v.GetBool("breaker.flush_on_call"),
		},
		Alert: &Alert{
			WebhookUrl:  v.GetString("alert.webhook_url"),
			Timeout:     durationpb.New(v.GetDuration("alert.timeout")),
			DedupWindow: durationpb.New(v.GetDuration("alert.dedup_window")),
		},
		Log: &Log{
			Level:      v.GetString("log.level"),
			Format:     v.GetString("log.format"),
			Env:        v.GetString("log.env"),
			OutputFile: v.GetString("log.output_file"),
		},
	}

	// Validate required fields
	if err := Validate(bc); err != nil {
		return nil, err
	}

	return bc, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.http.network", "tcp")
	v.SetDefault("server.http.addr", ":8080")
	v.SetDefault("server.http.timeout", 30*time.Second)

	// Data defaults
	v.SetDefault("data.database.driver", "mysql")
	// Note: data.database.source (MYSQL_DSN) is optional; audit trail degrades to logs

	v.SetDefault("data.redis.network", "tcp")
	v.SetDefault("data.redis.addr", "127.0.0.1:6379")
	v.SetDefault("data.redis.read_timeout", 200*time.Millisecond)
	v.SetDefault("data.redis.write_timeout", 200*time.Millisecond)

	// Breaker defaults
	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.success_threshold", 2)
	v.SetDefault("breaker.call_timeout", 3*time.Second)
	v.SetDefault("breaker.monitoring_period", 30*time.Second)
	v.SetDefault("breaker.reset_timeout", 60*time.Second)
	v.SetDefault("breaker.report_interval", 10*time.Second)
	v.SetDefault("breaker.flush_on_call", true)

	// Alert defaults
	// Note: alert.webhook_url is optional; alerts degrade to logs
	v.SetDefault("alert.timeout", 5*time.Second)
	v.SetDefault("alert.dedup_window", 1*time.Minute)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate checks that all required configuration fields are present and valid.
// It returns an error listing all invalid fields.
func Validate(bc *Bootstrap) error {
	var badFields []string

	if bc.Breaker == nil {
		return fmt.Errorf("missing breaker configuration section")
	}

	if bc.Breaker.FailureThreshold <= 0 {
		badFields = append(badFields, "breaker.failure_threshold (must be > 0)")
	}
	if bc.Breaker.SuccessThreshold <= 0 {
		badFields = append(badFields, "breaker.success_threshold (must be > 0)")
	}
	if bc.Breaker.CallTimeout.AsDuration() <= 0 {
		badFields = append(badFields, "breaker.call_timeout (must be > 0)")
	}
	if bc.Breaker.MonitoringPeriod.AsDuration() <= 0 {
		badFields = append(badFields, "breaker.monitoring_period (must be > 0)")
	}
	if bc.Breaker.ResetTimeout.AsDuration() <= 0 {
		badFields = append(badFields, "breaker.reset_timeout (must be > 0)")
	}
	if bc.Breaker.ReportInterval.AsDuration() <= 0 {
		badFields = append(badFields, "breaker.report_interval (must be > 0)")
	}

	if bc.Data == nil || bc.Data.Redis == nil || bc.Data.Redis.Addr == "" {
		badFields = append(badFields, "data.redis.addr (REDIS_ADDR)")
	}

	if len(badFields) > 0 {
		return fmt.Errorf("invalid configuration fields: %s", strings.Join(badFields, ", "))
	}

	return nil
}
