package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Redis struct {
		Address         string `yaml:"address"`
		Password        string `yaml:"password"`
		DB              int    `yaml:"db"`
		CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
	} `yaml:"redis"`

	SMTP struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		From     string `yaml:"from"`
	} `yaml:"smtp"`

	Reminders struct {
		SweepIntervalMinutes   int   `yaml:"sweep_interval_minutes"`
		LeadHours              []int `yaml:"lead_hours"`
		WindowToleranceMinutes int   `yaml:"window_tolerance_minutes"`
	} `yaml:"reminders"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Audit struct {
		RetentionDays int `yaml:"retention_days"`
	} `yaml:"audit"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/citago.db"
	}
	if c.Redis.CacheTTLSeconds == 0 {
		c.Redis.CacheTTLSeconds = 60
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}
	if c.Reminders.SweepIntervalMinutes <= 0 {
		c.Reminders.SweepIntervalMinutes = 2
	}
	if len(c.Reminders.LeadHours) == 0 {
		c.Reminders.LeadHours = []int{1, 24}
	}
	if c.Reminders.WindowToleranceMinutes <= 0 {
		c.Reminders.WindowToleranceMinutes = 2
	}
	if c.Monitoring.HealthCheckPort == 0 {
		c.Monitoring.HealthCheckPort = 8090
	}
	if c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Audit.RetentionDays <= 0 {
		c.Audit.RetentionDays = 31
	}
}

// SweepInterval returns the reminder sweep period.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Reminders.SweepIntervalMinutes) * time.Minute
}

// LeadTimes returns the reminder lead offsets.
func (c *Config) LeadTimes() []time.Duration {
	out := make([]time.Duration, 0, len(c.Reminders.LeadHours))
	for _, h := range c.Reminders.LeadHours {
		out = append(out, time.Duration(h)*time.Hour)
	}
	return out
}

// WindowTolerance returns the sweep window half-width.
func (c *Config) WindowTolerance() time.Duration {
	return time.Duration(c.Reminders.WindowToleranceMinutes) * time.Minute
}

// CacheTTL returns the availability cache TTL.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Redis.CacheTTLSeconds) * time.Second
}
