// Package conf loads and validates hostpulse configuration.
package conf

import (
	"fmt"
	"net"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tphakala/hostpulse/internal/errors"
)

// Host kinds.
const (
	HostKindSSH   = "ssh"
	HostKindLocal = "local"
)

// Database types.
const (
	DatabaseSQLite = "sqlite"
	DatabaseMySQL  = "mysql"
)

// Settings is the root configuration.
type Settings struct {
	Log          LogSettings          `mapstructure:"log" yaml:"log"`
	Database     DatabaseSettings     `mapstructure:"database" yaml:"database"`
	Web          WebSettings          `mapstructure:"web" yaml:"web"`
	Monitor      MonitorSettings      `mapstructure:"monitor" yaml:"monitor"`
	Alerting     AlertingSettings     `mapstructure:"alerting" yaml:"alerting"`
	Notification NotificationSettings `mapstructure:"notification" yaml:"notification"`
	Sentry       SentrySettings       `mapstructure:"sentry" yaml:"sentry"`
	Hosts        []HostSettings       `mapstructure:"hosts" yaml:"hosts"`
}

type LogSettings struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // text or json
}

type DatabaseSettings struct {
	Type string `mapstructure:"type" yaml:"type"`
	Path string `mapstructure:"path" yaml:"path"` // sqlite file
	DSN  string `mapstructure:"dsn" yaml:"dsn"`   // mysql, must include parseTime=true
}

type WebSettings struct {
	Listen   string `mapstructure:"listen" yaml:"listen"`
	Timezone string `mapstructure:"timezone" yaml:"timezone"`
}

type MonitorSettings struct {
	PollInterval        Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	ProbeTimeout        Duration `mapstructure:"probe_timeout" yaml:"probe_timeout"`
	SampleRetentionDays int      `mapstructure:"sample_retention_days" yaml:"sample_retention_days"`
}

type AlertingSettings struct {
	HistoryRetentionDays int      `mapstructure:"history_retention_days" yaml:"history_retention_days"`
	RuleCacheTTL         Duration `mapstructure:"rule_cache_ttl" yaml:"rule_cache_ttl"`
}

type NotificationSettings struct {
	SendTimeout Duration     `mapstructure:"send_timeout" yaml:"send_timeout"`
	WebhookRate float64      `mapstructure:"webhook_rate" yaml:"webhook_rate"` // requests per second per channel
	SMTP        SMTPSettings `mapstructure:"smtp" yaml:"smtp"`
}

type SMTPSettings struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	From     string `mapstructure:"from" yaml:"from"`
	StartTLS bool   `mapstructure:"starttls" yaml:"starttls"`
}

// Enabled reports whether email delivery is configured.
func (s SMTPSettings) Enabled() bool { return s.Host != "" && s.From != "" }

type SentrySettings struct {
	DSN         string `mapstructure:"dsn" yaml:"dsn"`
	Environment string `mapstructure:"environment" yaml:"environment"`
}

// HostSettings declares one monitored host.
type HostSettings struct {
	ID                    string `mapstructure:"id" yaml:"id"`
	Name                  string `mapstructure:"name" yaml:"name"`
	Kind                  string `mapstructure:"kind" yaml:"kind"`
	Address               string `mapstructure:"address" yaml:"address"`
	Port                  int    `mapstructure:"port" yaml:"port"`
	User                  string `mapstructure:"user" yaml:"user"`
	PrivateKeyPath        string `mapstructure:"private_key_path" yaml:"private_key_path"`
	KnownHostsPath        string `mapstructure:"known_hosts_path" yaml:"known_hosts_path"`
	InsecureIgnoreHostKey bool   `mapstructure:"insecure_ignore_host_key" yaml:"insecure_ignore_host_key"`
	DiskPath              string `mapstructure:"disk_path" yaml:"disk_path"`
}

// Location resolves web.timezone, falling back to the process local zone.
func (s *Settings) Location() *time.Location {
	if s.Web.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(s.Web.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("database.type", DatabaseSQLite)
	v.SetDefault("database.path", "hostpulse.db")
	v.SetDefault("web.listen", ":8080")
	v.SetDefault("monitor.poll_interval", "60s")
	v.SetDefault("monitor.probe_timeout", "10s")
	v.SetDefault("monitor.sample_retention_days", 0)
	v.SetDefault("alerting.history_retention_days", 90)
	v.SetDefault("alerting.rule_cache_ttl", "1m")
	v.SetDefault("notification.send_timeout", "10s")
	v.SetDefault("notification.webhook_rate", 1.0)
	v.SetDefault("notification.smtp.port", 587)
	v.SetDefault("notification.smtp.starttls", true)
}

// Load reads configuration from path (optional) and HOSTPULSE_* environment
// variables, then validates it.
func Load(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("HOSTPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(fmt.Errorf("failed to read config %s: %w", path, err),
				errors.CategoryConfiguration, "conf")
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings, viper.DecodeHook(DurationDecodeHook())); err != nil {
		return nil, errors.Wrap(fmt.Errorf("failed to decode config: %w", err),
			errors.CategoryConfiguration, "conf")
	}
	settings.applyHostDefaults()

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &settings, nil
}

func (s *Settings) applyHostDefaults() {
	for i := range s.Hosts {
		h := &s.Hosts[i]
		if h.Kind == "" {
			h.Kind = HostKindSSH
		}
		if h.Kind == HostKindSSH && h.Port == 0 {
			h.Port = 22
		}
		if h.Name == "" {
			h.Name = h.ID
		}
		if h.DiskPath == "" {
			h.DiskPath = "/"
		}
	}
}

// Validate reports every invalid setting at once.
func (s *Settings) Validate() error {
	verr := &errors.ValidationError{}

	switch s.Database.Type {
	case DatabaseSQLite:
		if s.Database.Path == "" {
			verr.Add("database.path", "required for sqlite")
		}
	case DatabaseMySQL:
		if s.Database.DSN == "" {
			verr.Add("database.dsn", "required for mysql")
		}
	default:
		verr.Add("database.type", fmt.Sprintf("unsupported database type %q", s.Database.Type))
	}

	if s.Monitor.PollInterval.Std() < time.Second {
		verr.Add("monitor.poll_interval", "must be at least 1s")
	}
	if s.Monitor.ProbeTimeout.Std() <= 0 {
		verr.Add("monitor.probe_timeout", "must be positive")
	}
	if s.Notification.SendTimeout.Std() <= 0 {
		verr.Add("notification.send_timeout", "must be positive")
	}
	if s.Notification.WebhookRate <= 0 {
		verr.Add("notification.webhook_rate", "must be positive")
	}
	if s.Web.Timezone != "" {
		if _, err := time.LoadLocation(s.Web.Timezone); err != nil {
			verr.Add("web.timezone", err.Error())
		}
	}

	seen := make(map[string]bool, len(s.Hosts))
	for i := range s.Hosts {
		h := &s.Hosts[i]
		prefix := fmt.Sprintf("hosts[%d]", i)
		if h.ID == "" {
			verr.Add(prefix+".id", "required")
		} else if seen[h.ID] {
			verr.Add(prefix+".id", fmt.Sprintf("duplicate host id %q", h.ID))
		}
		seen[h.ID] = true

		switch h.Kind {
		case HostKindLocal:
		case HostKindSSH:
			if h.Address == "" {
				verr.Add(prefix+".address", "required for ssh hosts")
			} else if strings.Contains(h.Address, ":") && net.ParseIP(h.Address) == nil {
				verr.Add(prefix+".address", "set the port with hosts[].port")
			}
			if h.User == "" {
				verr.Add(prefix+".user", "required for ssh hosts")
			}
			if h.PrivateKeyPath == "" {
				verr.Add(prefix+".private_key_path", "required for ssh hosts")
			}
			if h.KnownHostsPath == "" && !h.InsecureIgnoreHostKey {
				verr.Add(prefix+".known_hosts_path", "required unless insecure_ignore_host_key is set")
			}
		default:
			verr.Add(prefix+".kind", fmt.Sprintf("unsupported host kind %q", h.Kind))
		}
	}

	if err := verr.Err(); err != nil {
		return errors.Wrap(err, errors.CategoryConfiguration, "conf")
	}
	return nil
}

const maskedValue = "********"

// Masked returns a copy with credentials replaced, for display.
func (s Settings) Masked() Settings {
	mask := func(v string) string {
		if v == "" {
			return ""
		}
		return maskedValue
	}
	s.Database.DSN = mask(s.Database.DSN)
	s.Notification.SMTP.Password = mask(s.Notification.SMTP.Password)
	s.Sentry.DSN = mask(s.Sentry.DSN)
	s.Hosts = slices.Clone(s.Hosts)
	return s
}
