package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Change feed transports.
const (
	FeedPostgres = "postgres"
	FeedKafka    = "kafka"
)

// Config is the top-level configuration.
type Config struct {
	Clinics map[string]ClinicConfig `toml:"clinics"`
}

// ClinicConfig is one clinic profile: who is signed in and where the
// clinic's data lives.
type ClinicConfig struct {
	StaffName   string `toml:"staff_name"`
	DefaultView string `toml:"default_view"`
	Timezone    string `toml:"timezone"`
	ChangeFeed  string `toml:"change_feed"`

	Database DatabaseConfig `toml:"database"`
	SSH      *SSHConfig     `toml:"ssh"`
	Kafka    *KafkaConfig   `toml:"kafka"`
}

// DatabaseConfig holds the Postgres connection details.
type DatabaseConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Name     string `toml:"name"`
	SSLMode  string `toml:"sslmode"`
}

// SSHConfig holds optional details for tunnelling the database connection.
type SSHConfig struct {
	Host               string `toml:"host"`
	Port               int    `toml:"port"`
	Username           string `toml:"username"`
	PrivateKeyPath     string `toml:"private_key_path"`
	HostKeyFingerprint string `toml:"host_key_fingerprint"`
}

// KafkaConfig holds the CDC feed details used when change_feed = "kafka".
type KafkaConfig struct {
	Brokers     []string `toml:"brokers"`
	TopicPrefix string   `toml:"topic_prefix"`
}

// DefaultPath returns the default config file path using XDG conventions.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(dir, "clinic-tui", "config.toml")
}

// DefaultLogPath returns the default log file path under $XDG_STATE_HOME.
func DefaultLogPath() string {
	dir := os.Getenv("XDG_STATE_HOME")
	if dir == "" {
		dir = filepath.Join(os.Getenv("HOME"), ".local", "state")
	}
	return filepath.Join(dir, "clinic-tui", "clinic-tui.log")
}

// LoadFrom reads and parses the config file at the given path.
// It applies defaults and validates each clinic after parsing.
func LoadFrom(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("loading config from %s: %w", path, err)
	}
	if len(cfg.Clinics) == 0 {
		return nil, fmt.Errorf("config has no clinics defined")
	}
	for name, clinic := range cfg.Clinics {
		applyDefaults(&clinic)
		if err := clinic.validate(); err != nil {
			return nil, fmt.Errorf("clinic %q: %w", name, err)
		}
		cfg.Clinics[name] = clinic
	}
	return &cfg, nil
}

func applyDefaults(c *ClinicConfig) {
	if c.DefaultView == "" {
		c.DefaultView = "dashboard"
	}
	if c.ChangeFeed == "" {
		c.ChangeFeed = FeedPostgres
	}
	c.ChangeFeed = strings.ToLower(c.ChangeFeed)
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "require"
	}
	if c.SSH != nil {
		if c.SSH.Host == "" {
			c.SSH.Host = c.Database.Host
		}
		if c.SSH.Port == 0 {
			c.SSH.Port = 22
		}
		if c.SSH.Username == "" {
			c.SSH.Username = c.Database.User
		}
		c.SSH.PrivateKeyPath = expandPath(c.SSH.PrivateKeyPath)
	}
	if c.Kafka != nil && c.Kafka.TopicPrefix == "" {
		c.Kafka.TopicPrefix = "clinic.public."
	}
}

func (c *ClinicConfig) validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	switch c.ChangeFeed {
	case FeedPostgres:
	case FeedKafka:
		if c.Kafka == nil || len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("change_feed = %q needs kafka.brokers", FeedKafka)
		}
	default:
		return fmt.Errorf("unknown change_feed %q (want %q or %q)", c.ChangeFeed, FeedPostgres, FeedKafka)
	}
	return nil
}

// Location returns the clinic's time zone, or time.Local when unset.
func (c *ClinicConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// DSN returns the lib/pq connection URL for the database. The host and
// port are dialled through the SSH tunnel when one is configured.
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:   "/" + d.Name,
	}
	switch {
	case d.User != "" && d.Password != "":
		u.User = url.UserPassword(d.User, d.Password)
	case d.User != "":
		u.User = url.User(d.User)
	}
	q := url.Values{}
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// expandPath expands ~ to $HOME and then expands all environment variables.
func expandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		path = "$HOME" + path[1:]
	}
	return os.ExpandEnv(path)
}

// ClinicNames returns the sorted list of clinic profile names.
func (c *Config) ClinicNames() []string {
	names := make([]string, 0, len(c.Clinics))
	for name := range c.Clinics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
