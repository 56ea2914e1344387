package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/gray-logic-ambeo/internal/ambeo"
)

// Config is the root configuration structure for the AMBEO bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig       `yaml:"site" json:"site"`
	Database  DatabaseConfig   `yaml:"database" json:"database"`
	MQTT      MQTTConfig       `yaml:"mqtt" json:"mqtt"`
	API       APIConfig        `yaml:"api" json:"api"`
	WebSocket WebSocketConfig  `yaml:"websocket" json:"websocket"`
	Logging   LoggingConfig    `yaml:"logging" json:"logging"`
	Security  SecurityConfig   `yaml:"security" json:"-"`
	Bridge    BridgeConfig     `yaml:"bridge" json:"bridge"`
	Soundbars []SoundbarConfig `yaml:"soundbars" json:"soundbars"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path" json:"path"`
	WALMode     bool   `yaml:"wal_mode" json:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout" json:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker" json:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth" json:"auth"`
	QoS       int                 `yaml:"qos" json:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect" json:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	TLS      bool   `yaml:"tls" json:"tls"`
	ClientID string `yaml:"client_id" json:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
// The password never appears in String or JSON output.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

const redacted = "[REDACTED]"

// String implements fmt.Stringer with the password redacted.
func (a MQTTAuthConfig) String() string {
	pw := ""
	if a.Password != "" {
		pw = redacted
	}
	return fmt.Sprintf("{Username:%s Password:%s}", a.Username, pw)
}

// MarshalJSON implements json.Marshaler with the password redacted.
func (a MQTTAuthConfig) MarshalJSON() ([]byte, error) {
	out := struct {
		Username string `json:"username"`
		Password string `json:"password,omitempty"`
	}{Username: a.Username}
	if a.Password != "" {
		out.Password = redacted
	}
	return json.Marshal(out)
}

// MQTTReconnectConfig contains MQTT reconnection settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay" json:"initial_delay"`
	MaxDelay     int `yaml:"max_delay" json:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts" json:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled" json:"enabled"`
	Host     string           `yaml:"host" json:"host"`
	Port     int              `yaml:"port" json:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts" json:"timeouts"`
	CORS     CORSConfig       `yaml:"cors" json:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read" json:"read"`
	Write int `yaml:"write" json:"write"`
	Idle  int `yaml:"idle" json:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
}

// WebSocketConfig contains settings for the live state stream.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size" json:"max_message_size"`
	PingInterval   int `yaml:"ping_interval" json:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout" json:"pong_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	Output string `yaml:"output" json:"output"`
}

// SecurityConfig contains API security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT verification settings. An empty secret leaves the
// API unauthenticated, which is only appropriate on a trusted network.
type JWTConfig struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
}

// BridgeConfig contains AMBEO bridge runtime settings.
type BridgeConfig struct {
	// ID identifies this bridge instance in health topics.
	ID string `yaml:"id" json:"id"`

	// HealthInterval is the health publish period in seconds.
	HealthInterval int `yaml:"health_interval" json:"health_interval"`

	// PollInterval is the soundbar state poll period in seconds.
	PollInterval int `yaml:"poll_interval" json:"poll_interval"`

	// DebounceCooldown holds back "stopped" player reports for this many
	// seconds. Zero disables debouncing.
	DebounceCooldown float64 `yaml:"debounce_cooldown" json:"debounce_cooldown"`

	// SetupRetry is the delay in seconds between setup attempts for an
	// unreachable soundbar.
	SetupRetry int `yaml:"setup_retry" json:"setup_retry"`

	// RequestTimeout bounds a single device HTTP request, in seconds.
	RequestTimeout int `yaml:"request_timeout" json:"request_timeout"`
}

// SoundbarConfig describes one soundbar to manage.
type SoundbarConfig struct {
	// ID is the local identifier used in topics and API paths.
	ID   string `yaml:"id" json:"id"`
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`

	// Variant forces a client family: auto, popcorn, plus or espresso.
	Variant string `yaml:"variant" json:"variant,omitempty"`

	// Name overrides the device-reported name.
	Name string `yaml:"name" json:"name,omitempty"`
}

// DefaultPath is used when AMBEO_CONFIG is not set.
const DefaultPath = "configs/config.yaml"

// Path returns the configuration file path from AMBEO_CONFIG, or DefaultPath.
func Path() string {
	if p := os.Getenv("AMBEO_CONFIG"); p != "" {
		return p
	}
	return DefaultPath
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values
//  2. YAML file values
//  3. Environment variables (AMBEO_SECTION_KEY)
//  4. Validation
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applySoundbarDefaults()
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "site-001",
			Name: "Home",
		},
		Database: DatabaseConfig{
			Path:        "./data/ambeo.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "ambeo-bridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8095,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Bridge: BridgeConfig{
			ID:             "ambeo-bridge-01",
			HealthInterval: 30,
			PollInterval:   10,
			SetupRetry:     30,
			RequestTimeout: 5,
		},
	}
}

func (c *Config) applySoundbarDefaults() {
	for i := range c.Soundbars {
		if c.Soundbars[i].Port == 0 {
			c.Soundbars[i].Port = ambeo.DefaultPort
		}
		if c.Soundbars[i].Variant == "" {
			c.Soundbars[i].Variant = string(ambeo.VariantAuto)
		}
	}
}

func applyEnvOverrides(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	setString("AMBEO_DATABASE_PATH", &cfg.Database.Path)

	setString("AMBEO_MQTT_HOST", &cfg.MQTT.Broker.Host)
	setInt("AMBEO_MQTT_PORT", &cfg.MQTT.Broker.Port)
	setString("AMBEO_MQTT_USERNAME", &cfg.MQTT.Auth.Username)
	setString("AMBEO_MQTT_PASSWORD", &cfg.MQTT.Auth.Password)

	setString("AMBEO_API_HOST", &cfg.API.Host)
	setInt("AMBEO_API_PORT", &cfg.API.Port)

	setString("AMBEO_LOG_LEVEL", &cfg.Logging.Level)

	setString("AMBEO_BRIDGE_ID", &cfg.Bridge.ID)
	setInt("AMBEO_POLL_INTERVAL", &cfg.Bridge.PollInterval)
	if v := os.Getenv("AMBEO_DEBOUNCE_COOLDOWN"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Bridge.DebounceCooldown = f
		}
	}

	setString("AMBEO_JWT_SECRET", &cfg.Security.JWT.Secret)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if !validPort(c.MQTT.Broker.Port) {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Enabled && !validPort(c.API.Port) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	const minJWTSecretLength = 32
	if s := c.Security.JWT.Secret; s != "" && len(s) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	errs = append(errs, c.Bridge.validate()...)
	errs = append(errs, validateSoundbars(c.Soundbars)...)

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (b BridgeConfig) validate() []string {
	var errs []string
	if b.ID == "" {
		errs = append(errs, "bridge.id is required")
	}
	if b.HealthInterval < 1 {
		errs = append(errs, "bridge.health_interval must be at least 1 second")
	}
	if b.PollInterval < 1 {
		errs = append(errs, "bridge.poll_interval must be at least 1 second")
	}
	if b.SetupRetry < 1 {
		errs = append(errs, "bridge.setup_retry must be at least 1 second")
	}
	if b.RequestTimeout < 1 {
		errs = append(errs, "bridge.request_timeout must be at least 1 second")
	}
	if b.DebounceCooldown < 0 {
		errs = append(errs, "bridge.debounce_cooldown must not be negative")
	}
	return errs
}

func validateSoundbars(bars []SoundbarConfig) []string {
	var errs []string
	seen := make(map[string]bool, len(bars))
	for i, sb := range bars {
		prefix := fmt.Sprintf("soundbars[%d]", i)
		switch {
		case sb.ID == "":
			errs = append(errs, prefix+".id is required")
		case strings.ContainsAny(sb.ID, "/+#"):
			errs = append(errs, prefix+".id must not contain MQTT wildcards or '/'")
		case seen[sb.ID]:
			errs = append(errs, fmt.Sprintf("%s.id %q is duplicated", prefix, sb.ID))
		}
		seen[sb.ID] = true

		if sb.Host == "" {
			errs = append(errs, prefix+".host is required")
		}
		if !validPort(sb.Port) {
			errs = append(errs, prefix+".port must be between 1 and 65535")
		}
		if _, err := ambeo.ParseVariant(sb.Variant); err != nil {
			errs = append(errs, fmt.Sprintf("%s.variant: %v", prefix, err))
		}
	}
	return errs
}

func validPort(p int) bool { return p >= 1 && p <= 65535 }

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetPollInterval returns the soundbar poll period.
func (b BridgeConfig) GetPollInterval() time.Duration {
	return time.Duration(b.PollInterval) * time.Second
}

// GetHealthInterval returns the health publish period.
func (b BridgeConfig) GetHealthInterval() time.Duration {
	return time.Duration(b.HealthInterval) * time.Second
}

// GetSetupRetry returns the delay between setup attempts.
func (b BridgeConfig) GetSetupRetry() time.Duration {
	return time.Duration(b.SetupRetry) * time.Second
}

// GetRequestTimeout returns the per-request device timeout.
func (b BridgeConfig) GetRequestTimeout() time.Duration {
	return time.Duration(b.RequestTimeout) * time.Second
}

// GetDebounceCooldown returns the debounce delay. Zero disables debouncing.
func (b BridgeConfig) GetDebounceCooldown() time.Duration {
	return time.Duration(b.DebounceCooldown * float64(time.Second))
}
