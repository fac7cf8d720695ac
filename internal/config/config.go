// Package config loads NostrGit Core's runtime configuration from YAML,
// layered with environment variable overrides, split into config,
// logger, and telemetry sections.
package config

import (
	"os"
	"regexp"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/chebizarro/nostr-git-sub004/pkg/logger"
	"github.com/chebizarro/nostr-git-sub004/pkg/telemetry"
)

const (
	defaultTimeoutMs  = 30000
	defaultOTLPEndpoint = "localhost:4317"
	defaultPromPort   = 9090
)

// CacheMode selects whether the cache layer wraps the git backend.
type CacheMode string

const (
	CacheModeOn  CacheMode = "on"
	CacheModeOff CacheMode = "off"
)

// RelayConfig is the relay set injected into every EventIO operation.
type RelayConfig struct {
	Default     []string `yaml:"default" mapstructure:"default"`
	Fallback    []string `yaml:"fallback" mapstructure:"fallback"`
	Grasp       []string `yaml:"grasp" mapstructure:"grasp"`
	EnableGrasp bool     `yaml:"enable_grasp" mapstructure:"enable_grasp"`
}

// PublishConfig controls which events facade.Push emits after a successful push.
type PublishConfig struct {
	RepoState         bool `yaml:"repo_state" mapstructure:"repo_state"`
	RepoAnnouncements bool `yaml:"repo_announcements" mapstructure:"repo_announcements"`
}

// WebhookConfig configures the inbound vendor webhook receiver.
type WebhookConfig struct {
	ListenAddr string            `yaml:"listen_addr" mapstructure:"listen_addr"`
	Secrets    map[string]string `yaml:"secrets" mapstructure:"secrets"` // vendor name -> webhook secret
	JWTSecret  string            `yaml:"jwt_secret" mapstructure:"jwt_secret"`
}

// Config is the complete NostrGit Core runtime configuration.
type Config struct {
	Workspace      string          `yaml:"workspace" mapstructure:"workspace"`
	Relays         RelayConfig     `yaml:"relays" mapstructure:"relays"`
	Publish        PublishConfig   `yaml:"publish" mapstructure:"publish"`
	CORSProxy      string          `yaml:"cors_proxy" mapstructure:"cors_proxy"`
	TimeoutMs      int             `yaml:"timeout_ms" mapstructure:"timeout_ms"`
	CacheMode      CacheMode       `yaml:"cache_mode" mapstructure:"cache_mode"`
	ValidateEvents bool            `yaml:"validate_events" mapstructure:"validate_events"`
	Webhook        WebhookConfig   `yaml:"webhook" mapstructure:"webhook"`
	Logging        logger.Config   `yaml:"logging" mapstructure:"logging"`
	Telemetry      telemetry.Config `yaml:"telemetry" mapstructure:"telemetry"`
}

// Default returns the baseline configuration used when no file is present
// and as the seed that a loaded file's values are layered on top of.
func Default() *Config {
	return &Config{
		Workspace: "./workspace",
		Relays: RelayConfig{
			Default:     []string{"wss://relay.damus.io", "wss://nos.lol"},
			Fallback:    []string{"wss://relay.nostr.band"},
			Grasp:       nil,
			EnableGrasp: false,
		},
		Publish: PublishConfig{
			RepoState:         true,
			RepoAnnouncements: false,
		},
		TimeoutMs:      defaultTimeoutMs,
		CacheMode:      CacheModeOn,
		ValidateEvents: true,
		Webhook: WebhookConfig{
			ListenAddr: "0.0.0.0:8088",
			Secrets:    map[string]string{},
		},
		Logging: logger.Config{
			Level:      "info",
			Format:     "json",
			MaxSize:    100,
			MaxAge:     7,
			MaxBackups: 5,
		},
		Telemetry: telemetry.Config{
			Enabled:     false,
			ServiceName: "nostr-git-core",
			OTLP: telemetry.OTLPConfig{
				Enabled:  false,
				Endpoint: defaultOTLPEndpoint,
				Insecure: true,
			},
			Prometheus: telemetry.PrometheusConfig{
				Enabled: false,
				Port:    defaultPromPort,
			},
		},
	}
}

// Load reads path (if it exists) over the default configuration, applying
// ${VAR}/${VAR:-default} environment substitution before YAML parsing and
// viper-bound environment overrides afterward. A missing file is not an
// error — Load then just returns Default() with env overrides applied.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
		} else {
			expanded := expandEnvVars(string(data))
			if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
				return nil, err
			}
		}
	}

	v := viper.New()
	v.SetEnvPrefix("NOSTRGIT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	// These two are named explicitly in the configuration contract;
	// NOSTR_GIT_VALIDATE_EVENTS doesn't follow the NOSTRGIT_ prefix
	// convention the rest of the keys use.
	_ = v.BindEnv("validate_events", "NOSTR_GIT_VALIDATE_EVENTS")
	_ = v.BindEnv("cache_mode", "NOSTRGIT_CACHE_MODE")

	if v.IsSet("validate_events") {
		cfg.ValidateEvents = v.GetBool("validate_events")
	}
	if v.IsSet("cache_mode") {
		cfg.CacheMode = CacheMode(v.GetString("cache_mode"))
	}
	if v.IsSet("workspace") {
		cfg.Workspace = v.GetString("workspace")
	}
	if v.IsSet("cors_proxy") {
		cfg.CORSProxy = v.GetString("cors_proxy")
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} and ${VAR_NAME:-default} patterns with
// environment variable values, leaving unmatched variables blank.
func expandEnvVars(content string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(content, func(match string) string {
		name := match[2 : len(match)-1]
		parts := strings.SplitN(name, ":-", 2)
		name = parts[0]
		if value := os.Getenv(name); value != "" {
			return value
		}
		if len(parts) > 1 {
			return parts[1]
		}
		return ""
	})
}
