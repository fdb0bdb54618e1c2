package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/JameZUK/fqdn-builder/pkg/models"
)

const MaxConcurrency = 10

type BrowserConfig struct {
	// Renderer is "chrome" for headless Chrome or "static" for plain HTTP
	// fetches without script execution.
	Renderer          string        `envconfig:"RENDERER" default:"chrome" yaml:"renderer" validate:"oneof=chrome static"`
	Headless          bool          `envconfig:"HEADLESS" default:"true" yaml:"headless"`
	UserAgent         string        `envconfig:"USER_AGENT" yaml:"user_agent"`
	ExecPath          string        `envconfig:"EXEC_PATH" yaml:"exec_path"`
	NavigationTimeout time.Duration `envconfig:"NAVIGATION_TIMEOUT" default:"30s" yaml:"navigation_timeout" validate:"gt=0"`
	SettleDelay       time.Duration `envconfig:"SETTLE_DELAY" default:"1s" yaml:"settle_delay" validate:"gte=0"`
	// RateLimit is the minimum gap between page loads on one host.
	RateLimit time.Duration `envconfig:"RATE_LIMIT" default:"2s" yaml:"rate_limit" validate:"gte=0"`
}

type CookieConfig struct {
	Persist    bool   `envconfig:"PERSIST" default:"true" yaml:"persist"`
	Clear      bool   `envconfig:"CLEAR" yaml:"clear"`
	Dir        string `envconfig:"DIR" default:".browser_data" yaml:"dir" validate:"required"`
	ImportFile string `envconfig:"IMPORT_FILE" yaml:"import_file" validate:"omitempty,fileexists"`
}

type DNSConfig struct {
	// Concurrency 0 follows the crawl concurrency.
	Concurrency  int           `envconfig:"CONCURRENCY" yaml:"concurrency" validate:"gte=0,lte=100"`
	Timeout      time.Duration `envconfig:"TIMEOUT" default:"5s" yaml:"timeout" validate:"gt=0"`
	Retries      int           `envconfig:"RETRIES" default:"1" yaml:"retries" validate:"gte=0,lte=5"`
	Backoff      time.Duration `envconfig:"BACKOFF" default:"2s" yaml:"backoff" validate:"gte=0"`
	RecordTypes  []string      `envconfig:"RECORD_TYPES" default:"A,AAAA" yaml:"record_types" validate:"min=1,dive,oneof=A AAAA CNAME"`
	Servers      []string      `envconfig:"SERVERS" yaml:"servers"`
	Conservative bool          `envconfig:"CONSERVATIVE" yaml:"conservative"`
}

type LogConfig struct {
	Level      string `envconfig:"LEVEL" default:"info" yaml:"level" validate:"oneof=trace debug info warn error"`
	Format     string `envconfig:"FORMAT" default:"console" yaml:"format" validate:"oneof=console json"`
	File       string `envconfig:"FILE" yaml:"file"`
	MaxSizeMB  int    `envconfig:"MAX_SIZE_MB" default:"50" yaml:"max_size_mb" validate:"gte=1"`
	MaxBackups int    `envconfig:"MAX_BACKUPS" default:"3" yaml:"max_backups" validate:"gte=0"`
}

// Config is the full runtime configuration. Values come from defaults, the
// environment (and .env), an optional YAML file and command flags, in that
// order of increasing precedence.
type Config struct {
	StartURL string `envconfig:"FQDN_START_URL" yaml:"start_url"`
	URLFile  string `envconfig:"FQDN_URL_FILE" yaml:"url_file" validate:"omitempty,fileexists"`
	Output   string `envconfig:"FQDN_OUTPUT" yaml:"output"`

	Pages       int    `envconfig:"FQDN_PAGES" default:"10" yaml:"pages" validate:"min=1"`
	Concurrency int    `envconfig:"FQDN_CONCURRENCY" default:"3" yaml:"concurrency" validate:"min=1,max=10"`
	IPMode      string `envconfig:"FQDN_IP_MODE" default:"ipv4" yaml:"ip_mode" validate:"oneof=ipv4 ipv6 dual"`

	FQDNOnly           bool `envconfig:"FQDN_ONLY" yaml:"fqdn_only"`
	SkipKnown          bool `envconfig:"FQDN_SKIP_KNOWN" default:"true" yaml:"skip_known"`
	ShuffleTargets     bool `envconfig:"FQDN_SHUFFLE" default:"true" yaml:"shuffle_targets"`
	AnnotateThirdParty bool `envconfig:"FQDN_ANNOTATE" default:"true" yaml:"annotate_third_party"`
	Backup             bool `envconfig:"FQDN_BACKUP" yaml:"backup"`

	Browser BrowserConfig `envconfig:"FQDN_BROWSER" yaml:"browser"`
	Cookies CookieConfig  `envconfig:"FQDN_COOKIES" yaml:"cookies"`
	DNS     DNSConfig     `envconfig:"FQDN_DNS" yaml:"dns"`
	Log     LogConfig     `envconfig:"FQDN_LOG" yaml:"log"`

	// DatabaseURL maps to DB_URL. When set, every run is mirrored to Postgres.
	DatabaseURL string `envconfig:"DB_URL" yaml:"database_url"`
}

// ConfigError is a fatal configuration problem found before any network
// activity.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

func configErrorf(format string, args ...any) error {
	return &ConfigError{Problems: []string{fmt.Sprintf(format, args...)}}
}

// Load reads .env, the environment and, when path is set (or CONFIG_FILE
// is), a YAML file on top. It does not validate; call Validate once flags
// are applied.
func Load(path string) (*Config, error) {
	// Production environments inject variables directly and have no .env.
	if err := godotenv.Load(); err != nil {
		if _, statErr := os.Stat(".env"); statErr == nil {
			log.Warn().Err(err).Msg(".env file found but could not be loaded")
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{Problems: []string{err.Error()}}
	}

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return configErrorf("read config file: %v", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return configErrorf("parse config file %s: %v", path, err)
	}
	return nil
}

// Mode returns the parsed discovery mode.
func (c *Config) Mode() models.Mode {
	m, _ := models.ParseMode(c.IPMode)
	return m
}

// DNSConcurrency resolves the default of following the crawl concurrency.
func (c *Config) DNSConcurrency() int {
	if c.DNS.Concurrency > 0 {
		return c.DNS.Concurrency
	}
	return c.Concurrency
}

// Validate checks field rules and cross-field constraints.
func (c *Config) Validate() error {
	validate := validator.New()
	_ = validate.RegisterValidation("fileexists", func(fl validator.FieldLevel) bool {
		_, err := os.Stat(fl.Field().String())
		return err == nil
	})

	var problems []string
	if err := validate.Struct(c); err != nil {
		var errs validator.ValidationErrors
		if !errors.As(err, &errs) {
			return &ConfigError{Problems: []string{err.Error()}}
		}
		for _, e := range errs {
			problems = append(problems, describe(e))
		}
	}

	if c.StartURL == "" && c.URLFile == "" {
		problems = append(problems, "either a start URL or a URL file is required")
	}
	if len(problems) > 0 {
		return &ConfigError{Problems: problems}
	}
	return nil
}

func describe(e validator.FieldError) string {
	field := strings.TrimPrefix(e.Namespace(), "Config.")
	switch e.Tag() {
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s (got %v)", field, e.Param(), e.Value())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s (got %v)", field, e.Param(), e.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s] (got %v)", field, e.Param(), e.Value())
	case "fileexists":
		return fmt.Sprintf("%s: file %v does not exist", field, e.Value())
	default:
		return fmt.Sprintf("%s failed %q check (got %v)", field, e.Tag(), e.Value())
	}
}
