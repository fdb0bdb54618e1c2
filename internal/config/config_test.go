package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JameZUK/fqdn-builder/pkg/models"
)

func TestLoad_Defaults(t *testing.T) {
	testChdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Pages)
	assert.Equal(t, 3, cfg.Concurrency)
	assert.Equal(t, "ipv4", cfg.IPMode)
	assert.True(t, cfg.SkipKnown)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 30*time.Second, cfg.Browser.NavigationTimeout)
	assert.Equal(t, 2*time.Second, cfg.Browser.RateLimit)
	assert.Equal(t, ".browser_data", cfg.Cookies.Dir)
	assert.Equal(t, []string{"A", "AAAA"}, cfg.DNS.RecordTypes)
	assert.Equal(t, 3, cfg.DNSConcurrency())
	assert.Equal(t, models.ModeIPv4, cfg.Mode())
}

func TestLoad_EnvAndFile(t *testing.T) {
	dir := t.TempDir()
	testChdir(t, dir)

	t.Setenv("FQDN_PAGES", "25")
	t.Setenv("FQDN_DNS_RETRIES", "3")
	t.Setenv("FQDN_BROWSER_HEADLESS", "false")

	path := filepath.Join(dir, "fqdn.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
concurrency: 5
ip_mode: dual
dns:
  timeout: 750ms
  servers: ["192.0.2.53"]
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Pages, "env survives when the file is silent")
	assert.Equal(t, 5, cfg.Concurrency)
	assert.Equal(t, models.ModeDual, cfg.Mode())
	assert.Equal(t, 3, cfg.DNS.Retries)
	assert.Equal(t, 750*time.Millisecond, cfg.DNS.Timeout)
	assert.Equal(t, []string{"192.0.2.53"}, cfg.DNS.Servers)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 5, cfg.DNSConcurrency())
}

func TestLoad_BadFile(t *testing.T) {
	testChdir(t, t.TempDir())

	_, err := Load("missing.yaml")
	var cfgErr *ConfigError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestValidate(t *testing.T) {
	testChdir(t, t.TempDir())
	valid := func(t *testing.T) *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		cfg.StartURL = "https://example.com"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		problem string
	}{
		{name: "ok", mutate: func(*Config) {}},
		{name: "concurrency too high", mutate: func(c *Config) { c.Concurrency = 11 }, problem: "Concurrency must be at most 10"},
		{name: "concurrency zero", mutate: func(c *Config) { c.Concurrency = 0 }, problem: "Concurrency must be at least 1"},
		{name: "pages zero", mutate: func(c *Config) { c.Pages = 0 }, problem: "Pages must be at least 1"},
		{name: "bad mode", mutate: func(c *Config) { c.IPMode = "ipx" }, problem: "IPMode must be one of"},
		{name: "bad record type", mutate: func(c *Config) { c.DNS.RecordTypes = []string{"MX"} }, problem: "DNS.RecordTypes[0]"},
		{name: "missing url file", mutate: func(c *Config) { c.URLFile = "nope.txt" }, problem: "does not exist"},
		{name: "no targets", mutate: func(c *Config) { c.StartURL = "" }, problem: "start URL or a URL file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.problem == "" {
				assert.NoError(t, err)
				return
			}
			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Contains(t, cfgErr.Error(), tt.problem)
		})
	}
}

func TestTargets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "urls.txt")
	require.NoError(t, os.WriteFile(path, []byte("# seeds\nexample.com\n\n  https://www.example.org/news  \nftp://bad.example\n"), 0o600))

	cfg := &Config{URLFile: path, StartURL: "https://ignored.example"}
	targets, err := cfg.Targets(zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, targets, 2)
	assert.Equal(t, "https://example.com/", targets[0].URL)
	assert.Equal(t, "https://www.example.org/news", targets[1].URL)
	assert.Equal(t, 1, targets[1].Index)

	cfg = &Config{StartURL: "example.net"}
	targets, err = cfg.Targets(zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, targets, 1)

	cfg = &Config{URLFile: path + ".missing"}
	_, err = cfg.Targets(zerolog.Nop())
	assert.Error(t, err)
}
