package main

import (
	"errors"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JameZUK/fqdn-builder/internal/config"
)

func execWith(t *testing.T, args ...string) (*config.Config, error) {
	t.Helper()
	var got *config.Config
	cmd := newRootCmd(func(_ *cobra.Command, cfg *config.Config) error {
		got = cfg
		return nil
	})
	if args == nil {
		args = []string{}
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return got, err
}

func TestFlagsOverrideConfig(t *testing.T) {
	testChdir(t, t.TempDir())
	t.Setenv("FQDN_PAGES", "40")

	cfg, err := execWith(t, "example.com",
		"-p", "5",
		"--concurrency", "4",
		"--dual-stack",
		"--no-headless",
		"--renderer", "static",
		"--dns-server", "192.0.2.53",
		"--rate-limit", "500ms",
		"--no-skip",
		"-v",
	)
	require.NoError(t, err)

	assert.Equal(t, "example.com", cfg.StartURL)
	assert.Equal(t, 5, cfg.Pages)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, "dual", cfg.IPMode)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, "static", cfg.Browser.Renderer)
	assert.Equal(t, []string{"192.0.2.53"}, cfg.DNS.Servers)
	assert.Equal(t, 500*time.Millisecond, cfg.Browser.RateLimit)
	assert.False(t, cfg.SkipKnown)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestUnchangedFlagsKeepEnvironment(t *testing.T) {
	testChdir(t, t.TempDir())
	t.Setenv("FQDN_PAGES", "40")

	cfg, err := execWith(t, "example.com")
	require.NoError(t, err)
	assert.Equal(t, 40, cfg.Pages)
	assert.Equal(t, "ipv4", cfg.IPMode)
	assert.True(t, cfg.SkipKnown)
}

func TestInvalidConfigIsConfigError(t *testing.T) {
	testChdir(t, t.TempDir())

	tests := []struct {
		name string
		args []string
	}{
		{name: "concurrency above limit", args: []string{"example.com", "--concurrency", "11"}},
		{name: "no targets", args: nil},
		{name: "unknown renderer", args: []string{"example.com", "--renderer", "lynx"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := execWith(t, tt.args...)
			require.Error(t, err)
			assert.Nil(t, cfg)
			var cfgErr *config.ConfigError
			assert.True(t, errors.As(err, &cfgErr))
		})
	}
}

func TestIPFamilyFlagsAreExclusive(t *testing.T) {
	testChdir(t, t.TempDir())

	_, err := execWith(t, "example.com", "--ipv6", "--dual-stack")
	assert.Error(t, err)
}
