package config

import (
	"bufio"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/JameZUK/fqdn-builder/pkg/models"
)

// Targets returns the seed list: the URL file when set, otherwise the
// single start URL. Blank lines and '#' comments are skipped; malformed
// entries are logged and dropped. An empty result is a ConfigError.
func (c *Config) Targets(logger zerolog.Logger) ([]models.Target, error) {
	var raws []string
	if c.URLFile != "" {
		if c.StartURL != "" {
			logger.Warn().Str("url_file", c.URLFile).Str("start_url", c.StartURL).Msg("both a URL file and a start URL given, using the file")
		}
		lines, err := readLines(c.URLFile)
		if err != nil {
			return nil, configErrorf("read URL file: %v", err)
		}
		raws = lines
	} else if c.StartURL != "" {
		raws = []string{c.StartURL}
	}

	var targets []models.Target
	for _, raw := range raws {
		t, err := models.ParseTarget(raw, len(targets))
		if err != nil {
			logger.Warn().Err(err).Msg("skipping target")
			continue
		}
		targets = append(targets, t)
	}
	if len(targets) == 0 {
		return nil, configErrorf("no valid target URLs")
	}
	return targets, nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, scanner.Err()
}
