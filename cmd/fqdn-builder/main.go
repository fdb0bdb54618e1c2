package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/JameZUK/fqdn-builder/internal/browser"
	"github.com/JameZUK/fqdn-builder/internal/config"
	"github.com/JameZUK/fqdn-builder/internal/cookies"
	"github.com/JameZUK/fqdn-builder/internal/crawler"
	"github.com/JameZUK/fqdn-builder/internal/dns"
	"github.com/JameZUK/fqdn-builder/internal/logging"
	"github.com/JameZUK/fqdn-builder/internal/runner"
	"github.com/JameZUK/fqdn-builder/internal/state"
	"github.com/JameZUK/fqdn-builder/internal/storage"
)

const (
	exitRunFailed   = 1
	exitConfigError = 2
)

type flagValues struct {
	configFile        string
	urlFile           string
	output            string
	pages             int
	concurrency       int
	fqdnOnly          bool
	ipv6              bool
	dualStack         bool
	headless          bool
	noHeadless        bool
	renderer          string
	dnsServers        []string
	noPersistCookies  bool
	clearCookies      bool
	cookieFile        string
	navigationTimeout time.Duration
	rateLimit         time.Duration
	logFile           string
	verbose           bool
	noSkip            bool
	backup            bool
}

func main() {
	os.Exit(execute())
}

func execute() int {
	if err := newRootCmd(run).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		var cfgErr *config.ConfigError
		if errors.As(err, &cfgErr) {
			return exitConfigError
		}
		return exitRunFailed
	}
	return 0
}

// newRootCmd builds the command; runFn receives the validated
// configuration.
func newRootCmd(runFn func(*cobra.Command, *config.Config) error) *cobra.Command {
	var flags flagValues

	rootCmd := &cobra.Command{
		Use:   "fqdn-builder [start_url]",
		Short: "Build and maintain the list of domains an organization controls",
		Long: `Discovers domains from seed URLs. Each site's embedded domain manifest is
used when present; otherwise a bounded crawl collects linked hosts. Results
are merged with the existing output file, dead domains are pruned by DNS and
sites whose domain is already known are skipped.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, &flags, args)
			if err != nil {
				return err
			}
			return runFn(cmd, cfg)
		},
	}

	f := rootCmd.Flags()
	f.StringVar(&flags.configFile, "config", "", "YAML configuration file")
	f.StringVar(&flags.urlFile, "url-file", "", "file with one seed URL per line")
	f.StringVarP(&flags.output, "output", "o", "", "output file, merged with any existing content (stdout when empty)")
	f.IntVarP(&flags.pages, "pages", "p", 10, "maximum pages to crawl per site")
	f.IntVar(&flags.concurrency, "concurrency", 3, "sites crawled in parallel (1-10)")
	f.BoolVar(&flags.fqdnOnly, "fqdn-list", false, "write organization hostnames only")
	f.BoolVar(&flags.ipv6, "ipv6", false, "crawl over IPv6 only")
	f.BoolVar(&flags.dualStack, "dual-stack", false, "crawl over IPv4 and IPv6 and merge the results")
	f.BoolVar(&flags.headless, "headless", true, "run the browser headless")
	f.BoolVar(&flags.noHeadless, "no-headless", false, "show the browser window")
	f.StringVar(&flags.renderer, "renderer", "chrome", "page renderer: chrome or static")
	f.StringSliceVar(&flags.dnsServers, "dns-server", nil, "DNS server for validation (repeatable)")
	f.BoolVar(&flags.noPersistCookies, "no-persist-cookies", false, "do not load or save cookies between runs")
	f.BoolVar(&flags.clearCookies, "clear-cookies", false, "delete saved cookies before starting")
	f.StringVar(&flags.cookieFile, "cookies", "", "cookie export (JSON) to inject into every session")
	f.DurationVar(&flags.navigationTimeout, "navigation-timeout", 30*time.Second, "page load timeout")
	f.DurationVar(&flags.rateLimit, "rate-limit", 2*time.Second, "minimum delay between page loads on one host")
	f.StringVar(&flags.logFile, "log-file", "", "also write logs to this file")
	f.BoolVarP(&flags.verbose, "verbose", "v", false, "debug logging")
	f.BoolVar(&flags.noSkip, "no-skip", false, "crawl every target even if its domain is already known")
	f.BoolVar(&flags.backup, "backup", false, "keep a timestamped copy of the previous output")
	rootCmd.MarkFlagsMutuallyExclusive("ipv6", "dual-stack")

	return rootCmd
}

// loadConfig layers flags over the environment and config file, then
// validates the result.
func loadConfig(cmd *cobra.Command, flags *flagValues, args []string) (*config.Config, error) {
	cfg, err := config.Load(flags.configFile)
	if err != nil {
		return nil, err
	}
	flags.apply(cmd, cfg, args)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// apply copies explicitly set flags over the loaded configuration.
func (fv *flagValues) apply(cmd *cobra.Command, cfg *config.Config, args []string) {
	changed := cmd.Flags().Changed

	if len(args) == 1 {
		cfg.StartURL = args[0]
	}
	if changed("url-file") {
		cfg.URLFile = fv.urlFile
	}
	if changed("output") {
		cfg.Output = fv.output
	}
	if changed("pages") {
		cfg.Pages = fv.pages
	}
	if changed("concurrency") {
		cfg.Concurrency = fv.concurrency
	}
	if changed("fqdn-list") {
		cfg.FQDNOnly = fv.fqdnOnly
	}
	if fv.ipv6 {
		cfg.IPMode = "ipv6"
	}
	if fv.dualStack {
		cfg.IPMode = "dual"
	}
	if changed("headless") {
		cfg.Browser.Headless = fv.headless
	}
	if fv.noHeadless {
		cfg.Browser.Headless = false
	}
	if changed("renderer") {
		cfg.Browser.Renderer = fv.renderer
	}
	if changed("dns-server") {
		cfg.DNS.Servers = fv.dnsServers
	}
	if fv.noPersistCookies {
		cfg.Cookies.Persist = false
	}
	if fv.clearCookies {
		cfg.Cookies.Clear = true
	}
	if changed("cookies") {
		cfg.Cookies.ImportFile = fv.cookieFile
	}
	if changed("navigation-timeout") {
		cfg.Browser.NavigationTimeout = fv.navigationTimeout
	}
	if changed("rate-limit") {
		cfg.Browser.RateLimit = fv.rateLimit
	}
	if changed("log-file") {
		cfg.Log.File = fv.logFile
	}
	if fv.verbose {
		cfg.Log.Level = "debug"
	}
	if fv.noSkip {
		cfg.SkipKnown = false
	}
	if fv.backup {
		cfg.Backup = true
	}
}

func run(cmd *cobra.Command, cfg *config.Config) error {
	logger, closer, err := logging.New(cfg.Log)
	if err != nil {
		return &config.ConfigError{Problems: []string{fmt.Sprintf("log file: %v", err)}}
	}
	defer closer.Close()

	targets, err := cfg.Targets(logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessions, err := newSessionFactory(cfg, logger)
	if err != nil {
		return err
	}

	deps := runner.Dependencies{
		RunID:    uuid.NewString(),
		Sessions: sessions,
		Checker: dns.NewResolver(cfg.DNS.Timeout,
			dns.WithServers(cfg.DNS.Servers...),
			dns.WithRecordTypes(cfg.DNS.RecordTypes...)),
	}

	writeOpts := state.WriteOptions{
		FQDNOnly:           cfg.FQDNOnly,
		AnnotateThirdParty: cfg.AnnotateThirdParty,
		HeadlessBrowser:    cfg.Browser.Headless,
		PersistCookies:     cfg.Cookies.Persist,
		Backup:             cfg.Backup,
	}
	if cfg.Output != "" {
		deps.Store = state.NewFileStore(cfg.Output, writeOpts, logger)
	}

	if cfg.DatabaseURL != "" {
		db, err := storage.Connect(ctx, cfg.DatabaseURL, 10, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("database unavailable, continuing without mirror")
		} else {
			defer db.Close()
			deps.Mirror = db
			deps.OutcomeSink = &storage.OutcomeSink{Storage: db, RunID: deps.RunID}
		}
	}

	r := runner.New(cfg, deps, logger)

	logger.Info().
		Str("run_id", r.RunID()).
		Int("targets", len(targets)).
		Int("pages", cfg.Pages).
		Int("concurrency", cfg.Concurrency).
		Str("mode", cfg.IPMode).
		Str("renderer", cfg.Browser.Renderer).
		Msg("starting")

	res, err := r.Run(ctx, targets)
	if err != nil {
		return err
	}

	if cfg.Output == "" {
		return state.Encode(cmd.OutOrStdout(), res.State, writeOpts)
	}
	return nil
}

func newSessionFactory(cfg *config.Config, logger zerolog.Logger) (crawler.SessionFactory, error) {
	store := cookies.NewStore(cfg.Cookies.Dir)
	if cfg.Cookies.Clear {
		n, err := store.ClearAll()
		if err != nil {
			return nil, fmt.Errorf("clear cookies: %w", err)
		}
		logger.Info().Int("files", n).Msg("cleared saved cookies")
	}

	var imported []cookies.Cookie
	if cfg.Cookies.ImportFile != "" {
		var err error
		imported, err = cookies.Import(cfg.Cookies.ImportFile)
		if err != nil {
			return nil, &config.ConfigError{Problems: []string{err.Error()}}
		}
		logger.Info().Int("cookies", len(imported)).Str("file", cfg.Cookies.ImportFile).Msg("imported cookies")
	}

	opts := browser.Options{
		Headless:          cfg.Browser.Headless,
		UserAgent:         cfg.Browser.UserAgent,
		NavigationTimeout: cfg.Browser.NavigationTimeout,
		SettleDelay:       cfg.Browser.SettleDelay,
		PersistCookies:    cfg.Cookies.Persist,
		ExecPath:          cfg.Browser.ExecPath,
	}
	if cfg.Browser.Renderer == "static" {
		return browser.NewStaticFactory(opts, store, imported, logger), nil
	}
	return browser.NewChromeFactory(opts, store, imported, logger), nil
}
