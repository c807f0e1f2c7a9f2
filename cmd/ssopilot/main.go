package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tmc/ssopilot/cmd/ssopilot/env"
	"github.com/tmc/ssopilot/internal/cdp"
	"github.com/tmc/ssopilot/internal/config"
	"github.com/tmc/ssopilot/internal/page"
	"github.com/tmc/ssopilot/internal/sso"
	"github.com/tmc/ssopilot/internal/totp"
)

// Flags. Unset flags leave the environment-derived value alone.
var (
	devtoolsURL       string
	maxSteps          int
	delay             string
	readTimeout       time.Duration
	discoveryAttempts int
	discoveryInterval time.Duration
	totpCmd           string
	completeText      string
	envFile           string
	debug             bool
)

func init() {
	flag.StringVar(&devtoolsURL, "devtools", config.DefaultDevToolsURL, "DevTools HTTP endpoint (or set "+config.EnvDevToolsURL+")")
	flag.IntVar(&maxSteps, "max-steps", config.DefaultMaxSteps, "maximum page steps (or set "+config.EnvMaxSteps+")")
	flag.StringVar(&delay, "delay", "3", "settle delay in seconds or as a duration (or set "+config.EnvStepDelay+")")
	flag.DurationVar(&readTimeout, "read-timeout", config.DefaultReadTimeout, "how long to wait for a DevTools result")
	flag.IntVar(&discoveryAttempts, "discovery-attempts", config.DefaultDiscoveryAttempts, "how many times to poll for a page")
	flag.DurationVar(&discoveryInterval, "discovery-interval", config.DefaultDiscoveryInterval, "time between page polls")
	flag.StringVar(&totpCmd, "totp-cmd", config.DefaultTOTPCommand, "oathtool-compatible TOTP generator")
	flag.StringVar(&completeText, "complete-text", "", "'|' separated page texts that mean sign-in finished (or set "+config.EnvCompleteText+")")
	flag.StringVar(&envFile, "env-file", "", "read KEY=value settings from this file")
	flag.BoolVar(&debug, "debug", false, "enable debug logging")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ssopilot [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Completes an Okta and OneLogin sign-in in a browser that is already\n")
		fmt.Fprintf(os.Stderr, "running with remote debugging enabled.\n\n")
		fmt.Fprintf(os.Stderr, "Environment:\n")
		fmt.Fprintf(os.Stderr, "  %-24s username (required)\n", config.EnvUsername)
		fmt.Fprintf(os.Stderr, "  %-24s password (required)\n", config.EnvPassword)
		fmt.Fprintf(os.Stderr, "  %-24s base32 TOTP secret (required)\n", config.EnvTOTPSecret)
		fmt.Fprintf(os.Stderr, "  %-24s settle delay, default 3 seconds\n\n", config.EnvStepDelay)
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ssopilot: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig merges env files, the environment and flags, in increasing
// order of precedence.
func loadConfig() (config.Config, error) {
	if err := env.Load(envFile); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.FromEnv(os.LookupEnv)
	if err != nil {
		return cfg, err
	}

	var ferr error
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "devtools":
			cfg.DevToolsURL = devtoolsURL
		case "max-steps":
			cfg.MaxSteps = maxSteps
		case "delay":
			d, err := config.ParseDelay(delay)
			if err != nil {
				ferr = fmt.Errorf("-delay: %w", err)
			}
			cfg.SettleDelay = d
		case "read-timeout":
			cfg.ReadTimeout = readTimeout
		case "discovery-attempts":
			cfg.DiscoveryAttempts = discoveryAttempts
		case "discovery-interval":
			cfg.DiscoveryInterval = discoveryInterval
		case "totp-cmd":
			cfg.TOTPCommand = totpCmd
		case "complete-text":
			cfg.CompleteText = config.SplitList(completeText)
		}
	})
	cfg.Debug = debug
	if ferr != nil {
		return cfg, ferr
	}
	return cfg, cfg.Validate()
}

// run returns an error only for failures that should exit non-zero:
// configuration, discovery and connecting. Everything after that is
// absorbed by the driver.
func run(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(os.Stderr, cfg.Debug)
	log.Info("starting", "delay", cfg.SettleDelay, "max_steps", cfg.MaxSteps, "devtools", cfg.DevToolsURL)

	d := &cdp.Discoverer{
		BaseURL:  cfg.DevToolsURL,
		Attempts: cfg.DiscoveryAttempts,
		Interval: cfg.DiscoveryInterval,
		Logger:   log,
	}
	target, err := d.WaitForTarget(ctx)
	if err != nil {
		return fmt.Errorf("discover page: %w", err)
	}
	log.Info("page found", "title", target.Title, "url", truncate(target.URL, 60))
	if v, err := d.Version(ctx); err == nil {
		log.Debug("browser", "version", v.Browser, "protocol", v.ProtocolVersion)
	}

	client, err := cdp.Dial(ctx, target.WebSocketDebuggerURL,
		cdp.WithLogger(log),
		cdp.WithReadTimeout(cfg.ReadTimeout),
	)
	if err != nil {
		return err
	}
	defer client.Close()

	prober := page.New(client, page.WithLogger(log))
	title, err := prober.Title(ctx)
	if err != nil {
		if ctx.Err() != nil {
			log.Info("canceled before the first step")
			return nil
		}
		return fmt.Errorf("read page title: %w", err)
	}
	log.Info("attached", "title", title)

	driver := &sso.Driver{
		Page:        prober,
		Flow:        sso.DefaultFlow().WithComplete(cfg.CompleteText...),
		Credentials: cfg.Credentials,
		TOTP:        totp.Oathtool(cfg.TOTPCommand),
		SettleDelay: cfg.SettleDelay,
		MaxSteps:    cfg.MaxSteps,
		Logger:      log,
	}

	// Let the first page finish loading.
	if err := cdp.Sleep(ctx, cfg.SettleDelay); err != nil {
		log.Info("canceled before the first step")
		return nil
	}
	res, err := driver.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("autofill finished", "reason", res.Reason, "steps", res.Steps, "last_command", client.LastID())
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
