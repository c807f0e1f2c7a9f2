// Package config holds the run configuration for ssopilot.
//
// A Config is built once at startup from the environment and command-line
// flags and then passed down by value; nothing in the module reads the
// process environment after that point.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Environment variable names.
const (
	EnvUsername     = "GP_USERNAME"
	EnvPassword     = "GP_PASSWORD"
	EnvTOTPSecret   = "GP_TOTP_SECRET"
	EnvStepDelay    = "STEP_DELAY"
	EnvDevToolsURL  = "SSOPILOT_DEVTOOLS_URL"
	EnvMaxSteps     = "SSOPILOT_MAX_STEPS"
	EnvCompleteText = "SSOPILOT_COMPLETE_TEXT"
)

// Defaults.
const (
	DefaultDevToolsURL       = "http://localhost:9222"
	DefaultSettleDelay       = 3 * time.Second
	DefaultMaxSteps          = 10
	DefaultDiscoveryAttempts = 120
	DefaultDiscoveryInterval = time.Second
	DefaultReadTimeout       = 30 * time.Second
	DefaultTOTPCommand       = "oathtool"
)

// ErrMissing is returned when a required variable is unset or empty.
var ErrMissing = errors.New("missing required configuration")

// Credentials are the secrets used to complete the login flow.
type Credentials struct {
	Username   string
	Password   string
	TOTPSecret string
}

// String redacts everything but the username.
func (c Credentials) String() string {
	return fmt.Sprintf("{username:%s password:%s totp:%s}", c.Username, redact(c.Password), redact(c.TOTPSecret))
}

// GoString keeps %#v from leaking secrets too.
func (c Credentials) GoString() string { return "config.Credentials" + c.String() }

func redact(s string) string {
	if s == "" {
		return "<unset>"
	}
	return "****"
}

// Config is the complete run configuration.
type Config struct {
	Credentials Credentials

	DevToolsURL       string
	DiscoveryAttempts int
	DiscoveryInterval time.Duration
	ReadTimeout       time.Duration

	SettleDelay time.Duration
	MaxSteps    int

	TOTPCommand  string
	CompleteText []string

	Debug bool
}

// Default returns a Config with every optional field set.
func Default() Config {
	return Config{
		DevToolsURL:       DefaultDevToolsURL,
		DiscoveryAttempts: DefaultDiscoveryAttempts,
		DiscoveryInterval: DefaultDiscoveryInterval,
		ReadTimeout:       DefaultReadTimeout,
		SettleDelay:       DefaultSettleDelay,
		MaxSteps:          DefaultMaxSteps,
		TOTPCommand:       DefaultTOTPCommand,
	}
}

// FromEnv builds a Config from lookup, typically os.LookupEnv.
// Required values are not checked here; call Validate.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	// The password may legitimately begin or end with spaces.
	raw := func(key string) string {
		v, _ := lookup(key)
		return v
	}
	cfg.Credentials = Credentials{
		Username:   get(EnvUsername),
		Password:   raw(EnvPassword),
		TOTPSecret: get(EnvTOTPSecret),
	}

	if v := get(EnvStepDelay); v != "" {
		d, err := ParseDelay(v)
		if err != nil {
			return cfg, fmt.Errorf("%s: %w", EnvStepDelay, err)
		}
		cfg.SettleDelay = d
	}
	if v := get(EnvDevToolsURL); v != "" {
		cfg.DevToolsURL = v
	}
	if v := get(EnvMaxSteps); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return cfg, fmt.Errorf("%s: invalid step count %q", EnvMaxSteps, v)
		}
		cfg.MaxSteps = n
	}
	if v := get(EnvCompleteText); v != "" {
		cfg.CompleteText = SplitList(v)
	}
	return cfg, nil
}

// ParseDelay accepts whole seconds ("3") or a Go duration ("1500ms").
func ParseDelay(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("negative delay %q", s)
		}
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid delay %q", s)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative delay %q", s)
	}
	return d, nil
}

// SplitList splits a '|' separated list, dropping empty entries.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, "|") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate reports all missing required values at once.
func (c Config) Validate() error {
	var missing []string
	if c.Credentials.Username == "" {
		missing = append(missing, EnvUsername)
	}
	if c.Credentials.Password == "" {
		missing = append(missing, EnvPassword)
	}
	if c.Credentials.TOTPSecret == "" {
		missing = append(missing, EnvTOTPSecret)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s must be set", ErrMissing, strings.Join(missing, ", "))
	}
	if c.MaxSteps < 1 {
		return fmt.Errorf("max steps must be positive, got %d", c.MaxSteps)
	}
	if c.DevToolsURL == "" {
		return fmt.Errorf("devtools url is empty")
	}
	return nil
}
