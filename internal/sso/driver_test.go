package sso

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/tmc/ssopilot/internal/cdp"
	"github.com/tmc/ssopilot/internal/config"
	"github.com/tmc/ssopilot/internal/totp"
)

var creds = config.Credentials{
	Username:   "alice@example.com",
	Password:   `hunter2"'`,
	TOTPSecret: "JBSWY3DPEHPK3PXP",
}

// fixedCode is a TOTP provider that counts its calls.
type fixedCode struct {
	code    string
	err     error
	secrets []string
}

func (f *fixedCode) Code(ctx context.Context, secret string) (string, error) {
	f.secrets = append(f.secrets, secret)
	return f.code, f.err
}

func signInScreens(f Flow) map[string]*screen {
	return map[string]*screen{
		"okta": {
			url:      "https://acct.okta.example.com/signin",
			text:     "Sign In\nUsername",
			elements: []string{f.UsernameField, f.UsernameSubmit},
			next:     map[string]string{f.UsernameSubmit: "password"},
		},
		"password": {
			url:      "https://sso.onelogin.example.com/login2",
			text:     "Password\nContinue",
			elements: []string{f.PasswordField, f.PasswordSubmit},
			next:     map[string]string{f.PasswordSubmit: "factor"},
		},
		"factor": {
			url:  "https://sso.onelogin.example.com/factor",
			text: "Select Authentication Factor\nYubiKey\nGoogle Authenticator",
			next: map[string]string{"Google Authenticator": "otp"},
		},
		"otp": {
			url:      "https://sso.onelogin.example.com/otp",
			text:     "Google Authenticator\nEnter your code",
			elements: []string{f.CodeField, f.CodeSubmit},
			next:     map[string]string{f.CodeSubmit: "done"},
		},
		"done": {
			url:  "https://vpn.example.com/portal",
			text: "GlobalProtect connected",
		},
	}
}

func newDriver(p *fakePage, c *clock, code totp.Provider) *Driver {
	return &Driver{
		Page:        p,
		Flow:        DefaultFlow(),
		Credentials: creds,
		TOTP:        code,
		SettleDelay: 3 * time.Second,
		MaxSteps:    10,
		Sleep:       c.sleep,
	}
}

func TestUsernameEntry(t *testing.T) {
	f := DefaultFlow()
	p := newFakePage("okta", signInScreens(f))
	d := newDriver(p, &clock{}, nil)

	ok, err := UsernameEntry(context.Background(), d)
	if err != nil || !ok {
		t.Fatalf("UsernameEntry() = %v, %v", ok, err)
	}
	if got := p.values[f.UsernameField]; got != creds.Username {
		t.Errorf("identifier = %q, want %q", got, creds.Username)
	}
	want := []string{"wait " + f.UsernameField, "fill " + f.UsernameField, "click " + f.UsernameSubmit}
	if diff := cmp.Diff(want, p.calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
	if p.current != "password" {
		t.Errorf("page = %s, want password", p.current)
	}
}

func TestUsernameEntryMissingField(t *testing.T) {
	f := DefaultFlow()
	screens := signInScreens(f)
	screens["okta"].elements = nil
	p := newFakePage("okta", screens)

	ok, err := UsernameEntry(context.Background(), newDriver(p, &clock{}, nil))
	if err != nil || ok {
		t.Errorf("UsernameEntry() = %v, %v, want false, nil", ok, err)
	}
	if len(p.values) != 0 {
		t.Errorf("filled %v", p.values)
	}
}

func TestPasswordEntry(t *testing.T) {
	f := DefaultFlow()
	p := newFakePage("password", signInScreens(f))
	c := &clock{}

	ok, err := PasswordEntry(context.Background(), newDriver(p, c, nil))
	if err != nil || !ok {
		t.Fatalf("PasswordEntry() = %v, %v", ok, err)
	}
	if got := p.values[f.PasswordField]; got != creds.Password {
		t.Errorf("password field = %q", got)
	}
	if diff := cmp.Diff([]time.Duration{3 * time.Second, time.Second}, c.slept); diff != "" {
		t.Errorf("sleeps mismatch (-want +got):\n%s", diff)
	}
}

func TestFactorSelection(t *testing.T) {
	f := DefaultFlow()
	p := newFakePage("factor", signInScreens(f))

	ok, err := FactorSelection(context.Background(), newDriver(p, &clock{}, nil))
	if err != nil || !ok {
		t.Fatalf("FactorSelection() = %v, %v", ok, err)
	}
	want := []string{"click text Change Authentication Factor", "click text Google Authenticator"}
	if diff := cmp.Diff(want, p.calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestFactorSelectionAfterChange(t *testing.T) {
	f := DefaultFlow()
	screens := signInScreens(f)
	screens["yubikey"] = &screen{
		url:  "https://sso.onelogin.example.com/factor",
		text: "YubiKey\nInsert your key\nChange Authentication Factor",
		next: map[string]string{"Change Authentication Factor": "factor"},
	}
	p := newFakePage("yubikey", screens)

	ok, err := FactorSelection(context.Background(), newDriver(p, &clock{}, nil))
	if err != nil || !ok {
		t.Fatalf("FactorSelection() = %v, %v", ok, err)
	}
	if p.current != "otp" {
		t.Errorf("page = %s, want otp", p.current)
	}
}

func TestFactorSelectionNotOffered(t *testing.T) {
	screens := map[string]*screen{"sms": {
		url:  "https://sso.onelogin.example.com/factor",
		text: "Select Authentication Factor\nSMS",
	}}
	p := newFakePage("sms", screens)

	ok, err := FactorSelection(context.Background(), newDriver(p, &clock{}, nil))
	if err != nil || ok {
		t.Errorf("FactorSelection() = %v, %v, want false, nil", ok, err)
	}
	if len(p.calls) != 0 {
		t.Errorf("calls = %q, want none", p.calls)
	}
}

func TestCodeEntry(t *testing.T) {
	f := DefaultFlow()
	p := newFakePage("otp", signInScreens(f))
	code := &fixedCode{code: "654321"}

	ok, err := CodeEntry(context.Background(), newDriver(p, &clock{}, code))
	if err != nil || !ok {
		t.Fatalf("CodeEntry() = %v, %v", ok, err)
	}
	if got := p.values[f.CodeField]; got != "654321" {
		t.Errorf("code field = %q, want 654321", got)
	}
	if diff := cmp.Diff([]string{creds.TOTPSecret}, code.secrets); diff != "" {
		t.Errorf("provider calls mismatch (-want +got):\n%s", diff)
	}
	if p.current != "done" {
		t.Errorf("page = %s, want done", p.current)
	}
}

func TestCodeEntryFailures(t *testing.T) {
	f := DefaultFlow()
	t.Run("no field", func(t *testing.T) {
		screens := signInScreens(f)
		screens["otp"].elements = nil
		code := &fixedCode{code: "654321"}
		ok, err := CodeEntry(context.Background(), newDriver(newFakePage("otp", screens), &clock{}, code))
		if err != nil || ok {
			t.Errorf("CodeEntry() = %v, %v, want false, nil", ok, err)
		}
		if len(code.secrets) != 0 {
			t.Error("code generated before the field appeared")
		}
	})
	t.Run("provider fails", func(t *testing.T) {
		p := newFakePage("otp", signInScreens(f))
		code := &fixedCode{err: totp.ErrEmptyCode}
		ok, err := CodeEntry(context.Background(), newDriver(p, &clock{}, code))
		if err != nil || ok {
			t.Errorf("CodeEntry() = %v, %v, want false, nil", ok, err)
		}
		if len(p.values) != 0 {
			t.Errorf("filled %v", p.values)
		}
	})
	t.Run("no provider", func(t *testing.T) {
		p := newFakePage("otp", signInScreens(f))
		ok, err := CodeEntry(context.Background(), newDriver(p, &clock{}, nil))
		if err != nil || ok {
			t.Errorf("CodeEntry() = %v, %v, want false, nil", ok, err)
		}
	})
}

func TestRunFullSignIn(t *testing.T) {
	var logs bytes.Buffer
	f := DefaultFlow()
	p := newFakePage("okta", signInScreens(f))
	c := &clock{}
	code := &fixedCode{code: "654321"}
	d := newDriver(p, c, code)
	d.Flow = d.Flow.WithComplete("GlobalProtect connected")
	d.Logger = slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	got, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := Result{
		Steps:   5,
		Reason:  ReasonComplete,
		Visited: []PageState{OktaUsernameEntry, OneLoginPasswordEntry, MfaSelectionDefault, TotpEntry, Complete},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Run() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]string{
		f.UsernameField: creds.Username,
		f.PasswordField: creds.Password,
		f.CodeField:     "654321",
	}, p.values); diff != "" {
		t.Errorf("filled values mismatch (-want +got):\n%s", diff)
	}
	// Three fill pauses; nine settles, counting the double settle after
	// the code is submitted.
	if got, want := c.total(), 3*time.Second+9*3*time.Second; got != want {
		t.Errorf("total sleep = %v, want %v", got, want)
	}
	for _, secret := range []string{creds.Password, creds.TOTPSecret, "654321"} {
		if strings.Contains(logs.String(), secret) {
			t.Errorf("logs contain secret %q", secret)
		}
	}
}

func TestRunStepBudget(t *testing.T) {
	f := DefaultFlow()
	screens := signInScreens(f)
	screens["otp"].elements = nil
	p := newFakePage("otp", screens)
	d := newDriver(p, &clock{}, &fixedCode{code: "1"})
	d.MaxSteps = 3

	got, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := Result{Steps: 3, Reason: ReasonExhausted, Visited: []PageState{TotpEntry, TotpEntry, TotpEntry}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Run() mismatch (-want +got):\n%s", diff)
	}
	if p.probes != 3 {
		t.Errorf("classification cycles = %d, want 3", p.probes)
	}
}

func TestRunWaitsOnUnknownPages(t *testing.T) {
	screens := map[string]*screen{"vpn": {url: "https://vpn.example.com/", text: "Connecting"}}
	p := newFakePage("vpn", screens)
	c := &clock{}
	d := newDriver(p, c, nil)
	d.MaxSteps = 4

	got, err := d.Run(context.Background())
	if err != nil || got.Reason != ReasonExhausted {
		t.Fatalf("Run() = %+v, %v", got, err)
	}
	if diff := cmp.Diff([]time.Duration{3 * time.Second, 3 * time.Second, 3 * time.Second, 3 * time.Second}, c.slept); diff != "" {
		t.Errorf("sleeps mismatch (-want +got):\n%s", diff)
	}
	if len(p.calls) != 0 {
		t.Errorf("acted on an unknown page: %q", p.calls)
	}
}

func TestRunChannelLost(t *testing.T) {
	p := newFakePage("okta", signInScreens(DefaultFlow()))
	p.urlErr = cdp.ErrConnectionLost
	p.failAt = 2

	got, err := newDriver(p, &clock{}, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := Result{Steps: 2, Reason: ReasonChannelLost, Visited: []PageState{OktaUsernameEntry}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Run() mismatch (-want +got):\n%s", diff)
	}
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := newFakePage("okta", signInScreens(DefaultFlow()))
	d := newDriver(p, &clock{}, nil)
	d.Sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	got, err := d.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if got.Reason != ReasonCanceled || got.Steps != 1 {
		t.Errorf("Run() = %+v", got)
	}
}

func TestRunMisconfigured(t *testing.T) {
	if _, err := (&Driver{MaxSteps: 1}).Run(context.Background()); err == nil {
		t.Error("Run() without a page succeeded")
	}
	p := newFakePage("okta", signInScreens(DefaultFlow()))
	if _, err := (&Driver{Page: p}).Run(context.Background()); err == nil {
		t.Error("Run() with MaxSteps 0 succeeded")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("héllo wörld", 5); got != "héllo..." {
		t.Errorf("truncate() = %q", got)
	}
	if got := truncate("short", 80); got != "short" {
		t.Errorf("truncate() = %q", got)
	}
}
