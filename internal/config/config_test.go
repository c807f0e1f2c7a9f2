package config

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func lookupMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestFromEnv(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		want    Config
		wantErr string
	}{
		{
			name: "defaults",
			env: map[string]string{
				EnvUsername:   "svc@example.com",
				EnvPassword:   "p4ss",
				EnvTOTPSecret: "JBSWY3DPEHPK3PXP",
			},
			want: func() Config {
				c := Default()
				c.Credentials = Credentials{"svc@example.com", "p4ss", "JBSWY3DPEHPK3PXP"}
				return c
			}(),
		},
		{
			name: "overrides",
			env: map[string]string{
				EnvUsername:     "u",
				EnvPassword:     "p",
				EnvTOTPSecret:   "s",
				EnvStepDelay:    "5",
				EnvDevToolsURL:  "http://127.0.0.1:9333",
				EnvMaxSteps:     "4",
				EnvCompleteText: "Login Successful | You may close this window",
			},
			want: func() Config {
				c := Default()
				c.Credentials = Credentials{"u", "p", "s"}
				c.SettleDelay = 5 * time.Second
				c.DevToolsURL = "http://127.0.0.1:9333"
				c.MaxSteps = 4
				c.CompleteText = []string{"Login Successful", "You may close this window"}
				return c
			}(),
		},
		{
			name:    "bad delay",
			env:     map[string]string{EnvStepDelay: "soon"},
			wantErr: "STEP_DELAY",
		},
		{
			name:    "bad max steps",
			env:     map[string]string{EnvMaxSteps: "0"},
			wantErr: "SSOPILOT_MAX_STEPS",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromEnv(lookupMap(tt.env))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("FromEnv() error = %v, want mention of %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("FromEnv() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("FromEnv() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseDelay(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"3", 3 * time.Second, false},
		{"0", 0, false},
		{"1500ms", 1500 * time.Millisecond, false},
		{" 2s ", 2 * time.Second, false},
		{"-1", 0, true},
		{"-1s", 0, true},
		{"later", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDelay(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDelay(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseDelay(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Credentials.Password = "p"
	err := cfg.Validate()
	if !errors.Is(err, ErrMissing) {
		t.Fatalf("Validate() = %v, want ErrMissing", err)
	}
	for _, name := range []string{EnvUsername, EnvTOTPSecret} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("Validate() error %q does not name %s", err, name)
		}
	}
	if strings.Contains(err.Error(), EnvPassword) {
		t.Errorf("Validate() error %q names a variable that is set", err)
	}

	cfg.Credentials = Credentials{"u", "p", "s"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}

	cfg.MaxSteps = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() accepted zero max steps")
	}
}

func TestCredentialsRedacted(t *testing.T) {
	c := Credentials{Username: "svc", Password: "hunter2", TOTPSecret: "JBSWY3DPEHPK3PXP"}
	for _, s := range []string{fmt.Sprint(c), fmt.Sprintf("%+v", c), fmt.Sprintf("%#v", c)} {
		if strings.Contains(s, "hunter2") || strings.Contains(s, "JBSWY3DPEHPK3PXP") {
			t.Errorf("formatted credentials leak a secret: %s", s)
		}
		if !strings.Contains(s, "svc") {
			t.Errorf("formatted credentials lost the username: %s", s)
		}
	}
}
