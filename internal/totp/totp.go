// Package totp produces time-based one-time codes for the MFA step.
package totp

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

var (
	// ErrEmptyCode is returned when the generator printed nothing.
	ErrEmptyCode = errors.New("totp: empty code")

	// ErrMalformedCode is returned when the generator output is not a
	// numeric code.
	ErrMalformedCode = errors.New("totp: code is not numeric")
)

// Provider returns the current code for a shared secret.
type Provider interface {
	Code(ctx context.Context, secret string) (string, error)
}

// Command runs an external generator. The key argument is "-" and the
// secret is written to standard input, keeping it out of the process list.
// The code is read from standard output.
type Command struct {
	Path string   // default "oathtool"
	Args []string // default --totp -b
}

// Oathtool returns a Command running oathtool found at path.
func Oathtool(path string) *Command {
	if path == "" {
		path = "oathtool"
	}
	return &Command{Path: path, Args: []string{"--totp", "-b"}}
}

func (c *Command) Code(ctx context.Context, secret string) (string, error) {
	path := c.Path
	args := c.Args
	if path == "" {
		d := Oathtool("")
		path, args = d.Path, d.Args
	}
	cmd := exec.CommandContext(ctx, path, append(append([]string(nil), args...), "-")...)
	cmd.Stdin = strings.NewReader(secret + "\n")
	out, err := cmd.Output()
	if err != nil {
		// Report the exit status only; stderr may echo the secret.
		return "", fmt.Errorf("totp: run %s: %w", path, err)
	}
	return Parse(string(out))
}

// Parse validates generator output and returns the trimmed code.
func Parse(out string) (string, error) {
	code := strings.TrimSpace(out)
	if code == "" {
		return "", ErrEmptyCode
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return "", ErrMalformedCode
		}
	}
	return code, nil
}
