// Package page reads and manipulates the page behind a DevTools connection.
//
// Every operation is a single script evaluation or a bounded poll of one.
// Values that end up inside scripts are always encoded as string literals.
//
// Operations return a non-nil error only when the channel is gone or the
// context is done. A missing element, a script that failed, or a result of
// the wrong type is reported as false or "".
package page

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/tmc/ssopilot/internal/cdp"
)

// Sleep waits for d or until ctx is done.
type Sleep func(ctx context.Context, d time.Duration) error

// Prober runs page operations through an Evaluator.
type Prober struct {
	eval     cdp.Evaluator
	interval time.Duration
	sleep    Sleep
	logger   *slog.Logger
}

// Option configures a Prober.
type Option func(*Prober)

// WithInterval sets the polling interval of the Wait operations.
func WithInterval(d time.Duration) Option {
	return func(p *Prober) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithSleep replaces the function used to wait between polls.
func WithSleep(s Sleep) Option {
	return func(p *Prober) {
		if s != nil {
			p.sleep = s
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Prober) {
		if l != nil {
			p.logger = l
		}
	}
}

// New returns a Prober that polls once a second.
func New(eval cdp.Evaluator, opts ...Option) *Prober {
	p := &Prober{
		eval:     eval,
		interval: time.Second,
		sleep:    cdp.Sleep,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Prober) str(ctx context.Context, script string) (string, error) {
	v, err := p.eval.Evaluate(ctx, script)
	if err != nil {
		return "", err
	}
	s, _ := v.AsString()
	return s, nil
}

func (p *Prober) truth(ctx context.Context, script string) (bool, error) {
	v, err := p.eval.Evaluate(ctx, script)
	if err != nil {
		return false, err
	}
	return v.IsTrue(), nil
}

// URL returns the address of the current document.
func (p *Prober) URL(ctx context.Context) (string, error) {
	return p.str(ctx, urlScript)
}

// Text returns the rendered text of the document body.
func (p *Prober) Text(ctx context.Context) (string, error) {
	return p.str(ctx, textScript)
}

// Title returns the document title.
func (p *Prober) Title(ctx context.Context) (string, error) {
	return p.str(ctx, titleScript)
}

// Exists reports whether selector matches an element.
func (p *Prober) Exists(ctx context.Context, selector string) (bool, error) {
	return p.truth(ctx, existsScript(selector))
}

// poll evaluates cond up to timeout/interval times (at least once),
// sleeping between attempts but not after the last.
func (p *Prober) poll(ctx context.Context, timeout time.Duration, cond func() (bool, error)) (bool, error) {
	attempts := int(timeout / p.interval)
	if attempts < 1 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		ok, err := cond()
		if err != nil || ok {
			return ok, err
		}
		if i == attempts-1 {
			break
		}
		if err := p.sleep(ctx, p.interval); err != nil {
			return false, err
		}
	}
	return false, nil
}

// WaitForElement polls until selector matches an element or timeout
// elapses. False means the element never showed up, whether or not the page
// navigated away in the meantime.
func (p *Prober) WaitForElement(ctx context.Context, selector string, timeout time.Duration) (bool, error) {
	ok, err := p.poll(ctx, timeout, func() (bool, error) {
		return p.Exists(ctx, selector)
	})
	if err == nil && !ok {
		p.logger.Debug("element did not appear", "selector", selector, "timeout", timeout)
	}
	return ok, err
}

// WaitForPageLoad polls until the application root has non-trivial
// content. It is a heuristic; true does not guarantee the page is usable.
func (p *Prober) WaitForPageLoad(ctx context.Context, timeout time.Duration) (bool, error) {
	return p.poll(ctx, timeout, func() (bool, error) {
		v, err := p.eval.Evaluate(ctx, rootLengthScript)
		if err != nil {
			return false, err
		}
		n, _ := v.AsNumber()
		return n > RootContentThreshold, nil
	})
}

// Fill sets the value of the element matching selector and fires input and
// change events on it so script-driven forms see the new value. It reports
// false if no element matches.
func (p *Prober) Fill(ctx context.Context, selector, value string) (bool, error) {
	ok, err := p.truth(ctx, fillScript(selector, value))
	if err == nil {
		p.logger.Debug("fill", "selector", selector, "ok", ok)
	}
	return ok, err
}

// Click activates the element matching selector.
func (p *Prober) Click(ctx context.Context, selector string) (bool, error) {
	ok, err := p.truth(ctx, clickScript(selector))
	if err == nil {
		p.logger.Debug("click", "selector", selector, "ok", ok)
	}
	return ok, err
}

// ClickByText activates the first element in Clickable whose text contains
// text. The match is case-sensitive.
func (p *Prober) ClickByText(ctx context.Context, text string) (bool, error) {
	ok, err := p.truth(ctx, clickByTextScript(Clickable, text))
	if err == nil {
		p.logger.Debug("click by text", "text", text, "ok", ok)
	}
	return ok, err
}
