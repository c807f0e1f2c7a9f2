package sso

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/tmc/ssopilot/internal/cdp"
	"github.com/tmc/ssopilot/internal/config"
	"github.com/tmc/ssopilot/internal/page"
	"github.com/tmc/ssopilot/internal/totp"
)

// Reason says why a run ended.
type Reason string

const (
	ReasonExhausted   Reason = "exhausted"    // step budget used up
	ReasonChannelLost Reason = "channel-lost" // page probes failed
	ReasonComplete    Reason = "complete"     // a completion marker was seen
	ReasonCanceled    Reason = "canceled"
)

// Result summarizes a run.
type Result struct {
	Steps   int
	Reason  Reason
	Visited []PageState
}

// Driver runs the classify and act loop against one page.
type Driver struct {
	Page        Page
	Flow        Flow
	Credentials config.Credentials
	TOTP        totp.Provider

	// SettleDelay is waited after every step.
	SettleDelay time.Duration
	MaxSteps    int

	Sleep  page.Sleep // default cdp.Sleep
	Logger *slog.Logger
}

func (d *Driver) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (d *Driver) sleep(ctx context.Context, dur time.Duration) error {
	if d.Sleep != nil {
		return d.Sleep(ctx, dur)
	}
	return cdp.Sleep(ctx, dur)
}

func (d *Driver) settle(ctx context.Context, n int) error {
	return d.sleep(ctx, time.Duration(n)*d.SettleDelay)
}

// Run drives the page until the step budget is used up, the page can no
// longer be probed, a completion marker shows up, or ctx is done.
//
// Failed actions do not end the run; the next step classifies the page
// again. The returned error is non-nil only if the Driver is misconfigured
// or ctx was canceled.
func (d *Driver) Run(ctx context.Context) (Result, error) {
	var res Result
	if d.Page == nil {
		return res, errors.New("sso: driver has no page")
	}
	if d.MaxSteps < 1 {
		return res, errors.New("sso: MaxSteps must be at least 1")
	}
	log := d.logger()

	for step := 1; step <= d.MaxSteps; step++ {
		res.Steps = step

		rule, err := d.classify(ctx, step)
		if err == nil {
			err = d.step(ctx, &res, rule)
		}
		if err != nil {
			return d.stop(ctx, res, err)
		}
		if res.Reason == ReasonComplete {
			log.Info("sign-in complete", "steps", step)
			return res, nil
		}
	}
	res.Reason = ReasonExhausted
	log.Info("step budget used up", "steps", res.Steps)
	return res, nil
}

// classify probes the page and returns the winning rule, or nil.
func (d *Driver) classify(ctx context.Context, step int) (*Rule, error) {
	rawURL, err := d.Page.URL(ctx)
	if err != nil {
		return nil, err
	}
	text, err := d.Page.Text(ctx)
	if err != nil {
		return nil, err
	}
	d.logger().Info("step", "n", step, "of", d.MaxSteps, "url", truncate(rawURL, 80), "text", truncate(text, 100))
	return d.Flow.Match(ctx, rawURL, text, d.Page.Exists)
}

// step runs the action for rule, if any, and waits for the page to settle.
func (d *Driver) step(ctx context.Context, res *Result, rule *Rule) error {
	log := d.logger()
	state := Unknown
	if rule != nil {
		state = rule.State
	}
	res.Visited = append(res.Visited, state)
	if state == Complete {
		res.Reason = ReasonComplete
		return nil
	}

	settles := 1
	switch {
	case rule == nil || rule.Action == nil:
		log.Info("waiting", "state", state.String())
	default:
		ok, err := rule.Action(ctx, d)
		if err != nil {
			return err
		}
		log.Info("action finished", "state", state.String(), "ok", ok)
		if ok && rule.SettleAfter > 1 {
			settles = rule.SettleAfter
		}
	}
	return d.settle(ctx, settles)
}

func (d *Driver) stop(ctx context.Context, res Result, err error) (Result, error) {
	if ctx.Err() != nil {
		res.Reason = ReasonCanceled
		d.logger().Info("run canceled", "steps", res.Steps)
		return res, ctx.Err()
	}
	res.Reason = ReasonChannelLost
	d.logger().Warn("could not read page, assuming the channel is lost", "error", err)
	return res, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
