package sso

import (
	"context"
	"strings"
	"time"
)

// screen is one simulated page.
type screen struct {
	url      string
	text     string
	elements []string          // selectors that match something
	next     map[string]string // clicked selector or text -> next screen name
}

// fakePage is a small simulated browser: a set of named screens and a
// current one. Clicks listed in a screen's next map navigate.
type fakePage struct {
	screens map[string]*screen
	current string

	values map[string]string
	calls  []string
	probes int

	// urlErr is returned from the URL probe once probes reaches failAt.
	urlErr error
	failAt int
}

func newFakePage(start string, screens map[string]*screen) *fakePage {
	return &fakePage{screens: screens, current: start, values: map[string]string{}}
}

func (p *fakePage) cur() *screen { return p.screens[p.current] }

func (p *fakePage) has(selector string) bool {
	for _, e := range p.cur().elements {
		if e == selector {
			return true
		}
	}
	return false
}

func (p *fakePage) navigate(key string) {
	if next, ok := p.cur().next[key]; ok {
		p.current = next
	}
}

func (p *fakePage) URL(ctx context.Context) (string, error) {
	p.probes++
	if p.urlErr != nil && p.probes >= p.failAt {
		return "", p.urlErr
	}
	return p.cur().url, nil
}

func (p *fakePage) Text(ctx context.Context) (string, error) {
	return p.cur().text, nil
}

func (p *fakePage) Exists(ctx context.Context, selector string) (bool, error) {
	return p.has(selector), nil
}

func (p *fakePage) WaitForElement(ctx context.Context, selector string, timeout time.Duration) (bool, error) {
	p.calls = append(p.calls, "wait "+selector)
	return p.has(selector), nil
}

func (p *fakePage) WaitForPageLoad(ctx context.Context, timeout time.Duration) (bool, error) {
	return true, nil
}

func (p *fakePage) Fill(ctx context.Context, selector, value string) (bool, error) {
	p.calls = append(p.calls, "fill "+selector)
	if !p.has(selector) {
		return false, nil
	}
	p.values[selector] = value
	return true, nil
}

func (p *fakePage) Click(ctx context.Context, selector string) (bool, error) {
	p.calls = append(p.calls, "click "+selector)
	if !p.has(selector) {
		return false, nil
	}
	p.navigate(selector)
	return true, nil
}

func (p *fakePage) ClickByText(ctx context.Context, text string) (bool, error) {
	p.calls = append(p.calls, "click text "+text)
	if !strings.Contains(p.cur().text, text) {
		return false, nil
	}
	p.navigate(text)
	return true, nil
}

// clock records sleeps without waiting.
type clock struct{ slept []time.Duration }

func (c *clock) sleep(ctx context.Context, d time.Duration) error {
	c.slept = append(c.slept, d)
	return ctx.Err()
}

func (c *clock) total() time.Duration {
	var t time.Duration
	for _, d := range c.slept {
		t += d
	}
	return t
}
