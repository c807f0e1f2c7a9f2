package sso

import (
	"context"
	"net/url"
	"strings"
	"time"
)

// Action performs the work for one recognized page. It reports whether the
// final submit or click went through.
type Action func(ctx context.Context, d *Driver) (bool, error)

// Rule recognizes one page variant. All conditions must hold; empty
// conditions are ignored.
type Rule struct {
	State PageState

	// Host is a prefix one DNS label of the URL host must start with.
	// "okta" matches okta.com, okta-emea.com and oktapreview.com.
	Host string

	TextAll  []string // every string must appear in the page text
	TextAny  []string // at least one must appear
	TextNone []string // none may appear

	// Selector must match an element. It is checked last, and only when
	// the other conditions hold.
	Selector string

	// Action is run when the rule wins. Nil means wait for the next step.
	Action Action

	// SettleAfter is how many settle delays follow a successful Action.
	// Zero means one.
	SettleAfter int
}

// ExistsFunc reports whether selector matches an element on the page.
type ExistsFunc func(ctx context.Context, selector string) (bool, error)

func (r *Rule) matches(ctx context.Context, labels []string, text string, exists ExistsFunc) (bool, error) {
	if r.Host != "" && !hasLabel(labels, r.Host) {
		return false, nil
	}
	for _, s := range r.TextAll {
		if !strings.Contains(text, s) {
			return false, nil
		}
	}
	if len(r.TextAny) > 0 && !containsAny(text, r.TextAny) {
		return false, nil
	}
	if containsAny(text, r.TextNone) {
		return false, nil
	}
	if r.Selector == "" {
		return true, nil
	}
	if exists == nil {
		return false, nil
	}
	return exists(ctx, r.Selector)
}

func containsAny(text string, subs []string) bool {
	for _, s := range subs {
		if strings.Contains(text, s) {
			return true
		}
	}
	return false
}

func hasLabel(labels []string, want string) bool {
	for _, l := range labels {
		if strings.HasPrefix(l, want) {
			return true
		}
	}
	return false
}

// hostLabels returns the lower-cased DNS labels of the URL's host.
func hostLabels(rawURL string) []string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return nil
	}
	return strings.Split(strings.ToLower(u.Hostname()), ".")
}

// Flow holds the page rules and the selectors, texts and timeouts the
// actions use.
type Flow struct {
	// Rules are tried in order; the first match wins.
	Rules []Rule

	UsernameField  string
	UsernameSubmit string
	PasswordField  string
	PasswordSubmit string
	CodeField      string
	CodeSubmit     string

	CodeMarker   string // text shown on the code entry page
	SelectFactor string // heading of the factor list

	// The factor switch is tied to the provider's current UI: when
	// DefaultFactor is shown without CodeMarker, the action clicks
	// ChangeFactor and then DesiredFactor.
	DefaultFactor string
	ChangeFactor  string
	DesiredFactor string

	UsernameTimeout time.Duration
	PasswordTimeout time.Duration
	CodeTimeout     time.Duration
	PageLoadTimeout time.Duration

	// FillPause separates filling a field from submitting it.
	FillPause time.Duration
}

// DefaultFlow returns the Okta to OneLogin flow with a Google Authenticator
// code as second factor.
func DefaultFlow() Flow {
	f := Flow{
		UsernameField:  `input[name="identifier"], input[name="username"]`,
		UsernameSubmit: `input[type="submit"], button[type="submit"]`,
		PasswordField:  `input[name="password"], input#password`,
		PasswordSubmit: `button[type="submit"]`,
		CodeField:      `input#security-code, input[name="otp"], input[type="tel"]`,
		CodeSubmit:     `button[type="submit"]`,

		CodeMarker:    "Enter your code",
		SelectFactor:  "Select Authentication Factor",
		DefaultFactor: "YubiKey",
		ChangeFactor:  "Change Authentication Factor",
		DesiredFactor: "Google Authenticator",

		UsernameTimeout: 10 * time.Second,
		PasswordTimeout: 30 * time.Second,
		CodeTimeout:     30 * time.Second,
		PageLoadTimeout: 30 * time.Second,
		FillPause:       time.Second,
	}
	f.Rules = []Rule{
		{State: TotpEntry, Host: "onelogin", TextAll: []string{f.CodeMarker}, Action: CodeEntry, SettleAfter: 2},
		{State: MfaSelectionDefault, Host: "onelogin", TextAll: []string{f.DefaultFactor}, TextAny: []string{f.SelectFactor, f.ChangeFactor}, Action: FactorSelection},
		{State: MfaSelectionDefault, Host: "onelogin", TextAll: []string{f.DefaultFactor, f.DesiredFactor}, Action: FactorSelection},
		{State: MfaSelectionGoogleAuth, Host: "onelogin", TextAll: []string{f.SelectFactor}, Action: FactorSelection},
		{State: OneLoginPasswordEntry, Host: "onelogin", Selector: f.PasswordField, Action: PasswordEntry},
		{State: Unknown, Host: "onelogin"},
		{State: OktaUsernameEntry, Host: "okta", Selector: f.UsernameField, Action: UsernameEntry},
		{State: OktaRedirect, Host: "okta"},
	}
	return f
}

// WithComplete returns a copy of f that reports Complete, ahead of every
// other rule, when the page text contains any of markers.
func (f Flow) WithComplete(markers ...string) Flow {
	var nonEmpty []string
	for _, m := range markers {
		if m != "" {
			nonEmpty = append(nonEmpty, m)
		}
	}
	if len(nonEmpty) == 0 {
		return f
	}
	rules := make([]Rule, 0, len(f.Rules)+1)
	rules = append(rules, Rule{State: Complete, TextAny: nonEmpty})
	f.Rules = append(rules, f.Rules...)
	return f
}

// Match returns the first rule that matches the page, or nil. exists is
// consulted only for rules that name a selector.
func (f *Flow) Match(ctx context.Context, rawURL, text string, exists ExistsFunc) (*Rule, error) {
	labels := hostLabels(rawURL)
	for i := range f.Rules {
		ok, err := f.Rules[i].matches(ctx, labels, text, exists)
		if err != nil {
			return nil, err
		}
		if ok {
			return &f.Rules[i], nil
		}
	}
	return nil, nil
}

// Classify returns the state of the page with the given URL and text.
func (f *Flow) Classify(ctx context.Context, rawURL, text string, exists ExistsFunc) (PageState, error) {
	r, err := f.Match(ctx, rawURL, text, exists)
	if err != nil || r == nil {
		return Unknown, err
	}
	return r.State, nil
}
