// Package sso walks a browser through an Okta to OneLogin sign-in.
//
// A Driver repeatedly reads the page URL and text, classifies the page with
// an ordered rule table (see Flow), runs the action attached to the winning
// rule, and waits for the page to settle. Page state is never cached: every
// step starts from fresh probes.
package sso

import (
	"context"
	"time"
)

// PageState is the classification of the page currently displayed.
type PageState int

const (
	Unknown PageState = iota
	OktaUsernameEntry
	OktaRedirect
	OneLoginPasswordEntry
	MfaSelectionDefault
	MfaSelectionGoogleAuth
	TotpEntry
	Complete
)

var stateNames = [...]string{
	Unknown:                "Unknown",
	OktaUsernameEntry:      "OktaUsernameEntry",
	OktaRedirect:           "OktaRedirect",
	OneLoginPasswordEntry:  "OneLoginPasswordEntry",
	MfaSelectionDefault:    "MfaSelectionDefault",
	MfaSelectionGoogleAuth: "MfaSelectionGoogleAuth",
	TotpEntry:              "TotpEntry",
	Complete:               "Complete",
}

func (s PageState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "PageState(?)"
	}
	return stateNames[s]
}

// Page is the set of page operations the step actions use. It is
// implemented by *page.Prober.
//
// Errors are reserved for a lost channel or a done context; everything else
// is reported through the boolean or an empty string.
type Page interface {
	URL(ctx context.Context) (string, error)
	Text(ctx context.Context) (string, error)
	Exists(ctx context.Context, selector string) (bool, error)
	WaitForElement(ctx context.Context, selector string, timeout time.Duration) (bool, error)
	WaitForPageLoad(ctx context.Context, timeout time.Duration) (bool, error)
	Fill(ctx context.Context, selector, value string) (bool, error)
	Click(ctx context.Context, selector string) (bool, error)
	ClickByText(ctx context.Context, text string) (bool, error)
}
