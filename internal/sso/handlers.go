package sso

import (
	"context"
	"strings"
)

// UsernameEntry fills the identifier field and submits it.
func UsernameEntry(ctx context.Context, d *Driver) (bool, error) {
	f, log := &d.Flow, d.logger()
	log.Info("entering username")

	ok, err := d.Page.WaitForElement(ctx, f.UsernameField, f.UsernameTimeout)
	if err != nil || !ok {
		return false, err
	}
	return d.fillAndSubmit(ctx, f.UsernameField, d.Credentials.Username, f.UsernameSubmit)
}

// PasswordEntry waits for the password page to render, then fills the
// password and submits it.
func PasswordEntry(ctx context.Context, d *Driver) (bool, error) {
	f, log := &d.Flow, d.logger()
	log.Info("entering password")

	loaded, err := d.Page.WaitForPageLoad(ctx, f.PageLoadTimeout)
	if err != nil {
		return false, err
	}
	if !loaded {
		log.Warn("page may not have finished loading")
	}
	if err := d.settle(ctx, 1); err != nil {
		return false, err
	}

	ok, err := d.Page.WaitForElement(ctx, f.PasswordField, f.PasswordTimeout)
	if err != nil || !ok {
		return false, err
	}
	return d.fillAndSubmit(ctx, f.PasswordField, d.Credentials.Password, f.PasswordSubmit)
}

// FactorSelection switches away from the default factor if it is the one
// offered, then picks the desired factor.
func FactorSelection(ctx context.Context, d *Driver) (bool, error) {
	f, log := &d.Flow, d.logger()
	log.Info("selecting MFA factor", "factor", f.DesiredFactor)

	if err := d.settle(ctx, 1); err != nil {
		return false, err
	}
	text, err := d.Page.Text(ctx)
	if err != nil {
		return false, err
	}
	if strings.Contains(text, f.DefaultFactor) && !strings.Contains(text, f.CodeMarker) {
		log.Info("changing authentication factor", "from", f.DefaultFactor)
		// Clicked even if its label is not in text; the outcome is
		// judged from the re-read below.
		if _, err := d.Page.ClickByText(ctx, f.ChangeFactor); err != nil {
			return false, err
		}
		if err := d.settle(ctx, 1); err != nil {
			return false, err
		}
		if text, err = d.Page.Text(ctx); err != nil {
			return false, err
		}
	}
	if !strings.Contains(text, f.DesiredFactor) {
		log.Info("desired factor not offered", "factor", f.DesiredFactor)
		return false, nil
	}
	return d.Page.ClickByText(ctx, f.DesiredFactor)
}

// CodeEntry waits for the code field, generates a code, fills it and
// submits it. The code is generated only once the field is present so it is
// as fresh as possible.
func CodeEntry(ctx context.Context, d *Driver) (bool, error) {
	f, log := &d.Flow, d.logger()
	log.Info("entering TOTP code")

	if err := d.settle(ctx, 1); err != nil {
		return false, err
	}
	ok, err := d.Page.WaitForElement(ctx, f.CodeField, f.CodeTimeout)
	if err != nil || !ok {
		return false, err
	}
	if d.TOTP == nil {
		log.Error("no TOTP provider configured")
		return false, nil
	}
	code, err := d.TOTP.Code(ctx, d.Credentials.TOTPSecret)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		log.Error("generating TOTP code", "error", err)
		return false, nil
	}
	log.Info("generated TOTP code", "digits", len(code))
	return d.fillAndSubmit(ctx, f.CodeField, code, f.CodeSubmit)
}

// fillAndSubmit fills field with value, pauses, and clicks submit. value is
// never logged.
func (d *Driver) fillAndSubmit(ctx context.Context, field, value, submit string) (bool, error) {
	log := d.logger()
	ok, err := d.Page.Fill(ctx, field, value)
	if err != nil || !ok {
		return false, err
	}
	log.Info("field filled", "selector", field)
	if err := d.sleep(ctx, d.Flow.FillPause); err != nil {
		return false, err
	}
	ok, err = d.Page.Click(ctx, submit)
	if err != nil {
		return false, err
	}
	if ok {
		log.Info("clicked submit")
	}
	return ok, nil
}
