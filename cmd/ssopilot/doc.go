/*
ssopilot completes an Okta and OneLogin single sign-on in a browser that is
already running with remote debugging enabled, such as the browser a VPN
client opens for a SAML login inside a container.

It waits for the DevTools endpoint to list a page, attaches to it, and then
steps through the sign-in: username on Okta, password on OneLogin, switching
the MFA factor to Google Authenticator, and entering a TOTP code generated by
oathtool. Each step re-reads the page and decides what to do from its URL and
text, so pages may be skipped or repeated.

Usage:

	ssopilot [flags]

Environment:

	GP_USERNAME              username (required)
	GP_PASSWORD              password (required)
	GP_TOTP_SECRET           base32 TOTP secret (required)
	STEP_DELAY               settle delay after each step, seconds or a duration
	SSOPILOT_DEVTOOLS_URL    DevTools HTTP endpoint, default http://localhost:9222
	SSOPILOT_MAX_STEPS       step budget, default 10
	SSOPILOT_COMPLETE_TEXT   '|' separated texts that mean sign-in finished

Settings may also be kept in ~/.ssopilot/env or a file named with -env-file.
Variables already in the environment take precedence.

Flags:

	-devtools url             DevTools HTTP endpoint
	-max-steps n              step budget
	-delay d                  settle delay
	-read-timeout d           how long to wait for a DevTools result
	-discovery-attempts n     how many times to poll for a page
	-discovery-interval d     time between page polls
	-totp-cmd path            oathtool-compatible TOTP generator
	-complete-text list       texts that mean sign-in finished
	-env-file path            extra env file
	-debug                    debug logging

ssopilot exits 1 if configuration is missing, no page shows up, or the page
cannot be attached to. Otherwise it exits 0 once the step budget is used up,
the page goes away, or a completion text is seen.
*/
package main
