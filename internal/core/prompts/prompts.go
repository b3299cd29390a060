// Package prompts renders the fixed texts shown around a conversation.
package prompts

import (
	"fmt"

	"github.com/cbroglie/mustache"
)

const DefaultWelcome = `{{#name}}Welcome, {{{name}}}! I'm your specialized AI assistant for Chelsea FC and Frontend Development.{{/name}}{{^name}}Hello! I'm your specialized AI assistant for Chelsea FC and Frontend Development.{{#free}} You have {{limit}} free messages per day.{{/free}}{{/name}} What would you like to know?`

const DefaultBanner = `{{#premium}}Premium User{{/premium}}{{^premium}}{{remaining}} free {{#one}}message{{/one}}{{^one}}messages{{/one}} left · {{count}}/{{limit}} messages used today · Reset at midnight{{/premium}}`

const DefaultUpgrade = `You've used all {{limit}} free messages for today. Upgrade to premium for unlimited access to our AI assistant, or run "pitchside login" to continue with your account.`

// Set holds the templates in use. Empty fields fall back to the defaults.
type Set struct {
	WelcomeTemplate string
	BannerTemplate  string
	UpgradeTemplate string
}

// Defaults returns the built-in templates
func Defaults() Set {
	return Set{WelcomeTemplate: DefaultWelcome, BannerTemplate: DefaultBanner, UpgradeTemplate: DefaultUpgrade}
}

// WelcomeData feeds the welcome template
type WelcomeData struct {
	Name  string
	Free  bool
	Limit int
}

// BannerData feeds the quota banner template
type BannerData struct {
	Count   int
	Limit   int
	Premium bool
}

// Welcome renders the first assistant line of a new chat
func (s Set) Welcome(d WelcomeData) string {
	return render(s.WelcomeTemplate, DefaultWelcome, map[string]any{
		"name":  d.Name,
		"free":  d.Free,
		"limit": d.Limit,
	})
}

// Banner renders the free-tier usage line
func (s Set) Banner(d BannerData) string {
	remaining := max(d.Limit-d.Count, 0)
	return render(s.BannerTemplate, DefaultBanner, map[string]any{
		"count":     d.Count,
		"limit":     d.Limit,
		"remaining": remaining,
		"one":       remaining == 1,
		"premium":   d.Premium,
	})
}

// Upgrade renders the text shown once the free quota is spent
func (s Set) Upgrade(limit int) string {
	return render(s.UpgradeTemplate, DefaultUpgrade, map[string]any{"limit": limit})
}

// Validate reports the first template that does not parse
func (s Set) Validate() error {
	for name, tmpl := range map[string]string{"welcome": s.WelcomeTemplate, "banner": s.BannerTemplate, "upgrade": s.UpgradeTemplate} {
		if tmpl == "" {
			continue
		}
		if _, err := mustache.ParseString(tmpl); err != nil {
			return fmt.Errorf("invalid %s template: %w", name, err)
		}
	}
	return nil
}

func render(tmpl, fallback string, data map[string]any) string {
	if tmpl == "" {
		tmpl = fallback
	}
	out, err := mustache.Render(tmpl, data)
	if err != nil {
		// Fall back to the built-in template if a custom one is broken
		out, _ = mustache.Render(fallback, data)
	}
	return out
}
