package accounts

import (
	"net/url"
	"strings"
)

// Policy decides where an account's surface may navigate. Anything outside
// the service and auth domains belongs in the user's real browser.
type Policy struct {
	ServiceDomain string
	AuthDomain    string

	// Markers for the re-authentication heuristic. A URL on the auth domain
	// containing SigninMarker but not OAuthMarker is an interactive sign-in
	// form rather than an automated redirect.
	SigninMarker string
	OAuthMarker  string
}

// Allows reports whether address may be opened inside the surface.
// Only https URLs on exactly the service or auth host are permitted.
func (p Policy) Allows(address string) bool {
	u, err := url.Parse(address)
	if err != nil || u.Scheme != "https" || u.User != nil {
		return false
	}
	if u.Port() != "" && u.Port() != "443" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host != "" && (host == strings.ToLower(p.ServiceDomain) || host == strings.ToLower(p.AuthDomain))
}

// IsSigninPrompt is a best-effort guess that address is an interactive
// sign-in page. It can be wrong in both directions.
func (p Policy) IsSigninPrompt(address string) bool {
	u, err := url.Parse(address)
	if err != nil || !strings.EqualFold(u.Hostname(), p.AuthDomain) {
		return false
	}
	lower := strings.ToLower(address)
	if p.OAuthMarker != "" && strings.Contains(lower, strings.ToLower(p.OAuthMarker)) {
		return false
	}
	marker := p.SigninMarker
	if marker == "" {
		marker = "signin"
	}
	return strings.Contains(lower, strings.ToLower(marker))
}
