package oidcauth

import (
	"net/url"
	"strings"
)

// SafeReferrer reduces a pre-login referrer to a redirect target that is safe
// to honour after login. Only same-origin or path-only referrers survive; an
// absolute URL pointing at another scheme, host or port is never honoured. A
// referrer pointing at the callback path itself would loop, so it defaults to
// the application root.
func SafeReferrer(referrer string, appBaseURL *url.URL, callbackPath string) string {
	target := relativeTarget(referrer, appBaseURL)
	if target == "" || target == callbackPath || strings.HasPrefix(target, callbackPath+"?") {
		return "/"
	}
	return target
}

func relativeTarget(referrer string, appBaseURL *url.URL) string {
	if referrer == "" {
		return ""
	}

	// Protocol-relative URLs ("//evil.example/x") parse as relative but
	// navigate off-site.
	if strings.HasPrefix(referrer, "//") {
		return ""
	}

	parsed, err := url.Parse(referrer)
	if err != nil {
		return ""
	}

	if parsed.IsAbs() {
		if parsed.Scheme != appBaseURL.Scheme || parsed.Host != appBaseURL.Host {
			return ""
		}
		return requestURI(parsed)
	}

	if !strings.HasPrefix(parsed.Path, "/") {
		return ""
	}
	return requestURI(parsed)
}

func requestURI(u *url.URL) string {
	uri := u.Path
	if uri == "" {
		uri = "/"
	}
	if u.RawQuery != "" {
		uri += "?" + u.RawQuery
	}
	return uri
}

// SafePostLogoutRedirect returns the referrer when it shares the portal's
// origin, otherwise the portal base URL. Used for the identity provider's
// post_logout_redirect_uri, which must stay same-origin.
func SafePostLogoutRedirect(referrer string, appBaseURL *url.URL) string {
	if referrer != "" {
		parsed, err := url.Parse(referrer)
		if err == nil && parsed.IsAbs() &&
			parsed.Scheme == appBaseURL.Scheme && parsed.Host == appBaseURL.Host {
			return parsed.String()
		}
	}
	return appBaseURL.String()
}
