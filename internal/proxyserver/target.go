package proxyserver

import (
	"net/url"
	"strings"

	"github.com/mnemo-run/mnemo/internal/merrors"
)

// ResolveTarget implements UpstreamTarget::from_path (spec.md §4.11): given the raw path
// tail after "/p/" and the original request's query string, produce a validated upstream
// URL, or an error for the client to see: Config kind (400 invalid_url) for a bad URL,
// HostBlock kind (403 host_not_allowed) for a host outside the allowlist.
func ResolveTarget(rawTail string, requestQuery string, allowedHosts []string) (*url.URL, error) {
	decoded, err := url.PathUnescape(rawTail)
	if err != nil {
		return nil, merrors.New(merrors.Config, "malformed percent-encoding in passthrough path")
	}
	decoded = strings.TrimPrefix(decoded, "/")
	if decoded == "" {
		return nil, merrors.New(merrors.Config, "empty passthrough target")
	}

	// A client hitting /p/https:/example.com/foo (single slash after the scheme, common
	// when a client's own URL-joining collapses "//") should still resolve.
	if idx := strings.Index(decoded, ":/"); idx > 0 && !strings.HasPrefix(decoded[idx:], "://") {
		decoded = decoded[:idx+1] + "/" + decoded[idx+1:]
	}

	target, err := url.Parse(decoded)
	if err != nil {
		return nil, merrors.New(merrors.Config, "unparseable passthrough URL")
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, merrors.New(merrors.Config, "passthrough scheme must be http or https")
	}
	if target.Host == "" {
		return nil, merrors.New(merrors.Config, "passthrough URL is missing a host")
	}

	target.Fragment = ""
	target.User = nil

	if target.RawQuery == "" && requestQuery != "" {
		target.RawQuery = requestQuery
	}

	if !hostAllowed(target.Hostname(), allowedHosts) {
		return nil, merrors.New(merrors.HostBlock, "host "+target.Hostname()+" is not in the allowlist")
	}

	return target, nil
}

// hostAllowed matches spec.md §4.11's allowlist rule: empty list or a bare "*" entry
// allows all; an exact entry matches case-insensitively; a "*.suffix" entry matches
// suffix and any subdomain.
func hostAllowed(host string, allowedHosts []string) bool {
	if len(allowedHosts) == 0 {
		return true
	}
	host = strings.ToLower(host)
	for _, entry := range allowedHosts {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry == "" {
			continue
		}
		if entry == "*" {
			return true
		}
		if strings.HasPrefix(entry, "*.") {
			suffix := entry[2:]
			if host == suffix || strings.HasSuffix(host, "."+suffix) {
				return true
			}
			continue
		}
		if host == entry {
			return true
		}
	}
	return false
}
