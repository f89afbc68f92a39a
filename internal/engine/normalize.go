package engine

import (
	"net/url"
	"strings"
)

// NormalizeMediaURL canonicalizes a clip media URL: everything after the
// first ".mp4" segment (format-negotiation suffixes, query strings) is cut
// and the canonical extension re-appended. The same clip served with
// different suffixes therefore dedups to one ledger entry.
//
// Returns ok=false for empty, non-.mp4 or unparsable input; such items are
// never delivered.
func NormalizeMediaURL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	i := strings.Index(raw, ".mp4")
	if i < 0 {
		return "", false
	}
	out := raw[:i] + ".mp4"
	u, err := url.Parse(out)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	return out, true
}
