// Package nav implements the application-wide "from" query parameter scheme:
// back-links resolve their target from an untrusted from value, and outbound
// links carry the current page (or the origin of a multi-hop chain) forward.
package nav

import (
	"net/url"
	"strings"
)

// Param is the query parameter used for return navigation.
const Param = "from"

// ReturnPath resolves where a back action should go. The candidate is
// untrusted input; anything that is not a root-relative path (absent, empty,
// protocol-relative, absolute URL) yields the caller-supplied fallback.
// Path traversal and query content are intentionally left untouched.
func ReturnPath(from, fallback string) string {
	if !strings.HasPrefix(from, "/") {
		return fallback
	}
	if strings.HasPrefix(from, "//") {
		return fallback
	}
	return from
}

// currentReturnValue derives the value outgoing links should carry as from.
// When the current page itself was reached with a valid from, that origin is
// propagated forward so a multi-step flow returns to where it started rather
// than to the last hop.
func currentReturnValue(current string) string {
	u, err := url.Parse(current)
	if err != nil {
		return current
	}
	q := u.Query()
	if origin := q.Get(Param); origin != "" {
		if ReturnPath(origin, "") != "" {
			return origin
		}
	}
	// An invalid from is navigation plumbing, not page state; it must not be
	// re-embedded into the value carried forward.
	q.Del(Param)
	if encoded := q.Encode(); encoded != "" {
		return u.Path + "?" + encoded
	}
	return u.Path
}

// AnnotateHref appends from=<current return value> to a root-relative href.
// A destination that already declares its own from parameter wins over the
// automatic one and is returned unchanged, as is anything that fails to parse.
func AnnotateHref(href, current string) string {
	dest, err := url.Parse(href)
	if err != nil {
		return href
	}
	if dest.Query().Has(Param) {
		return href
	}

	sep := "?"
	if strings.Contains(href, "?") {
		sep = "&"
	}
	return href + sep + Param + "=" + url.QueryEscape(currentReturnValue(current))
}
