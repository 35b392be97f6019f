// Package headers implements the header-forwarding classification table
// that decides which request/response headers cross the proxy boundary
// and how, adapted from original_source's
// ForwardHeaders.cxx.
package headers

import (
	"strings"
)

// Group is one of the classification buckets a header name is sorted
// into before its forwarding Mode is looked up.
type Group int

const (
	GroupBasicAlways Group = iota // always copied, no mode lookup (ALL in the original)
	GroupSpecial                   // handled by bespoke logic, never mode-driven (MAX in the original)
	GroupCookie
	GroupCORS
	GroupCapabilities
	GroupIdentity
	GroupLink
	GroupAuth
	GroupSSL
	GroupSecure
	GroupTransformation
	GroupOther
)

// Mode is the server-declared forwarding behavior for one Group (spec
// §4.7 step 6: "{No, Yes, Both, Mangle}").
type Mode int

const (
	ModeNo Mode = iota
	ModeYes
	ModeBoth
	ModeMangle
)

// Settings maps each real group to its forwarding mode; GroupBasicAlways
// and GroupSpecial are never looked up here since they bypass the mode
// switch entirely.
type Settings map[Group]Mode

func (s Settings) mode(g Group) Mode {
	if m, ok := s[g]; ok {
		return m
	}
	return ModeNo
}

var hopByHop = map[string]bool{
	"connection":          true,
	"keep-alive":          true,
	"proxy-authenticate":  true,
	"proxy-authorization": true,
	"te":                  true,
	"trailer":              true,
	"transfer-encoding":   true,
	"upgrade":             true,
}

func isHopByHop(name string) bool {
	return hopByHop[strings.ToLower(name)]
}

func isIfCacheHeader(name string) bool {
	name = strings.ToLower(name)
	rest, ok := strings.CutPrefix(name, "if-")
	if !ok {
		return false
	}
	switch rest {
	case "modified-since", "unmodified-since", "match", "none-match", "range":
		return true
	}
	return false
}

// ClassifyRequestHeader sorts one request header name into a Group (spec
// grounded on original_source's ClassifyRequestHeader).
func ClassifyRequestHeader(name string, withBody, isUpgrade bool) Group {
	lower := strings.ToLower(name)
	switch {
	case lower == "accept" || lower == "cache-control" || lower == "from":
		return GroupBasicAlways
	case lower == "accept-language" || lower == "accept-charset" || lower == "accept-encoding":
		return GroupSpecial
	case lower == "access-control-request-method" || lower == "access-control-request-headers":
		return GroupCORS
	case lower == "authorization":
		return GroupAuth
	case lower == "cookie" || lower == "cookie2":
		return GroupCookie
	case isBodyContentHeader(lower):
		if withBody {
			return GroupBasicAlways
		}
		return GroupSpecial
	case isIfCacheHeader(lower):
		return GroupSpecial
	case lower == "host" || lower == "range" || lower == "user-agent" || lower == "via":
		return GroupSpecial
	case lower == "origin":
		if isUpgrade {
			return GroupBasicAlways
		}
		return GroupCORS
	case lower == "referer":
		return GroupLink
	case isUpgrade && strings.HasPrefix(lower, "sec-websocket-"):
		return GroupBasicAlways
	case isUpgrade && lower == "upgrade":
		return GroupBasicAlways
	case lower == "x-cm4all-beng-peer-subject" || lower == "x-cm4all-beng-peer-issuer-subject":
		return GroupSSL
	case strings.HasPrefix(lower, "x-cm4all-beng-"):
		return GroupSecure
	case lower == "x-cm4all-https":
		return GroupSSL
	case lower == "x-cm4all-docroot":
		return GroupSpecial
	case lower == "x-forwarded-for":
		return GroupSpecial
	}

	if isHopByHop(lower) {
		return GroupSpecial
	}
	return GroupOther
}

func isBodyContentHeader(lower string) bool {
	rest, ok := strings.CutPrefix(lower, "content-")
	if !ok {
		return false
	}
	switch rest {
	case "encoding", "language", "md5", "range", "type", "disposition":
		return true
	}
	return false
}

// ClassifyResponseHeader sorts one response header name into a Group
// (grounded on original_source's ClassifyResponseHeader).
func ClassifyResponseHeader(name string, isUpgrade bool) Group {
	lower := strings.ToLower(name)
	switch {
	case lower == "accept-ranges" || lower == "age" || lower == "allow" ||
		lower == "etag" || lower == "expires" || lower == "last-modified" ||
		lower == "retry-after" || lower == "vary" || lower == "cache-control":
		return GroupBasicAlways
	case strings.HasPrefix(lower, "access-control-"):
		return GroupCORS
	case lower == "authentication-info" || lower == "www-authenticate":
		return GroupAuth
	case isBodyContentHeader(lower):
		return GroupBasicAlways
	case lower == "content-location" || lower == "location":
		return GroupLink
	case lower == "date" || lower == "via":
		return GroupSpecial
	case isUpgrade && (strings.HasPrefix(lower, "sec-websocket-") || lower == "upgrade"):
		return GroupBasicAlways
	case lower == "server":
		return GroupCapabilities
	case lower == "set-cookie" || lower == "set-cookie2":
		return GroupCookie
	case lower == "x-cm4all-beng-peer-subject" || lower == "x-cm4all-beng-peer-issuer-subject":
		return GroupOther
	case strings.HasPrefix(lower, "x-cm4all-beng-"):
		return GroupSecure
	case lower == "x-cm4all-https":
		return GroupSSL
	case lower == "x-cm4all-view":
		return GroupTransformation
	}

	if isHopByHop(lower) {
		return GroupSpecial
	}
	return GroupOther
}
