package headers

import (
	"net/http"
	"strings"
)

// RequestContext carries the ambient values forward_request_headers in
// original_source needs beyond the header map itself.
type RequestContext struct {
	WithBody    bool
	LocalHost   string
	RemoteHost  string
	ExcludeHost bool

	ForwardCharset  bool
	ForwardEncoding bool
	ForwardRange    bool

	SessionCookieName string
	SessionLanguage   string
	SessionUser       string
}

// ForwardRequest builds the header set sent upstream from src, applying
// Settings per group.
func ForwardRequest(src http.Header, settings Settings, ctx RequestContext) http.Header {
	isUpgrade := ctx.WithBody && isUpgradeHeader(src)
	dest := http.Header{}
	foundAcceptCharset := false

	for name, values := range src {
		for _, value := range values {
			group := ClassifyRequestHeader(name, ctx.WithBody, isUpgrade)

			switch group {
			case GroupBasicAlways:
				dest.Add(name, value)
				continue
			case GroupSpecial:
				lower := strings.ToLower(name)
				switch {
				case lower == "host":
					if !ctx.ExcludeHost {
						dest.Add(name, value)
					}
					if settings.mode(GroupIdentity) == ModeMangle {
						dest.Add("X-Forwarded-Host", value)
					}
				case ctx.ForwardCharset && lower == "accept-charset":
					dest.Add(name, value)
					foundAcceptCharset = true
				case ctx.ForwardEncoding && lower == "accept-encoding":
					dest.Add(name, value)
				case ctx.SessionLanguage == "" && lower == "accept-language":
					dest.Add(name, value)
				case ctx.ForwardRange && (lower == "range" || isIfCacheHeader(lower)):
					dest.Add(name, value)
				}
				continue
			}

			mode := settings.mode(group)
			switch mode {
			case ModeNo, ModeMangle:
				continue
			case ModeBoth:
				if group == GroupCookie {
					if strings.EqualFold(name, "cookie2") {
						break
					}
					if strings.EqualFold(name, "cookie") {
						excluded := excludeCookie(value, ctx.SessionCookieName)
						if excluded == "" {
							continue
						}
						value = excluded
						break
					}
				}
				continue
			case ModeYes:
			}
			dest.Add(name, value)
		}
	}

	if !foundAcceptCharset {
		dest.Set("Accept-Charset", "utf-8")
	}
	if ctx.SessionLanguage != "" {
		dest.Set("Accept-Language", ctx.SessionLanguage)
	}
	if ctx.SessionUser != "" {
		dest.Set("X-Cm4all-Beng-User", ctx.SessionUser)
	}
	if settings.mode(GroupCapabilities) != ModeNo {
		forwardUserAgent(dest, src, settings.mode(GroupCapabilities) == ModeMangle)
	}
	if settings.mode(GroupIdentity) != ModeNo {
		mangle := settings.mode(GroupIdentity) == ModeMangle
		forwardVia(dest, src, ctx.LocalHost, mangle)
		forwardXFF(dest, src, ctx.RemoteHost, mangle)
	}

	return dest
}

// ResponseContext carries the ambient values forward_response_headers
// needs.
type ResponseContext struct {
	LocalHost         string
	SessionCookieName string
	// Relocate rewrites a Location/Content-Location value under
	// HeaderGroup::LINK Mangle mode; nil disables relocation.
	Relocate func(uri string) (string, bool)
}

// ForwardResponse builds the header set sent to the client from src.
func ForwardResponse(status int, src http.Header, settings Settings, ctx ResponseContext) http.Header {
	isUpgrade := isUpgradeStatus(status, src)
	dest := http.Header{}

	for name, values := range src {
		for _, value := range values {
			group := ClassifyResponseHeader(name, isUpgrade)
			if group == GroupBasicAlways {
				dest.Add(name, value)
				continue
			}
			if group == GroupSpecial {
				continue
			}

			mode := settings.mode(group)
			switch mode {
			case ModeNo:
				continue
			case ModeYes:
			case ModeBoth:
				if group == GroupCookie {
					if ctx.SessionCookieName == "" || !matchesSetCookieName(value, ctx.SessionCookieName) {
						break
					}
				}
				continue
			case ModeMangle:
				if ctx.Relocate != nil && group == GroupLink {
					if rewritten, ok := ctx.Relocate(value); ok {
						value = rewritten
						break
					}
				}
				continue
			}
			dest.Add(name, value)
		}
	}

	if settings.mode(GroupIdentity) != ModeNo {
		forwardVia(dest, src, ctx.LocalHost, settings.mode(GroupIdentity) == ModeMangle)
	}

	return dest
}

func forwardUserAgent(dest http.Header, src http.Header, mangle bool) {
	v := src.Get("User-Agent")
	if mangle || v == "" {
		v = "beng-proxy"
	}
	dest.Set("User-Agent", v)
}

// forwardVia implements the X-Forwarded-For/Via Open Question decision
// recorded in DESIGN.md: append this hop at the end of an existing chain
// (oldest-first), matching the original's p_strcat ordering.
func forwardVia(dest http.Header, src http.Header, localHost string, mangle bool) {
	existing := src.Get("Via")
	switch {
	case existing == "":
		if localHost != "" && mangle {
			dest.Set("Via", "1.1 "+localHost)
		}
	case localHost == "" || !mangle:
		dest.Set("Via", existing)
	default:
		dest.Set("Via", existing+", 1.1 "+localHost)
	}
}

func forwardXFF(dest http.Header, src http.Header, remoteHost string, mangle bool) {
	existing := src.Get("X-Forwarded-For")
	switch {
	case existing == "":
		if remoteHost != "" && mangle {
			dest.Set("X-Forwarded-For", remoteHost)
		}
	case remoteHost == "" || !mangle:
		dest.Set("X-Forwarded-For", existing)
	default:
		dest.Set("X-Forwarded-For", existing+", "+remoteHost)
	}
}

func excludeCookie(cookieHeader, sessionCookieName string) string {
	if sessionCookieName == "" {
		return cookieHeader
	}
	var kept []string
	for _, pair := range strings.Split(cookieHeader, ";") {
		trimmed := strings.TrimSpace(pair)
		name, _, _ := strings.Cut(trimmed, "=")
		if strings.EqualFold(strings.TrimSpace(name), sessionCookieName) {
			continue
		}
		kept = append(kept, trimmed)
	}
	return strings.Join(kept, "; ")
}

func matchesSetCookieName(setCookie, name string) bool {
	rest, ok := strings.CutPrefix(setCookie, name)
	if !ok {
		return false
	}
	if rest == "" {
		return true
	}
	c := rest[0]
	return !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9')
}

func isUpgradeHeader(h http.Header) bool {
	return strings.Contains(strings.ToLower(h.Get("Connection")), "upgrade") && h.Get("Upgrade") != ""
}

func isUpgradeStatus(status int, h http.Header) bool {
	return status == http.StatusSwitchingProtocols && isUpgradeHeader(h)
}
