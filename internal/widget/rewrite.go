package widget

import (
	"net/url"
	"strings"
)

// Mode chooses how a URI reference inside a processed response body is
// rewritten to keep re-targeting the same widget on click, ported
// from original_source's RewriteUriMode (src/widget/RewriteUri.cxx).
type Mode int

const (
	// ModeDirect leaves the URI untouched: a plain link out of the page.
	ModeDirect Mode = iota
	// ModeFocus encodes the widget path into the query so a click
	// re-targets the same widget.
	ModeFocus
	// ModePartial behaves like Focus but additionally keeps the outer
	// page frame around the widget's response.
	ModePartial
	// ModeResponse means the widget's own response becomes the entire
	// page; no outer document survives the rewrite.
	ModeResponse
)

// ParseMode maps the attribute value the original template syntax uses
// (ported from parse_uri_mode) onto a Mode, defaulting to Partial exactly
// as the original does for unrecognized values.
func ParseMode(s string) Mode {
	switch s {
	case "direct":
		return ModeDirect
	case "focus":
		return ModeFocus
	case "partial":
		return ModePartial
	case "response":
		return ModeResponse
	default:
		return ModePartial
	}
}

// focusQueryKey is the query parameter a Focus/Partial rewrite uses to
// carry the target widget's id path.
const focusQueryKey = "focus"

// frameQueryKey additionally marks a Partial rewrite so the outer page's
// frame is retained around the spliced response.
const frameQueryKey = "frame"

// Rewrite applies mode to uri, a reference found inside the body of the
// widget at widgetPath. ModeDirect returns
// uri unchanged; ModeResponse is meaningless for an href and also
// returns it unchanged, since it instead governs how the *current*
// widget's own response is delivered, not outbound links within it.
func Rewrite(mode Mode, widgetPath, uri string) string {
	if mode == ModeDirect || mode == ModeResponse {
		return uri
	}

	base, query, hasQuery := strings.Cut(uri, "?")
	values := url.Values{}
	if hasQuery {
		if parsed, err := url.ParseQuery(query); err == nil {
			values = parsed
		}
	}
	values.Set(focusQueryKey, widgetPath)
	if mode == ModePartial {
		values.Set(frameQueryKey, widgetPath)
	}

	return base + "?" + values.Encode()
}
