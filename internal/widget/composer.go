package widget

import (
	"bytes"
	"context"
	"time"

	"golang.org/x/net/html"

	"github.com/danielloader/beng-proxy/internal/resource"
	"github.com/danielloader/beng-proxy/internal/session"
)

// inlineDeadline bounds how long the composer waits for one widget's
// sub-request before giving up.
const inlineDeadline = 10 * time.Second

// widgetElementName is the custom element the composer lowers (spec
// §4.8: "An inline <c:widget id="..." type="..."/> element").
const widgetElementName = "c:widget"

// ClassResolver looks up a widget class by name.
type ClassResolver interface {
	Resolve(ctx context.Context, className string) (*Class, error)
}

// Dispatcher issues the recursive sub-request for one widget instance
// and returns its response body. Implementations typically
// close over an orchestrator.Handler and construct a fresh Composer with
// ParentClass set to the class being dispatched, so a grandchild
// <c:widget/> nested in the response gets the right approval context.
type Dispatcher func(ctx context.Context, class *Class, state session.WidgetState, mode Mode) ([]byte, error)

// Composer lowers <c:widget/> elements found in a processed response
// body into spliced sub-responses. It satisfies orchestrator.Composer by
// structural typing — this package never imports internal/orchestrator,
// since the orchestrator is what invokes it.
type Composer struct {
	Resolver ClassResolver
	Dispatch Dispatcher

	// ParentClass is the class of the widget whose response is currently
	// being composed (nil at the page root), used for the approval check.
	ParentClass *Class

	// RequestHost is the beng-proxy vhost the inbound request arrived
	// on, used for the untrusted-host embedding check.
	RequestHost string

	// Sessions is not read by Compose: per-widget state goes through
	// Compose's sess argument, and a nil sess disables Stateful widgets'
	// state round-trip.
	Sessions *session.Store
}

// Compose implements the orchestrator.Composer contract.
func (c *Composer) Compose(ctx context.Context, body []byte, chain resource.Chain, widgetPath string, sess *session.Session) ([]byte, error) {
	container, selfContainer := containerOptions(chain)
	if !container {
		return body, nil
	}

	var out bytes.Buffer
	z := html.NewTokenizer(bytes.NewReader(body))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return out.Bytes(), nil

		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) != widgetElementName {
				out.Write(z.Raw())
				continue
			}

			attrs := map[string]string{}
			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				attrs[string(key)] = string(val)
			}

			replaced, err := c.composeOne(ctx, widgetPath, selfContainer, attrs, sess)
			if err != nil {
				return nil, err
			}
			out.Write(replaced)

			if tt == html.StartTagToken {
				skipToClosingTag(z, widgetElementName)
			}

		default:
			out.Write(z.Raw())
		}
	}
}

func (c *Composer) composeOne(ctx context.Context, widgetPath string, selfContainer bool, attrs map[string]string, sess *session.Session) ([]byte, error) {
	id := attrs["id"]
	className := attrs["type"]
	mode := ParseMode(attrs["mode"])
	childPath := widgetPath + "/" + id

	pending := InitApproval(c.ParentClass, className, selfContainer)

	class, err := c.Resolver.Resolve(ctx, className)
	if err != nil || class == nil {
		return []byte(forbiddenMarker(id)), nil
	}
	class.Name = className

	if !CheckHostTrust(c.RequestHost, class) {
		return []byte(forbiddenMarker(id)), nil
	}

	approval := FinalizeApproval(pending, c.ParentClass, class)
	if approval != ApprovalGiven {
		return []byte(forbiddenMarker(id)), nil
	}

	state := session.WidgetState{}
	if class.Stateful && sess != nil {
		state, _ = sess.WidgetState(childPath)
		if path, ok := attrs["path"]; ok {
			state.PathInfo = path
		}
		if query, ok := attrs["query"]; ok {
			state.QueryString = query
		}
		sess.SetWidgetState(childPath, state)
	}

	dctx, cancel := context.WithTimeout(ctx, inlineDeadline)
	defer cancel()

	respBody, err := c.Dispatch(dctx, class, state, mode)
	if err != nil {
		return []byte(forbiddenMarker(id)), nil
	}
	return respBody, nil
}

// forbiddenMarker is spliced in place of a widget whose embedding was
// denied.
func forbiddenMarker(id string) string {
	return "<!-- widget " + id + ": 403 Forbidden -->"
}

func containerOptions(chain resource.Chain) (container, selfContainer bool) {
	for _, t := range chain {
		if t.Kind == resource.TransformProcessXML || t.Kind == resource.TransformProcessCSS {
			if t.ProcessOptions.Container {
				container = true
			}
			if t.ProcessOptions.SelfContainer {
				selfContainer = true
			}
		}
	}
	return container, selfContainer
}

// skipToClosingTag discards tokens up to and including the matching end
// tag for name, so a <c:widget ...>...</c:widget> pair's original
// children never reach the output (the spliced sub-response replaces
// them entirely).
func skipToClosingTag(z *html.Tokenizer, name string) {
	depth := 1
	for depth > 0 {
		tt := z.Next()
		if tt == html.ErrorToken {
			return
		}
		tagName, _ := z.TagName()
		switch tt {
		case html.StartTagToken:
			if string(tagName) == name {
				depth++
			}
		case html.EndTagToken:
			if string(tagName) == name {
				depth--
			}
		}
	}
}
