// Package widget implements the inline widget composer:
// class resolution, embedding approval, session-backed state, and the
// <c:widget/> lowering step that splices a recursive sub-request's
// response into the page at the element's position. Grounded on
// original_source's src/widget/ (Approval.cxx, RewriteUri.cxx) and
// src/widget-class.h, adapted from the original's pool-allocated,
// pointer-chasing tree to plain Go values.
package widget

import (
	"github.com/danielloader/beng-proxy/internal/headers"
	"github.com/danielloader/beng-proxy/internal/resource"
)

// Class is a widget's server-side declaration, adapted from original_source's
// struct widget_class (widget-class.h).
type Class struct {
	Name    string
	Address resource.Address

	// Stateful mirrors widget_class::stateful: whether path-info/
	// query-string are remembered in the session across requests.
	Stateful bool

	// UntrustedHost is the beng-proxy hostname this widget may only be
	// requested through; empty means trusted (widget-class.h
	// untrusted_host: "If not set, then this is a trusted widget").
	UntrustedHost string

	// Group is the single permission group this class's instances
	// belong to (a simplification of the original's multi-group
	// widget_class_may_embed lookup).
	Group string

	// PermittedGroups, when non-empty, restricts which Group values a
	// child widget must carry to be approved under this class as a
	// container.
	PermittedGroups []string

	RequestHeaderForward  headers.Settings
	ResponseHeaderForward headers.Settings
}

// HasGroups reports whether this class restricts its children to a
// permitted-group allowlist, mirroring widget_class_has_groups.
func (c *Class) HasGroups() bool {
	return c != nil && len(c.PermittedGroups) > 0
}

// MayEmbed reports whether childGroup satisfies this class's permitted
// group set, mirroring widget_class_may_embed.
func (c *Class) MayEmbed(childGroup string) bool {
	if childGroup == "" {
		return false
	}
	for _, g := range c.PermittedGroups {
		if g == childGroup {
			return true
		}
	}
	return false
}
