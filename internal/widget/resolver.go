package widget

import "context"

// StaticResolver resolves widget classes from a fixed table loaded at
// startup. The wire-protocol layer doesn't yet model the original's
// WIDGET_TYPE translation opcode, so this is the
// resolver cmd/beng-proxy wires in rather than a live round trip; a
// future CmdWidgetType addition would slot in behind the same
// ClassResolver interface without touching the composer.
type StaticResolver map[string]*Class

// Resolve implements ClassResolver.
func (r StaticResolver) Resolve(ctx context.Context, className string) (*Class, error) {
	c, ok := r[className]
	if !ok {
		return nil, nil
	}
	return c, nil
}
