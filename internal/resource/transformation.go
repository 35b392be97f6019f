package resource

// TransformKind tags one node of a Transformation chain.
type TransformKind int

const (
	TransformProcessXML TransformKind = iota
	TransformProcessCSS
	TransformProcessText
	TransformFilter
)

// Transformation is a linked sequence applied to a response body; it is
// represented as a slice here rather than a hand-rolled linked list, since
// Go slices already give cheap prepend-free iteration and the original's
// pointer-chasing was a C memory-arena artifact.
type Transformation struct {
	Kind TransformKind

	ProcessOptions ProcessOptions // meaningful for ProcessXML/ProcessCSS
	Filter         *FilterNode    // meaningful for Filter
}

// ProcessOptions controls the XML/CSS template processor.
type ProcessOptions struct {
	// Container allows <c:widget/> elements to be lowered to sub-requests.
	Container bool
	// SelfContainer allows a widget to embed a widget of its own class.
	SelfContainer bool
}

// FilterNode wraps a sub-request resource address; each Filter is itself
// an HTTP sub-request whose body is the upstream response body.
type FilterNode struct {
	Address    Address
	RevealUser bool
}

// Chain is an ordered list of Transformations applied front-to-back.
type Chain []Transformation

// HasContainerProcessor reports whether any node in the chain enables
// widget lowering, used by the orchestrator to decide whether to invoke
// the widget composer at all.
func (c Chain) HasContainerProcessor() bool {
	for _, t := range c {
		if (t.Kind == TransformProcessXML || t.Kind == TransformProcessCSS) && t.ProcessOptions.Container {
			return true
		}
	}
	return false
}
