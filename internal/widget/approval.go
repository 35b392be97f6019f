package widget

// Approval is a child widget's embedding decision,
// ported from original_source's Widget::Approval enum
// (src/widget/Approval.cxx): a two-phase check because the child's own
// class may not be known yet when the parent is first seen.
type Approval int

const (
	ApprovalUnknown Approval = iota
	ApprovalGiven
	ApprovalDenied
)

// InitApproval is the tentative decision made before the child's class
// has been resolved, ported from widget_init_approval. selfContainer is
// the parent document's explicit SELF_CONTAINER permission.
func InitApproval(parent *Class, childClassName string, selfContainer bool) Approval {
	if !selfContainer {
		if parent.HasGroups() {
			return ApprovalUnknown
		}
		return ApprovalGiven
	}

	if parent.HasGroups() {
		// the group allowlist applies even to a child of the parent's own class
		return ApprovalUnknown
	}

	if parent != nil && parent.Name != "" && parent.Name == childClassName {
		// approved by SELF_CONTAINER: parent embeds its own class
		return ApprovalGiven
	}

	// SELF_CONTAINER was asked for but doesn't apply, and the parent has
	// no group allowlist to fall back on.
	return ApprovalDenied
}

// FinalizeApproval resolves a pending ApprovalUnknown decision once the
// child's class is known, ported from widget_check_group_approval /
// widget_check_approval.
func FinalizeApproval(pending Approval, parent *Class, child *Class) Approval {
	if pending != ApprovalUnknown {
		return pending
	}
	if !parent.HasGroups() {
		return ApprovalGiven
	}
	if child == nil {
		return ApprovalDenied
	}
	if parent.MayEmbed(child.Group) {
		return ApprovalGiven
	}
	return ApprovalDenied
}

// CheckHostTrust reports whether a request arriving on requestHost may
// embed a widget declared with the given class.
func CheckHostTrust(requestHost string, child *Class) bool {
	if child.UntrustedHost == "" {
		// the child is trusted: anyone may embed it.
		return true
	}
	return requestHost == child.UntrustedHost
}
