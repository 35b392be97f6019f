package widget

import "testing"

func TestInitApprovalNoGroupsAllowsAnyChild(t *testing.T) {
	parent := &Class{Name: "shell"}
	if got := InitApproval(parent, "anything", false); got != ApprovalGiven {
		t.Fatalf("got %v, want ApprovalGiven", got)
	}
}

func TestInitApprovalNilParentAllowsWithoutSelfContainer(t *testing.T) {
	if got := InitApproval(nil, "anything", false); got != ApprovalGiven {
		t.Fatalf("got %v, want ApprovalGiven", got)
	}
}

func TestInitApprovalNilParentSelfContainerDenies(t *testing.T) {
	if got := InitApproval(nil, "anything", true); got != ApprovalDenied {
		t.Fatalf("got %v, want ApprovalDenied", got)
	}
}

func TestInitApprovalSelfContainerSameClassAllows(t *testing.T) {
	parent := &Class{Name: "gallery"}
	if got := InitApproval(parent, "gallery", true); got != ApprovalGiven {
		t.Fatalf("got %v, want ApprovalGiven", got)
	}
}

func TestInitApprovalSelfContainerDifferentClassNoGroupsDenies(t *testing.T) {
	parent := &Class{Name: "gallery"}
	if got := InitApproval(parent, "other", true); got != ApprovalDenied {
		t.Fatalf("got %v, want ApprovalDenied", got)
	}
}

func TestInitApprovalDefersWhenGroupsPresent(t *testing.T) {
	parent := &Class{Name: "shell", PermittedGroups: []string{"trusted"}}
	if got := InitApproval(parent, "other", false); got != ApprovalUnknown {
		t.Fatalf("got %v, want ApprovalUnknown", got)
	}
	if got := InitApproval(parent, "shell", true); got != ApprovalUnknown {
		t.Fatalf("self-container with groups still defers: got %v", got)
	}
}

func TestFinalizeApprovalPassesThroughDecidedValues(t *testing.T) {
	if got := FinalizeApproval(ApprovalGiven, nil, nil); got != ApprovalGiven {
		t.Fatalf("got %v, want ApprovalGiven", got)
	}
	if got := FinalizeApproval(ApprovalDenied, nil, nil); got != ApprovalDenied {
		t.Fatalf("got %v, want ApprovalDenied", got)
	}
}

func TestFinalizeApprovalGroupMatch(t *testing.T) {
	parent := &Class{PermittedGroups: []string{"trusted", "partners"}}
	child := &Class{Group: "partners"}
	if got := FinalizeApproval(ApprovalUnknown, parent, child); got != ApprovalGiven {
		t.Fatalf("got %v, want ApprovalGiven", got)
	}
}

func TestFinalizeApprovalGroupMismatch(t *testing.T) {
	parent := &Class{PermittedGroups: []string{"trusted"}}
	child := &Class{Group: "untrusted"}
	if got := FinalizeApproval(ApprovalUnknown, parent, child); got != ApprovalDenied {
		t.Fatalf("got %v, want ApprovalDenied", got)
	}
}

func TestFinalizeApprovalNilChildDenied(t *testing.T) {
	parent := &Class{PermittedGroups: []string{"trusted"}}
	if got := FinalizeApproval(ApprovalUnknown, parent, nil); got != ApprovalDenied {
		t.Fatalf("got %v, want ApprovalDenied", got)
	}
}

func TestCheckHostTrust(t *testing.T) {
	cases := []struct {
		name        string
		requestHost string
		child       *Class
		want        bool
	}{
		{"trusted class, any host", "www.example.com", &Class{}, true},
		{"untrusted class, matching host", "admin.example.com", &Class{UntrustedHost: "admin.example.com"}, true},
		{"untrusted class, other host", "www.example.com", &Class{UntrustedHost: "admin.example.com"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CheckHostTrust(tc.requestHost, tc.child); got != tc.want {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}
