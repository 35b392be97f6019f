package widget

import "testing"

func TestHasGroupsNilSafe(t *testing.T) {
	var c *Class
	if c.HasGroups() {
		t.Fatal("nil class must report no groups")
	}
}

func TestHasGroups(t *testing.T) {
	c := &Class{PermittedGroups: []string{"trusted"}}
	if !c.HasGroups() {
		t.Fatal("expected HasGroups true")
	}
}

func TestMayEmbed(t *testing.T) {
	c := &Class{PermittedGroups: []string{"trusted", "partners"}}
	if !c.MayEmbed("partners") {
		t.Fatal("expected partners permitted")
	}
	if c.MayEmbed("public") {
		t.Fatal("expected public not permitted")
	}
	if c.MayEmbed("") {
		t.Fatal("empty group must never match")
	}
}
