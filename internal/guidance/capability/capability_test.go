package capability

import "testing"

func testClock() Clock {
	t := int64(1000)
	return func() int64 {
		t += 10
		return t
	}
}

func TestRestrictProducesSubset(t *testing.T) {
	a := New(testClock())
	root := a.Grant(GrantParams{
		Scope: ScopeTool, Resource: "Bash", Actions: []string{"read", "write", "exec"},
		GrantedTo: "agent-a", Delegatable: true,
	})

	narrowed, err := a.Restrict(root.ID, Restriction{Actions: []string{"read"}})
	if err != nil {
		t.Fatal(err)
	}
	if !IsSubset(narrowed, root) {
		t.Fatal("expected restrict() to produce a subset of the original")
	}
}

func TestDelegationIsSubset(t *testing.T) {
	a := New(testClock())
	root := a.Grant(GrantParams{
		Scope: ScopeMemory, Resource: "*", Actions: []string{"read", "write"},
		GrantedTo: "agent-a", Delegatable: true,
	})

	child, err := a.Delegate(root.ID, "agent-b", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !IsSubset(child, root) {
		t.Fatal("expected delegated capability to be a subset of its parent")
	}
}

func TestRevocationCascades(t *testing.T) {
	a := New(testClock())
	root := a.Grant(GrantParams{
		Scope: ScopeTool, Resource: "*", Actions: []string{"exec"},
		GrantedTo: "agent-a", Delegatable: true,
	})
	child, err := a.Delegate(root.ID, "agent-b", nil)
	if err != nil {
		t.Fatal(err)
	}
	grandchild, err := a.Delegate(child.ID, "agent-c", nil)
	if err != nil {
		t.Fatal(err)
	}

	if err := a.Revoke(root.ID); err != nil {
		t.Fatal(err)
	}

	rootAfter, _ := a.Get(root.ID)
	childAfter, _ := a.Get(child.ID)
	grandchildAfter, _ := a.Get(grandchild.ID)

	if !rootAfter.Revoked || !childAfter.Revoked || !grandchildAfter.Revoked {
		t.Fatalf("expected cascade revoke, got root=%v child=%v grandchild=%v",
			rootAfter.Revoked, childAfter.Revoked, grandchildAfter.Revoked)
	}
}

func TestDelegateRequiresDelegatable(t *testing.T) {
	a := New(testClock())
	root := a.Grant(GrantParams{
		Scope: ScopeTool, Resource: "*", Actions: []string{"exec"},
		GrantedTo: "agent-a", Delegatable: false,
	})
	if _, err := a.Delegate(root.ID, "agent-b", nil); err != ErrNotDelegatable {
		t.Fatalf("expected ErrNotDelegatable, got %v", err)
	}
}

func TestComposeRequiresMatchingScope(t *testing.T) {
	a := New(testClock())
	c1 := a.Grant(GrantParams{Scope: ScopeTool, Resource: "Bash", Actions: []string{"exec"}, GrantedTo: "a"})
	c2 := a.Grant(GrantParams{Scope: ScopeFile, Resource: "Bash", Actions: []string{"exec"}, GrantedTo: "a"})
	if _, err := a.Compose(c1.ID, c2.ID); err != ErrScopeMismatch {
		t.Fatalf("expected ErrScopeMismatch, got %v", err)
	}
}

func TestCapabilityDelegationAndCascadeRevokeCheck(t *testing.T) {
	a := New(testClock())
	root := a.Grant(GrantParams{
		Scope: ScopeTool, Resource: "Bash", Actions: []string{"exec"},
		GrantedTo: "agent-a", Delegatable: true,
	})
	child, err := a.Delegate(root.ID, "agent-b", nil)
	if err != nil {
		t.Fatal(err)
	}

	if !a.Check("agent-b", ScopeTool, "Bash", "exec", CheckContext{Now: 2000}) {
		t.Fatal("expected check to allow before revocation")
	}

	if err := a.Revoke(root.ID); err != nil {
		t.Fatal(err)
	}

	if a.Check("agent-b", ScopeTool, "Bash", "exec", CheckContext{Now: 2000}) {
		t.Fatalf("expected check to deny after cascade revoke, child=%+v", child)
	}
}
