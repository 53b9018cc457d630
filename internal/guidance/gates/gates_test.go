package gates

import "testing"

func TestDestructiveCommandBlocked(t *testing.T) {
	g := New(Config{})
	results := g.EvaluateCommand("rm -rf /")
	found := false
	for _, r := range results {
		if r.GateName == "destructive-ops" && r.Decision == Block {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected destructive-ops block, got %+v", results)
	}
	if AggregateDecision(results) != Block {
		t.Fatal("expected aggregate decision block")
	}
}

func TestSecretInToolParameterBlocked(t *testing.T) {
	g := New(Config{ToolAllowlist: map[string]bool{"Write": true}})
	results := g.EvaluateToolUse("Write", map[string]string{
		"content": `api_key = "sk-abc123456789012345678901234567890"`,
	})
	found := false
	for _, r := range results {
		if r.GateName == "secret-scanner" && r.Decision == Block {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected secret-scanner block, got %+v", results)
	}
}

func TestToolAllowlistBlocksUnlisted(t *testing.T) {
	g := New(Config{ToolAllowlist: map[string]bool{"Read": true}})
	results := g.EvaluateToolUse("Write", map[string]string{})
	if AggregateDecision(results) != Block {
		t.Fatalf("expected block for unlisted tool, got %+v", results)
	}
}

func TestSensitiveToolRequiresConfirmation(t *testing.T) {
	g := New(Config{
		ToolAllowlist:  map[string]bool{"Bash": true},
		SensitiveTools: map[string]bool{"Bash": true},
	})
	results := g.EvaluateToolUse("Bash", map[string]string{})
	if AggregateDecision(results) != RequireConfirmation {
		t.Fatalf("expected require-confirmation, got %+v", results)
	}
}

func TestEditSizeGateThresholds(t *testing.T) {
	g := New(Config{})
	allow := g.editSizeGate("f.go", 50)
	warn := g.editSizeGate("f.go", 500)
	block := g.editSizeGate("f.go", 5000)

	if allow.Decision != Allow || warn.Decision != Warn || block.Decision != Block {
		t.Fatalf("unexpected decisions: %v %v %v", allow.Decision, warn.Decision, block.Decision)
	}
}

func TestAggregateDecisionMonotonicity(t *testing.T) {
	base := []GateResult{{GateName: "a", Decision: Allow}}
	if AggregateDecision(base) != Allow {
		t.Fatal("expected allow")
	}
	withWarn := append(base, GateResult{GateName: "b", Decision: Warn})
	if AggregateDecision(withWarn) != Warn {
		t.Fatal("expected warn to raise the aggregate")
	}
	withBlock := append(withWarn, GateResult{GateName: "c", Decision: Block})
	if AggregateDecision(withBlock) != Block {
		t.Fatal("expected block to raise the aggregate further")
	}
}
