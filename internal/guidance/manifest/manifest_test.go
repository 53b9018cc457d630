package manifest

import "testing"

func validManifest() Manifest {
	return Manifest{
		APIVersion: "agentic_cells.v0_1",
		CodeRef:    CodeRef{Digest: "sha256:" + repeat("a", 64)},
		Budgets:    map[string]float64{"tokens": 1000},
		ToolsAllowed: []string{"Read", "Write"},
		ToolPolicy: ToolPolicy{NetworkAllowlist: []string{"api.example.com"}},
		DataPolicy: DataPolicy{Sensitivity: "internal", RetentionDays: 7},
		WriteConfirmationRequired: true,
		CoherenceGateEnabled:      true,
		TraceLevel:                "basic",
	}
}

func repeat(s string, n int) string {
	out := make([]byte, n)
	for i := range out {
		out[i] = s[0]
	}
	return string(out)
}

func TestValidManifestPasses(t *testing.T) {
	res := Validate(validManifest(), BudgetCaps{"tokens": 10000})
	if !res.Valid() {
		t.Fatalf("expected valid, got errors: %+v", res.Errors)
	}
}

func TestBadDigestRejected(t *testing.T) {
	m := validManifest()
	m.CodeRef.Digest = "sha256:not-hex"
	res := Validate(m, nil)
	if res.Valid() {
		t.Fatal("expected invalid")
	}
	if res.Errors[0].Code != ErrBadDigest {
		t.Fatalf("expected BAD_DIGEST, got %v", res.Errors[0].Code)
	}
}

func TestNegativeBudgetRejected(t *testing.T) {
	m := validManifest()
	m.Budgets["tokens"] = -1
	res := Validate(m, nil)
	if res.Valid() {
		t.Fatal("expected invalid")
	}
}

// TestWildcardNetworkRequiresBash covers the S4 scenario: a wildcard network
// allowlist entry without the Bash tool must fail closed with
// WILDCARD_NETWORK and an overall reject admission decision.
func TestWildcardNetworkRequiresBash(t *testing.T) {
	m := validManifest()
	m.ToolsAllowed = []string{"Read"}
	m.ToolPolicy.NetworkAllowlist = []string{"*.example.com"}

	res := Validate(m, nil)
	if res.Valid() {
		t.Fatal("expected invalid")
	}
	found := false
	for _, e := range res.Errors {
		if e.Code == ErrWildcardNetwork {
			found = true
		}
	}
	if !found {
		t.Fatal("expected WILDCARD_NETWORK error")
	}
	if Admit(res.Valid(), RiskScore(m)) != AdmissionReject {
		t.Fatal("expected admission reject (invariant 10: fail closed)")
	}
}

func TestWildcardNetworkAllowedWithBash(t *testing.T) {
	m := validManifest()
	m.ToolsAllowed = []string{"Read", "Bash"}
	m.ToolPolicy.NetworkAllowlist = []string{"*.example.com"}
	res := Validate(m, nil)
	if !res.Valid() {
		t.Fatalf("expected valid with Bash present, got %+v", res.Errors)
	}
}

func TestRegionOverlapRejected(t *testing.T) {
	m := validManifest()
	m.DataPolicy.AllowedRegions = []string{"eu-west-1"}
	m.DataPolicy.BlockedRegions = []string{"eu-west-1"}
	res := Validate(m, nil)
	if res.Valid() {
		t.Fatal("expected invalid")
	}
}

func TestRiskScoreMonotonicInToolRisk(t *testing.T) {
	low := validManifest()
	low.ToolsAllowed = []string{"Read"}
	low.ToolPolicy.NetworkAllowlist = nil

	high := validManifest()
	high.ToolsAllowed = []string{"Read", "Bash", "Task"}
	high.ToolPolicy.NetworkAllowlist = []string{"*.example.com"}

	if RiskScore(high) <= RiskScore(low) {
		t.Fatalf("expected higher tool surface to raise risk: low=%v high=%v", RiskScore(low), RiskScore(high))
	}
}

func TestAdmissionBands(t *testing.T) {
	cases := []struct {
		risk float64
		want AdmissionDecision
	}{
		{10, AdmissionAdmit},
		{50, AdmissionReview},
		{90, AdmissionReject},
	}
	for _, c := range cases {
		if got := Admit(true, c.risk); got != c.want {
			t.Errorf("risk %v: want %v, got %v", c.risk, c.want, got)
		}
	}
}

func TestInvalidManifestAlwaysRejectsRegardlessOfRisk(t *testing.T) {
	if Admit(false, 0) != AdmissionReject {
		t.Fatal("invariant 10: invalid manifest must reject even at zero risk")
	}
}

func TestSelectLaneNilWhenInvalid(t *testing.T) {
	if lane := SelectLane(false, 0, validManifest(), LaneConfig{MaxRiskScore: 100}); lane != nil {
		t.Fatal("expected nil lane on invalid manifest")
	}
}

func TestSelectLaneWASMWhenPortable(t *testing.T) {
	m := validManifest()
	m.PortabilityRequired = true
	lane := SelectLane(true, 10, m, LaneConfig{MaxRiskScore: 100})
	if lane == nil || *lane != LaneWASM {
		t.Fatalf("expected wasm lane, got %v", lane)
	}
}

func TestSelectLaneWASMWhenRiskExceedsCap(t *testing.T) {
	lane := SelectLane(true, 95, validManifest(), LaneConfig{MaxRiskScore: 80})
	if lane == nil || *lane != LaneWASM {
		t.Fatalf("expected wasm lane for over-cap risk, got %v", lane)
	}
}
