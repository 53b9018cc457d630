package coherence

import "testing"

func TestComputeCoherenceWeighting(t *testing.T) {
	s := New(DefaultConfig(), nil)
	score := s.ComputeCoherence(1000, Metrics{ViolationRate: 0, ReworkLines: 0}, nil, 20)
	if score.Overall != 1.0 {
		t.Fatalf("expected overall 1.0 with no violations/rework/events, got %f", score.Overall)
	}
}

func TestComputeCoherenceDegradesWithViolations(t *testing.T) {
	s := New(DefaultConfig(), nil)
	score := s.ComputeCoherence(1000, Metrics{ViolationRate: 10, ReworkLines: 0}, nil, 20)
	if score.ViolationComponent != 0 {
		t.Fatalf("expected violation component clamped to 0, got %f", score.ViolationComponent)
	}
}

func TestPrivilegeMapping(t *testing.T) {
	cases := []struct {
		score float64
		want  Privilege
	}{
		{0.95, PrivilegeFull},
		{0.7, PrivilegeFull},
		{0.6, PrivilegeRestricted},
		{0.4, PrivilegeReadOnly},
		{0.1, PrivilegeSuspended},
	}
	for _, c := range cases {
		if got := PrivilegeFor(c.score); got != c.want {
			t.Errorf("PrivilegeFor(%f) = %q, want %q", c.score, got, c.want)
		}
	}
}

func TestEscalationAllowed(t *testing.T) {
	if EscalationAllowed(0.9) {
		t.Fatal("expected 0.9 to not permit escalation (strictly greater than required)")
	}
	if !EscalationAllowed(0.95) {
		t.Fatal("expected 0.95 to permit escalation")
	}
}

func TestHistoryBounded(t *testing.T) {
	s := New(DefaultConfig(), nil)
	for i := 0; i < 150; i++ {
		s.ComputeCoherence(int64(i), Metrics{}, nil, 20)
	}
	if len(s.History()) != 100 {
		t.Fatalf("expected history capped at 100, got %d", len(s.History()))
	}
}

func TestRecommendationsEmittedWhenComponentLow(t *testing.T) {
	s := New(DefaultConfig(), nil)
	score := s.ComputeCoherence(1000, Metrics{ViolationRate: 9, ReworkLines: 90}, nil, 20)
	if len(score.Recommendations) == 0 {
		t.Fatal("expected recommendations when components are below 0.5")
	}
}
