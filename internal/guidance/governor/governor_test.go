package governor

import "testing"

func TestAlertThresholds(t *testing.T) {
	g := New(map[Dimension]float64{DimTokens: 100}, Rates{})
	alerts := g.RecordUsage(DimTokens, 76)
	if len(alerts) != 1 || alerts[0].Fraction < 0.75 {
		t.Fatalf("expected a 75%% alert, got %+v", alerts)
	}
}

func TestBudgetExceededMessage(t *testing.T) {
	g := New(map[Dimension]float64{DimTokens: 100}, Rates{})
	g.RecordUsage(DimTokens, 99)
	alerts := g.RecordUsage(DimTokens, 2)
	found := false
	for _, a := range alerts {
		if a.Fraction >= 1.0 {
			found = true
			if a.Message != "tokens: BUDGET EXCEEDED" {
				t.Fatalf("unexpected message: %s", a.Message)
			}
		}
	}
	if !found {
		t.Fatal("expected a 100% alert")
	}
	if g.WithinBudget() {
		t.Fatal("expected WithinBudget false once a dimension is exceeded")
	}
}

func TestFirstExceeded(t *testing.T) {
	g := New(map[Dimension]float64{DimTokens: 10, DimToolCalls: 10}, Rates{})
	g.RecordUsage(DimToolCalls, 11)
	d, ok := g.FirstExceeded()
	if !ok || d != DimToolCalls {
		t.Fatalf("expected DimToolCalls exceeded, got %v %v", d, ok)
	}
}

func TestResetPeriod(t *testing.T) {
	g := New(map[Dimension]float64{DimTokens: 10}, Rates{})
	g.RecordUsage(DimTokens, 5)
	g.ResetPeriod()
	snap := g.Snapshot()
	if snap[DimTokens].Used != 0 {
		t.Fatalf("expected usage reset to 0, got %f", snap[DimTokens].Used)
	}
	if snap[DimTokens].Limit != 10 {
		t.Fatal("expected limit preserved across reset")
	}
}

func TestParseQuantity(t *testing.T) {
	v, err := ParseQuantity("64Mi")
	if err != nil {
		t.Fatal(err)
	}
	if v <= 0 {
		t.Fatalf("expected positive byte value, got %f", v)
	}
}
