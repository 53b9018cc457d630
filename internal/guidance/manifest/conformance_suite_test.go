package manifest_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/marcus-qen/guidance/internal/guidance/manifest"
)

func TestConformance(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "admission conformance suite")
}

// goldenTrace is one built-in admission trace: a manifest plus the verdict
// every conforming implementation must reach.
type goldenTrace struct {
	name     string
	manifest manifest.Manifest
	wantValid bool
	wantAdmission manifest.AdmissionDecision
}

func digestOf(b byte) string {
	hex := make([]byte, 64)
	for i := range hex {
		hex[i] = "0123456789abcdef"[int(b)%16]
	}
	return "sha256:" + string(hex)
}

func baseManifest() manifest.Manifest {
	return manifest.Manifest{
		APIVersion: "agentic_cells.v0_1",
		CodeRef:    manifest.CodeRef{Digest: digestOf(1)},
		Budgets:    map[string]float64{"tokens": 500},
		ToolsAllowed: []string{"Read"},
		DataPolicy: manifest.DataPolicy{Sensitivity: "public"},
		WriteConfirmationRequired: true,
		CoherenceGateEnabled:      true,
		AntiHallucinationGateEnabled: true,
		TraceLevel:                "full",
	}
}

var goldenTraces = []goldenTrace{
	{
		name:     "valid operation admitted",
		manifest: baseManifest(),
		wantValid: true, wantAdmission: manifest.AdmissionAdmit,
	},
	{
		name: "destructive bash surface without confirmation reviewed or rejected",
		manifest: func() manifest.Manifest {
			m := baseManifest()
			m.ToolsAllowed = []string{"Bash"}
			m.WriteConfirmationRequired = false
			m.NeedsNativeThreads = true
			return m
		}(),
		wantValid: true, wantAdmission: manifest.AdmissionReview,
	},
	{
		name: "budget over cap rejected",
		manifest: func() manifest.Manifest {
			m := baseManifest()
			m.Budgets["tokens"] = 1_000_000
			return m
		}(),
		wantValid: false, wantAdmission: manifest.AdmissionReject,
	},
	{
		name: "wildcard network without bash rejected",
		manifest: func() manifest.Manifest {
			m := baseManifest()
			m.ToolPolicy.NetworkAllowlist = []string{"*"}
			return m
		}(),
		wantValid: false, wantAdmission: manifest.AdmissionReject,
	},
	{
		name: "memory write surface without confirmation flagged for review",
		manifest: func() manifest.Manifest {
			m := baseManifest()
			m.ToolsAllowed = []string{"Write", "Edit"}
			m.WriteMode = "overwrite"
			m.WriteConfirmationRequired = false
			m.AuthorityScopeIndex = 0.6
			return m
		}(),
		wantValid: true, wantAdmission: manifest.AdmissionReview,
	},
}

var _ = Describe("admission conformance", func() {
	caps := manifest.BudgetCaps{"tokens": 100_000}

	for _, tc := range goldenTraces {
		tc := tc
		It(tc.name, func() {
			res := manifest.Validate(tc.manifest, caps)
			Expect(res.Valid()).To(Equal(tc.wantValid))

			risk := manifest.RiskScore(tc.manifest)
			got := manifest.Admit(res.Valid(), risk)
			Expect(got).To(Equal(tc.wantAdmission))
		})
	}

	It("never admits an invalid manifest regardless of risk score (fail closed)", func() {
		Expect(manifest.Admit(false, 0)).To(Equal(manifest.AdmissionReject))
	})
})
