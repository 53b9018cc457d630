package kernel

import "testing"

func TestContentHashStableAcrossFieldOrder(t *testing.T) {
	a := map[string]interface{}{"b": 2, "a": 1}
	b := map[string]interface{}{"a": 1, "b": 2}

	ha, err := ContentHash(a)
	if err != nil {
		t.Fatal(err)
	}
	hb, err := ContentHash(b)
	if err != nil {
		t.Fatal(err)
	}
	if ha != hb {
		t.Fatalf("expected equal hashes for equivalent content, got %x vs %x", ha, hb)
	}
}

func TestContentHashDiffersOnDifferentContent(t *testing.T) {
	ha, _ := ContentHash(map[string]interface{}{"a": 1})
	hb, _ := ContentHash(map[string]interface{}{"a": 2})
	if ha == hb {
		t.Fatal("expected different hashes for different content")
	}
}

func TestDetectDestructive(t *testing.T) {
	cases := []struct {
		cmd  string
		want DestructiveKind
		ok   bool
	}{
		{"rm -rf /", DestructiveRMRF, true},
		{"rm -rf /home/user", DestructiveRMRF, true},
		{"ls -la", "", false},
		{"DROP TABLE users;", DestructiveDropTable, true},
		{"git push --force origin main", DestructiveForcePush, true},
		{"dd if=/dev/zero of=/dev/sda", DestructiveDDDevice, true},
	}
	for _, c := range cases {
		kind, ok := DetectDestructive(c.cmd)
		if ok != c.ok || kind != c.want {
			t.Errorf("DetectDestructive(%q) = (%q, %v), want (%q, %v)", c.cmd, kind, ok, c.want, c.ok)
		}
	}
}

func TestScanSecretsNeverReturnsMatchedText(t *testing.T) {
	text := `api_key = "sk-abc123456789012345678901234567890"`
	kinds := ScanSecrets(text)
	if len(kinds) == 0 {
		t.Fatal("expected at least one secret kind")
	}
	for _, k := range kinds {
		if string(k) == text {
			t.Fatal("secret kind must never equal the matched text")
		}
	}
}

func TestBridgesAgree(t *testing.T) {
	var native Bridge = NativeBridge{}
	var fallback Bridge = FallbackBridge{}

	if native.SHA256([]byte("x")) != fallback.SHA256([]byte("x")) {
		t.Fatal("SHA256 mismatch between bridges")
	}
	if native.HMACSHA256([]byte("k"), []byte("x")) != fallback.HMACSHA256([]byte("k"), []byte("x")) {
		t.Fatal("HMACSHA256 mismatch between bridges")
	}
	hn, _ := native.ContentHash(map[string]interface{}{"a": 1})
	hf, _ := fallback.ContentHash(map[string]interface{}{"a": 1})
	if hn != hf {
		t.Fatal("ContentHash mismatch between bridges")
	}
}

func TestDeriveDelegationKeyDeterministic(t *testing.T) {
	root := []byte("root-secret-material")
	k1, err := DeriveDelegationKey(root, "child-1")
	if err != nil {
		t.Fatal(err)
	}
	k2, err := DeriveDelegationKey(root, "child-1")
	if err != nil {
		t.Fatal(err)
	}
	if string(k1) != string(k2) {
		t.Fatal("expected deterministic derivation for the same child ID")
	}
	k3, _ := DeriveDelegationKey(root, "child-2")
	if string(k1) == string(k3) {
		t.Fatal("expected different derived keys for different child IDs")
	}
}
