package webhook

import "testing"

func TestVerifySignature(t *testing.T) {
	secret := "s"
	body := []byte(`{}`)
	good := Sign(secret, body)

	if !VerifySignature(secret, body, good) {
		t.Error("valid signature rejected")
	}
	if VerifySignature(secret, body, "deadbeef") {
		t.Error("wrong signature accepted")
	}
	if VerifySignature(secret, body, "not-hex") {
		t.Error("non-hex signature accepted")
	}
	if VerifySignature("other-secret", body, good) {
		t.Error("signature valid under the wrong secret")
	}
	if VerifySignature(secret, []byte(`{"a":1}`), good) {
		t.Error("signature valid over a different body")
	}
}

func TestSignIsLowercaseHex(t *testing.T) {
	sig := Sign("secret", []byte("payload"))
	if len(sig) != 64 {
		t.Fatalf("signature length = %d; want 64 hex chars for SHA-256", len(sig))
	}
	for _, r := range sig {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			t.Fatalf("signature contains non lowercase-hex rune %q", r)
		}
	}
}
