package gateway

import (
	"strings"
	"testing"
)

func TestPayloadCipherRoundTrip(t *testing.T) {
	c := NewPayloadCipher()
	plain := `{"cardNumber":"1111-1111-1111-1111","amount":10000}`

	enc, err := c.Encrypt(plain, "11111111-1111-4111-8111-111111111111", "dGVzdC1wZy1pdi0xMg")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if strings.ContainsAny(enc, "+/=") {
		t.Fatalf("ciphertext not raw base64url: %s", enc)
	}
	got, err := c.Decrypt(enc, "11111111-1111-4111-8111-111111111111", "dGVzdC1wZy1pdi0xMg")
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if got != plain {
		t.Fatalf("round trip mismatch: got=%s want=%s", got, plain)
	}
}

func TestPayloadCipherDeterministic(t *testing.T) {
	c := NewPayloadCipher()
	first, err := c.Encrypt("payload", "key", "")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	second, err := c.Encrypt("payload", "key", "")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if first != second {
		t.Fatalf("same key and iv should give same ciphertext: %s vs %s", first, second)
	}
}

func TestPayloadCipherWrongCredential(t *testing.T) {
	c := NewPayloadCipher()
	enc, err := c.Encrypt("payload", "right", "")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := c.Decrypt(enc, "wrong", ""); err == nil {
		t.Fatalf("expected authentication failure")
	}
}

func TestPayloadCipherEmptyCredentialUsesSimulationKey(t *testing.T) {
	c := NewPayloadCipher()
	enc, err := c.Encrypt("payload", "", "")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	got, err := c.Decrypt(enc, "", "")
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if got != "payload" {
		t.Fatalf("unexpected plaintext: %s", got)
	}
}

func TestPayloadCipherInvalidIVFallsBack(t *testing.T) {
	c := NewPayloadCipher()
	cases := []string{"not-base64!!", "dGVzdA", "dGVzdC1wZy1pdi0xMg=="}
	want, err := c.Encrypt("payload", "key", "")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	for _, iv := range cases[:2] {
		got, err := c.Encrypt("payload", "key", iv)
		if err != nil {
			t.Fatalf("encrypt iv=%q: %v", iv, err)
		}
		if got != want {
			t.Fatalf("iv=%q should fall back to the simulation iv", iv)
		}
	}

	padded, err := c.Encrypt("payload", "key", cases[2])
	if err != nil {
		t.Fatalf("encrypt padded iv: %v", err)
	}
	unpadded, err := c.Encrypt("payload", "key", "dGVzdC1wZy1pdi0xMg")
	if err != nil {
		t.Fatalf("encrypt unpadded iv: %v", err)
	}
	if padded != unpadded {
		t.Fatalf("padded and unpadded iv should decode the same")
	}
}

func TestPayloadCipherRejectsGarbage(t *testing.T) {
	c := NewPayloadCipher()
	if _, err := c.Decrypt("@@@", "key", ""); err == nil {
		t.Fatalf("expected encoding error")
	}
	if _, err := c.Decrypt("AAAA", "key", ""); err == nil {
		t.Fatalf("expected short ciphertext error")
	}
}
