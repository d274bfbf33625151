package storage

import "testing"

func TestTokenCipherRoundTrip(t *testing.T) {
	cipher, err := NewTokenCipher([]byte("passphrase"), []byte("0123456789abcdef"))
	if err != nil {
		t.Fatalf("failed to build cipher: %v", err)
	}

	sealed, err := cipher.Encrypt("my-bearer-token")
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if !IsSealed(sealed) {
		t.Errorf("sealed value missing prefix: %q", sealed)
	}

	plain, err := cipher.Decrypt(sealed)
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	if plain != "my-bearer-token" {
		t.Errorf("round trip mismatch: %q", plain)
	}

	// Each encryption uses a fresh nonce
	sealed2, _ := cipher.Encrypt("my-bearer-token")
	if sealed == sealed2 {
		t.Error("two encryptions of the same token must differ")
	}
}

func TestTokenCipherWrongKey(t *testing.T) {
	cipher1, _ := NewTokenCipher([]byte("right"), []byte("0123456789abcdef"))
	cipher2, _ := NewTokenCipher([]byte("wrong"), []byte("0123456789abcdef"))

	sealed, err := cipher1.Encrypt("token")
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}

	if _, err := cipher2.Decrypt(sealed); err == nil {
		t.Error("decrypting with the wrong key must fail")
	}
}

func TestIsSealed(t *testing.T) {
	if IsSealed("plain-token") {
		t.Error("plaintext mistaken for sealed")
	}
	if !IsSealed("enc:v1:abcd") {
		t.Error("sealed value not recognized")
	}
}
