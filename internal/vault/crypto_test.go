package vault

import (
	"bytes"
	"testing"
)

func TestEncryptDecrypt(t *testing.T) {
	key := []byte("thisis32byteslongsecretkey123456") // 32 bytes for AES-256
	plaintext := []byte(`[{"type":"INCOME","amount":"12.50"}]`)

	blob, err := Encrypt(plaintext, key)
	if err != nil {
		t.Fatalf("Encryption failed: %v", err)
	}

	if bytes.Contains([]byte(blob), plaintext) {
		t.Fatal("Blob should not contain the plaintext")
	}

	decrypted, err := Decrypt(blob, key)
	if err != nil {
		t.Fatalf("Decryption failed: %v", err)
	}

	if !bytes.Equal(decrypted, plaintext) {
		t.Errorf("Expected %s, got %s", plaintext, decrypted)
	}
}

func TestEncryptUsesFreshNonce(t *testing.T) {
	key := []byte("thisis32byteslongsecretkey123456")
	a, _ := Encrypt([]byte("same"), key)
	b, _ := Encrypt([]byte("same"), key)
	if a == b {
		t.Fatal("Two encryptions of the same plaintext should differ")
	}
}

func TestDecryptWithWrongKey(t *testing.T) {
	key1 := []byte("thisis32byteslongsecretkey123456")
	key2 := []byte("another32byteslongsecretkey65432")

	blob, err := Encrypt([]byte("Secret message"), key1)
	if err != nil {
		t.Fatalf("Encryption failed: %v", err)
	}

	_, err = Decrypt(blob, key2)
	if err != ErrTampered {
		t.Fatalf("Expected ErrTampered, got %v", err)
	}
}

func TestDecryptTampered(t *testing.T) {
	key := []byte("thisis32byteslongsecretkey123456")
	blob, _ := Encrypt([]byte("ledger"), key)

	// Flip the last hex digit.
	last := blob[len(blob)-1]
	flipped := byte('0')
	if last == '0' {
		flipped = '1'
	}
	tampered := blob[:len(blob)-1] + string(flipped)

	if _, err := Decrypt(tampered, key); err == nil {
		t.Fatal("Decryption of tampered blob should fail")
	}
}

func TestInvalidKeySize(t *testing.T) {
	invalidKey := []byte("shortkey")

	_, err := Encrypt([]byte("test"), invalidKey)
	if err == nil {
		t.Fatal("Encryption should fail with invalid key size")
	}

	_, err = Decrypt("0123456789abcdef", invalidKey)
	if err == nil {
		t.Fatal("Decryption should fail with invalid key size")
	}
}

func TestDecryptMalformedHex(t *testing.T) {
	key := []byte("thisis32byteslongsecretkey123456")
	_, err := Decrypt("not-hex", key)
	if err == nil {
		t.Fatal("Decryption should fail with malformed hex")
	}
}

func TestDecryptTooShort(t *testing.T) {
	key := []byte("thisis32byteslongsecretkey123456")
	_, err := Decrypt("abcdef", key)
	if err == nil {
		t.Fatal("Decryption should fail with too short ciphertext")
	}
}

func TestDeriveKey(t *testing.T) {
	k1, err := DeriveKey([]byte("app-secret"), "wallet")
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}
	if len(k1) != KeySize {
		t.Fatalf("Expected %d byte key, got %d", KeySize, len(k1))
	}

	k2, _ := DeriveKey([]byte("app-secret"), "wallet")
	if !bytes.Equal(k1, k2) {
		t.Error("DeriveKey should be deterministic")
	}

	k3, _ := DeriveKey([]byte("app-secret"), "other")
	if bytes.Equal(k1, k3) {
		t.Error("Different info should yield different keys")
	}

	if _, err := DeriveKey(nil, "wallet"); err == nil {
		t.Error("Empty secret should be rejected")
	}
}
