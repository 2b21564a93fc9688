package storage

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncryptDecryptSecret(t *testing.T) {
	t.Parallel()
	key := bytes.Repeat([]byte{7}, 32)

	for _, plaintext := range []string{"", "nsec1abc", "key!@#$%^&*(){}[]|:;<>?,./~`"} {
		enc, err := EncryptSecret(plaintext, key)
		if err != nil {
			t.Fatalf("EncryptSecret(%q) error = %v", plaintext, err)
		}
		dec, err := DecryptSecret(enc, key)
		if err != nil {
			t.Fatalf("DecryptSecret() error = %v", err)
		}
		if dec != plaintext {
			t.Errorf("round trip = %q, want %q", dec, plaintext)
		}
	}
}

func TestEncryptSecret_NonceIsRandom(t *testing.T) {
	t.Parallel()
	key := bytes.Repeat([]byte{1}, 32)

	a, _ := EncryptSecret("same", key)
	b, _ := EncryptSecret("same", key)
	if bytes.Equal(a, b) {
		t.Errorf("two encryptions of the same value should differ")
	}
}

func TestDecryptSecret_Failures(t *testing.T) {
	t.Parallel()
	key := bytes.Repeat([]byte{1}, 32)
	other := bytes.Repeat([]byte{2}, 32)
	enc, _ := EncryptSecret("value", key)

	tests := []struct {
		name string
		data []byte
		key  []byte
		want error
	}{
		{name: "wrong key", data: enc, key: other, want: ErrDecryption},
		{name: "not hex", data: []byte("zz"), key: key, want: ErrDecryption},
		{name: "too short", data: []byte("abcd"), key: key, want: ErrDecryption},
		{name: "bad key size", data: enc, key: []byte("short"), want: ErrInvalidKey},
	}
	for _, tt := range tests {
		if _, err := DecryptSecret(tt.data, tt.key); !errors.Is(err, tt.want) {
			t.Errorf("%s: error = %v, want %v", tt.name, err, tt.want)
		}
	}
}

func TestHashKeyVerifyKey(t *testing.T) {
	t.Parallel()
	hash, err := HashKey("operator-token")
	if err != nil {
		t.Fatalf("HashKey() error = %v", err)
	}
	if err := VerifyKey("operator-token", hash); err != nil {
		t.Errorf("VerifyKey() with correct token error = %v", err)
	}
	if err := VerifyKey("wrong", hash); err == nil {
		t.Errorf("VerifyKey() with wrong token should fail")
	}
}
