package credential

import (
	"bytes"
	"testing"
)

// Cheap parameters keep the suite fast; the algorithm is the same.
var testParams = Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32}

func TestHashAndVerify(t *testing.T) {
	codec := NewCodec(testParams)

	cred, err := codec.Hash("correct horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if len(cred.Salt) != SaltSize {
		t.Fatalf("expected %d byte salt, got %d", SaltSize, len(cred.Salt))
	}
	if !codec.Verify("correct horse", cred.Digest, cred.Salt) {
		t.Fatal("expected password to verify")
	}
	if codec.Verify("wrong horse", cred.Digest, cred.Salt) {
		t.Fatal("expected wrong password to fail")
	}
}

func TestHashUsesFreshSalt(t *testing.T) {
	codec := NewCodec(testParams)

	a, err := codec.Hash("same")
	if err != nil {
		t.Fatalf("hash a: %v", err)
	}
	b, err := codec.Hash("same")
	if err != nil {
		t.Fatalf("hash b: %v", err)
	}
	if bytes.Equal(a.Salt, b.Salt) {
		t.Fatal("expected distinct salts")
	}
	if bytes.Equal(a.Digest, b.Digest) {
		t.Fatal("expected distinct digests")
	}
}

func TestVerifyCorruptedDigest(t *testing.T) {
	codec := NewCodec(testParams)
	cred, err := codec.Hash("pw")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	if codec.Verify("pw", cred.Digest[:10], cred.Salt) {
		t.Fatal("truncated digest must not verify")
	}
	if codec.Verify("pw", nil, cred.Salt) {
		t.Fatal("empty digest must not verify")
	}
	if codec.Verify("pw", cred.Digest, nil) {
		t.Fatal("empty salt must not verify")
	}
}

func TestHashRejectsEmptyPassword(t *testing.T) {
	var codec Codec
	if _, err := codec.Hash(""); err != ErrEmptyPassword {
		t.Fatalf("expected ErrEmptyPassword, got %v", err)
	}
}
