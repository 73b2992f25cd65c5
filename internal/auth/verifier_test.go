package auth

import (
	"errors"
	"testing"
	"time"
)

func TestDevMode(t *testing.T) {
	v := &Verifier{Mode: "dev"}
	p, err := v.Verify("alice:operator")
	if err != nil || p.Subject != "alice" || !p.CanWrite() {
		t.Fatalf("got %+v %v", p, err)
	}
	p, err = v.Verify("bob:guest")
	if err != nil || p.Role != RoleViewer || p.CanWrite() {
		t.Fatalf("unknown roles read only, got %+v %v", p, err)
	}
	if _, err := v.Verify("nobody"); err == nil {
		t.Fatal("expected error for malformed dev token")
	}
}

func TestHMACMode(t *testing.T) {
	secret := []byte("s3cret")
	now := time.Unix(1_700_000_000, 0)
	v := &Verifier{Mode: "hmac", HMACSecret: secret, RoleClaim: "role", now: func() time.Time { return now }}

	tok, err := SignHS256(secret, map[string]any{"sub": "ci", "role": "operator", "exp": now.Add(time.Minute).Unix()})
	if err != nil {
		t.Fatal(err)
	}
	p, err := v.Verify(tok)
	if err != nil || p.Subject != "ci" || p.Role != RoleOperator {
		t.Fatalf("got %+v %v", p, err)
	}

	bad, _ := SignHS256([]byte("other"), map[string]any{"sub": "ci"})
	if _, err := v.Verify(bad); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("want ErrBadSignature, got %v", err)
	}
	old, _ := SignHS256(secret, map[string]any{"sub": "ci", "exp": now.Add(-time.Second).Unix()})
	if _, err := v.Verify(old); !errors.Is(err, ErrExpired) {
		t.Fatalf("want ErrExpired, got %v", err)
	}
	if _, err := v.Verify("a.b"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("want ErrInvalidToken, got %v", err)
	}
}

func TestNoneModeAndEnv(t *testing.T) {
	t.Setenv("AUTH_MODE", "NONE")
	v := NewVerifierFromEnv()
	p, err := v.Verify("")
	if err != nil || !p.CanWrite() {
		t.Fatalf("got %+v %v", p, err)
	}
	t.Setenv("AUTH_MODE", "jwks")
	if _, err := NewVerifierFromEnv().Verify("x"); err == nil {
		t.Fatal("unsupported mode should fail")
	}
}
