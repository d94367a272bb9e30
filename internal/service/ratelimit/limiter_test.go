package ratelimit

import "testing"

func TestAllowConsumesTokens(t *testing.T) {
	l := New()
	if !l.Allow("a", 2, 0) {
		t.Fatalf("first call should pass")
	}
	if !l.Allow("a", 2, 0) {
		t.Fatalf("second call should pass")
	}
	if l.Allow("a", 2, 0) {
		t.Fatalf("third call should be limited")
	}
}

func TestAllowKeysAreIndependent(t *testing.T) {
	l := New()
	if !l.Allow("a", 1, 0) {
		t.Fatalf("key a should pass")
	}
	if !l.Allow("b", 1, 0) {
		t.Fatalf("key b must not share key a's bucket")
	}
}
