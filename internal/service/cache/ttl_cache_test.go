package cache

import (
	"testing"
	"time"
)

func TestTTLCacheSetGet(t *testing.T) {
	c := NewTTLCache()
	if err := c.SetBytes("k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	b, ok, err := c.GetBytes("k")
	if err != nil || !ok {
		t.Fatalf("expected hit, ok=%v err=%v", ok, err)
	}
	if string(b) != "v" {
		t.Fatalf("unexpected value %q", b)
	}
}

func TestTTLCacheExpiry(t *testing.T) {
	c := NewTTLCache()
	if err := c.SetBytes("k", []byte("v"), 10*time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if _, ok, _ := c.GetBytes("k"); ok {
		t.Fatalf("expected expired entry to miss")
	}
}

func TestTTLCacheMiss(t *testing.T) {
	c := NewTTLCache()
	if _, ok, _ := c.GetBytes("absent"); ok {
		t.Fatalf("expected miss")
	}
}

func TestTTLCacheZeroTTLNeverExpires(t *testing.T) {
	c := NewTTLCache()
	if err := c.SetBytes("k", []byte("v"), 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok, _ := c.GetBytes("k"); !ok {
		t.Fatalf("zero ttl entry should persist")
	}
}
