package cache

import (
	"testing"
	"time"
)

func TestTTLStoreSetGet(t *testing.T) {
	s := NewTTLStore(time.Hour)
	defer s.Stop()

	s.Set("code:a@b.com", "123456", time.Minute)

	v, ok := s.Get("code:a@b.com")
	if !ok {
		t.Fatal("expected value, got miss")
	}
	if v != "123456" {
		t.Fatalf("expected 123456, got %s", v)
	}

	if _, ok := s.Get("otra-clave"); ok {
		t.Fatal("expected miss for unknown key")
	}
}

func TestTTLStoreExpiry(t *testing.T) {
	s := NewTTLStore(time.Hour)
	defer s.Stop()

	s.Set("k", "v", 20*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	if _, ok := s.Get("k"); ok {
		t.Fatal("expected entry to be expired")
	}
}

func TestTTLStoreDelete(t *testing.T) {
	s := NewTTLStore(time.Hour)
	defer s.Stop()

	s.Set("k", "v", time.Minute)
	s.Delete("k")

	if _, ok := s.Get("k"); ok {
		t.Fatal("expected entry to be deleted")
	}
}
