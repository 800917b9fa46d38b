package storage

import "testing"

func TestMemStoreRoundTrip(t *testing.T) {
	s := NewMemStore()

	if _, ok, err := s.ReadValue([]byte("missing")); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	if err := s.StoreValue([]byte("k"), []byte("v1")); err != nil {
		t.Fatalf("store: %v", err)
	}
	v, ok, err := s.ReadValue([]byte("k"))
	if err != nil || !ok || string(v) != "v1" {
		t.Fatalf("read: got (%s, %v, %v)", v, ok, err)
	}

	if err := s.StoreValue([]byte("k"), []byte("v2")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	v, _, _ = s.ReadValue([]byte("k"))
	if string(v) != "v2" {
		t.Fatalf("expected overwritten value, got %s", v)
	}
}
