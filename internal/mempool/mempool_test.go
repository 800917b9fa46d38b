package mempool

import (
	"testing"

	"github.com/vantage-chain/core/internal/config"
)

func TestMempoolFIFOOrder(t *testing.T) {
	mp := NewMempool(config.MempoolConfig{MaxSize: 10, CacheSize: 10}, nil)

	if _, err := mp.Add([]byte("a")); err != nil {
		t.Fatalf("add a: %v", err)
	}
	if _, err := mp.Add([]byte("b")); err != nil {
		t.Fatalf("add b: %v", err)
	}

	data, ok := mp.Next()
	if !ok || string(data) != "a" {
		t.Fatalf("expected a first, got %q ok=%v", data, ok)
	}
	data, ok = mp.Next()
	if !ok || string(data) != "b" {
		t.Fatalf("expected b second, got %q ok=%v", data, ok)
	}
	if _, ok := mp.Next(); ok {
		t.Fatalf("expected empty pool")
	}
}

func TestMempoolRejectsDuplicate(t *testing.T) {
	mp := NewMempool(config.MempoolConfig{MaxSize: 10, CacheSize: 10}, nil)

	if _, err := mp.Add([]byte("x")); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if _, err := mp.Add([]byte("x")); err == nil {
		t.Fatalf("expected duplicate rejection")
	}
}

func TestMempoolRejectsOverCapacity(t *testing.T) {
	mp := NewMempool(config.MempoolConfig{MaxSize: 1, CacheSize: 10}, nil)

	if _, err := mp.Add([]byte("x")); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if _, err := mp.Add([]byte("y")); err == nil {
		t.Fatalf("expected capacity rejection")
	}
}
