package mmu

import "testing"

func TestLoadStoreRoundTrip(t *testing.T) {
	m := NewFlat(4096)
	if err := m.Store(0x100, 32, 0xDEADBEEF); err != nil {
		t.Fatalf("store failed: %v", err)
	}
	v, err := m.Load(0x100, 32)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if v != 0xDEADBEEF {
		t.Fatalf("expected 0xDEADBEEF, got %#x", v)
	}
}

func TestOutOfRangeAccessErrors(t *testing.T) {
	m := NewFlat(16)
	if _, err := m.Load(10, 64); err == nil {
		t.Fatal("expected an out-of-range error")
	}
}

func TestFetchByteHalfWord(t *testing.T) {
	m := NewFlat(16)
	if err := m.LoadBytes(0, []byte{0x01, 0x02, 0x03, 0x04}); err != nil {
		t.Fatalf("load bytes failed: %v", err)
	}
	b, err := m.FetchByte(0)
	if err != nil || b != 0x01 {
		t.Fatalf("expected byte 0x01, got %#x err=%v", b, err)
	}
	h, err := m.FetchHalf(0)
	if err != nil || h != 0x0201 {
		t.Fatalf("expected half 0x0201, got %#x err=%v", h, err)
	}
	w, err := m.FetchWord(0)
	if err != nil || w != 0x04030201 {
		t.Fatalf("expected word 0x04030201, got %#x err=%v", w, err)
	}
}
