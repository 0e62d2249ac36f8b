package vector

import (
	"fmt"
	"testing"
)

func TestSetVLClampsToVLMax(t *testing.T) {
	cfg, ok := SetVL(128, 100, 32, 0, false, false, false)
	if !ok || cfg.VIll {
		t.Fatalf("expected a legal vtype, got %+v ok=%v", cfg, ok)
	}
	// VLEN=128, SEW=32, LMUL=1 => VLMAX=4; AVL=100 >> 2*VLMAX => clamp to VLMAX.
	if cfg.VL != 4 {
		t.Fatalf("expected VL clamped to VLMAX=4, got %d", cfg.VL)
	}
}

func TestSetVLEvenSplit(t *testing.T) {
	// VLMAX=4, AVL=6 (< 2*VLMAX): vl = ceil(6/2) = 3.
	cfg, ok := SetVL(128, 6, 32, 0, false, false, false)
	if !ok {
		t.Fatal("expected legal vtype")
	}
	if cfg.VL != 3 {
		t.Fatalf("expected evenly-split VL=3, got %d", cfg.VL)
	}
}

func TestSetVLIllegalVType(t *testing.T) {
	_, ok := SetVL(128, 10, 17, 0, false, false, false)
	if ok {
		t.Fatal("expected illegal vtype for a non-power-of-two SEW")
	}
}

func TestSetVLToMax(t *testing.T) {
	cfg, ok := SetVL(256, 0, 8, 0, false, false, true)
	if !ok {
		t.Fatal("expected legal vtype")
	}
	if cfg.VL != 32 { // VLEN=256, SEW=8, LMUL=1 => VLMAX=32
		t.Fatalf("expected VL==VLMAX==32, got %d", cfg.VL)
	}
}

func TestRoundoffUTruncate(t *testing.T) {
	if got := RoundoffU(0b1011, 2, 2); got != 0b10 {
		t.Fatalf("rdn mode should truncate: got %d", got)
	}
}

func TestRoundoffURoundNearestUp(t *testing.T) {
	// v=0b101, d=1: dropped bit is 1 => round up.
	if got := RoundoffU(0b101, 1, 0); got != 0b11 {
		t.Fatalf("rnu mode: expected 3, got %d", got)
	}
}

type recordMem struct {
	loads  map[uint64]uint64
	faults map[uint64]bool
}

func (m *recordMem) Load(addr uint64, width int) (uint64, error) {
	if m.faults[addr] {
		return 0, fmt.Errorf("fault at %#x", addr)
	}
	return m.loads[addr], nil
}

func (m *recordMem) Store(addr uint64, width int, val uint64) error {
	m.loads[addr] = val
	return nil
}

// Scenario 8 (§8): a fault-first load whose first active element faults
// raises normally, but a fault on a later element instead clamps vl to
// the elements already loaded and swallows the fault.
func TestFaultFirstLoadClampsVL(t *testing.T) {
	mem := &recordMem{loads: map[uint64]uint64{}, faults: map[uint64]bool{0x1008: true}}
	for a := uint64(0x1000); a < 0x1008; a += 4 {
		mem.loads[a] = uint64(a)
	}
	cfg := Config{VL: 4, VSEW: 32, VLMul8: 8, VLenB: 16}
	regs := make([]byte, 32*16)
	eng := NewEngine(mem, &cfg, regs)

	err := eng.FaultFirstLoad(0, 0x1000, 0, false, nil)
	if err != nil {
		t.Fatalf("fault on element 2 (not first) must not propagate, got %v", err)
	}
	if cfg.VL != 2 {
		t.Fatalf("expected vl clamped to 2 (elements successfully loaded), got %d", cfg.VL)
	}
}

func TestFaultFirstLoadFirstElementFaultsRaises(t *testing.T) {
	mem := &recordMem{loads: map[uint64]uint64{}, faults: map[uint64]bool{0x2000: true}}
	cfg := Config{VL: 4, VSEW: 32, VLMul8: 8, VLenB: 16}
	regs := make([]byte, 32*16)
	eng := NewEngine(mem, &cfg, regs)

	err := eng.FaultFirstLoad(0, 0x2000, 0, false, nil)
	if err == nil {
		t.Fatal("expected a raised fault when the first active element faults")
	}
	if cfg.VStart != 0 {
		t.Fatalf("expected vstart published at the faulting element 0, got %d", cfg.VStart)
	}
}

func TestMaskLoadStoreRoundTrip(t *testing.T) {
	mem := &recordMem{loads: map[uint64]uint64{0x3000: 0xAB}}
	cfg := Config{VL: 8, VSEW: 8, VLMul8: 8, VLenB: 16}
	regs := make([]byte, 32*16)
	eng := NewEngine(mem, &cfg, regs)

	if err := eng.MaskLoad(0, 0x3000); err != nil {
		t.Fatalf("mask load failed: %v", err)
	}
	if regs[0] != 0xAB {
		t.Fatalf("expected mask register byte 0 == 0xAB, got %#x", regs[0])
	}
}

func putU32(regs []byte, vlenB uint64, vreg, lane int, val uint32) {
	off := vreg*int(vlenB) + lane*4
	for i := 0; i < 4; i++ {
		regs[off+i] = byte(val >> (8 * i))
	}
}

func getU32(regs []byte, vlenB uint64, vreg, lane int) uint32 {
	off := vreg*int(vlenB) + lane*4
	var v uint32
	for i := 0; i < 4; i++ {
		v |= uint32(regs[off+i]) << (8 * i)
	}
	return v
}

// Scenario 6 (§8), exercised directly against the engine: a masked add
// with v0=0b1010 touches only lanes 1 and 3, leaving the rest undisturbed.
func TestBinaryOpMaskedAdd(t *testing.T) {
	cfg := Config{VL: 4, VSEW: 32, VLMul8: 8, VLenB: 16}
	regs := make([]byte, 32*16)
	eng := NewEngine(nil, &cfg, regs)

	for i, v := range [4]uint32{1, 2, 3, 4} {
		putU32(regs, cfg.VLenB, 1, i, v)
	}
	for i, v := range [4]uint32{10, 20, 30, 40} {
		putU32(regs, cfg.VLenB, 2, i, v)
	}
	for i, v := range [4]uint32{111, 222, 333, 444} {
		putU32(regs, cfg.VLenB, 3, i, v)
	}
	mask := []byte{0b1010}

	add := func(a, b uint64) uint64 { return a + b }
	if err := eng.BinaryOp(3, 2, 1, true, mask, add); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := [4]uint32{111, 22, 333, 44}
	for i, w := range want {
		if got := getU32(regs, cfg.VLenB, 3, i); got != w {
			t.Fatalf("lane %d: expected %d, got %d", i, w, got)
		}
	}
}

func TestBinaryOpUnmaskedAppliesEveryLane(t *testing.T) {
	cfg := Config{VL: 2, VSEW: 32, VLMul8: 8, VLenB: 16}
	regs := make([]byte, 32*16)
	eng := NewEngine(nil, &cfg, regs)
	putU32(regs, cfg.VLenB, 1, 0, 5)
	putU32(regs, cfg.VLenB, 1, 1, 6)
	putU32(regs, cfg.VLenB, 2, 0, 1)
	putU32(regs, cfg.VLenB, 2, 1, 1)

	sub := func(a, b uint64) uint64 { return a - b }
	if err := eng.BinaryOp(3, 2, 1, false, nil, sub); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := getU32(regs, cfg.VLenB, 3, 0); got != 4 {
		t.Fatalf("expected lane 0 = 5-1 = 4, got %d", got)
	}
	if got := getU32(regs, cfg.VLenB, 3, 1); got != 5 {
		t.Fatalf("expected lane 1 = 6-1 = 5, got %d", got)
	}
}

func TestIndexedLoadUsesVs2AsByteOffset(t *testing.T) {
	mem := &recordMem{loads: map[uint64]uint64{0x1000: 0xAA, 0x1010: 0xBB}}
	cfg := Config{VL: 2, VSEW: 32, VLMul8: 8, VLenB: 16}
	regs := make([]byte, 32*16)
	eng := NewEngine(mem, &cfg, regs)
	putU32(regs, cfg.VLenB, 2, 0, 0)
	putU32(regs, cfg.VLenB, 2, 1, 0x10)

	if err := eng.IndexedLoad(0, 0x1000, 2, 4, 0, false, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := getU32(regs, cfg.VLenB, 0, 0); got != 0xAA {
		t.Fatalf("expected lane 0 loaded from 0x1000, got %#x", got)
	}
	if got := getU32(regs, cfg.VLenB, 0, 1); got != 0xBB {
		t.Fatalf("expected lane 1 loaded from 0x1010, got %#x", got)
	}
}

func TestIndexedStoreUsesVs2AsByteOffset(t *testing.T) {
	mem := &recordMem{loads: map[uint64]uint64{}}
	cfg := Config{VL: 2, VSEW: 32, VLMul8: 8, VLenB: 16}
	regs := make([]byte, 32*16)
	eng := NewEngine(mem, &cfg, regs)
	putU32(regs, cfg.VLenB, 2, 0, 0)
	putU32(regs, cfg.VLenB, 2, 1, 0x20)
	putU32(regs, cfg.VLenB, 3, 0, 0xCAFE)
	putU32(regs, cfg.VLenB, 3, 1, 0xBEEF)

	if err := eng.IndexedStore(3, 0x2000, 2, 4, 0, false, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mem.loads[0x2000] != 0xCAFE || mem.loads[0x2020] != 0xBEEF {
		t.Fatalf("expected stores at indexed addresses, got %#v", mem.loads)
	}
}

func TestStridedStoreAdvancesByExplicitStride(t *testing.T) {
	mem := &recordMem{loads: map[uint64]uint64{}}
	cfg := Config{VL: 3, VSEW: 32, VLMul8: 8, VLenB: 16}
	regs := make([]byte, 32*16)
	eng := NewEngine(mem, &cfg, regs)
	for i, v := range [3]uint32{1, 2, 3} {
		putU32(regs, cfg.VLenB, 1, i, v)
	}

	if err := eng.StridedStore(1, 0x5000, 8, 0, false, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mem.loads[0x5000] != 1 || mem.loads[0x5008] != 2 || mem.loads[0x5010] != 3 {
		t.Fatalf("expected elements spaced 8 bytes apart, got %#v", mem.loads)
	}
}

func TestEEWFromField(t *testing.T) {
	cases := []struct {
		field uint32
		want  int
		ok    bool
	}{
		{0, 8, true},
		{5, 16, true},
		{6, 32, true},
		{7, 64, true},
		{1, 0, false},
	}
	for _, c := range cases {
		got, ok := EEWFromField(c.field)
		if ok != c.ok || got != c.want {
			t.Fatalf("EEWFromField(%d): expected (%d,%v), got (%d,%v)", c.field, c.want, c.ok, got, ok)
		}
	}
}
