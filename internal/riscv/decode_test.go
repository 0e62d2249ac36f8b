package riscv

import (
	"fmt"
	"testing"

	"github.com/rcornwell/dbtcore/internal/hst"
	"github.com/rcornwell/dbtcore/internal/ir"
	"github.com/rcornwell/dbtcore/internal/state"
	"github.com/rcornwell/dbtcore/internal/tb"
)

type wordMem []uint16

func (m wordMem) FetchHalf(pc uint64) (uint16, error) {
	idx := pc / 2
	if idx >= uint64(len(m)) {
		return 0, fmt.Errorf("fetch past end of test image at %#x", pc)
	}
	return m[idx], nil
}

type flatData struct {
	mem map[uint64]uint64
}

func newFlatData() *flatData { return &flatData{mem: make(map[uint64]uint64)} }

func (d *flatData) Load(addr uint64, width int) (uint64, error) {
	v := d.mem[addr]
	if width == 32 {
		return uint64(uint32(v)), nil
	}
	return v, nil
}

func (d *flatData) Store(addr uint64, width int, val uint64) error {
	if width == 32 {
		d.mem[addr] = uint64(uint32(val))
	} else {
		d.mem[addr] = val
	}
	return nil
}

type nopBackend struct{}

func (nopBackend) HasAtomicIntrinsic(int) bool { return false }
func (nopBackend) Emit(ir.Inst)                {}

func encodeAMO(funct5, rs2, rs1 int, funct3, rd uint32) uint32 {
	return uint32(funct5)<<27 | uint32(rs2)<<20 | uint32(rs1)<<15 | funct3<<12 | rd<<7 | 0x2F
}

// Scenario 1 (§8): core 0 issues LR.W then SC.W on the same address with
// no intervening write from another core: SC succeeds (rd=0).
func TestLRSCSuccess(t *testing.T) {
	store := hst.New(8, 2)
	cpu := state.New(state.ArchRISCV32, 0, store)
	data := newFlatData()
	data.mem[0x1000] = 42

	lr := encodeAMO(0x02, 0, 1, 2, 5) // lr.w x5, (x1)
	sc := encodeAMO(0x03, 6, 1, 2, 7) // sc.w x7, x6, (x1)
	img := wordMem{uint16(lr), uint16(lr >> 16), uint16(sc), uint16(sc >> 16)}
	tr := NewTranslator(img, data, StaticExtensionSet{}, false)

	cpu.WriteGPR(1, 0x1000)
	cpu.WriteGPR(6, 99)

	dc := tb.NewDisasContext(0, 0)
	b := ir.NewBuilder(nopBackend{})
	n, err := tr.Translate(cpu, dc, b)
	if err != nil {
		t.Fatalf("lr.w failed: %v", err)
	}
	if cpu.ReadGPR(5) != 42 {
		t.Fatalf("expected x5==42 after lr.w, got %d", cpu.ReadGPR(5))
	}

	dc2 := tb.NewDisasContext(uint64(n), 0)
	if _, err := tr.Translate(cpu, dc2, b); err != nil {
		t.Fatalf("sc.w failed: %v", err)
	}
	if cpu.ReadGPR(7) != 0 {
		t.Fatalf("expected sc.w success (rd=0), got %d", cpu.ReadGPR(7))
	}
	if data.mem[0x1000] != 99 {
		t.Fatalf("expected store to have committed 99, got %d", data.mem[0x1000])
	}
}

// Scenario 2 (§8): core 1 writes the reservation address between core 0's
// LR.W and SC.W: SC fails (rd=1) and the store does not commit.
func TestLRSCFailureOnCollision(t *testing.T) {
	store := hst.New(8, 2)
	cpu0 := state.New(state.ArchRISCV32, 0, store)
	cpu1 := state.New(state.ArchRISCV32, 1, store)
	data := newFlatData()
	data.mem[0x2000] = 7

	lr := encodeAMO(0x02, 0, 1, 2, 5)
	img0 := wordMem{uint16(lr), uint16(lr >> 16)}
	tr0 := NewTranslator(img0, data, StaticExtensionSet{}, false)
	cpu0.WriteGPR(1, 0x2000)

	dc := tb.NewDisasContext(0, 0)
	b := ir.NewBuilder(nopBackend{})
	if _, err := tr0.Translate(cpu0, dc, b); err != nil {
		t.Fatalf("lr.w failed: %v", err)
	}

	// core 1 performs an ordinary store through the same table's Set path
	// (modeling any write that updates last-accessed-by-core), breaking
	// core 0's reservation.
	store.Set(0x2000, cpu1.CoreID)

	sc := encodeAMO(0x03, 6, 1, 2, 7)
	img0sc := wordMem{uint16(sc), uint16(sc >> 16)}
	tr0sc := NewTranslator(img0sc, data, StaticExtensionSet{}, false)
	cpu0.WriteGPR(6, 123)
	dc2 := tb.NewDisasContext(0, 0)
	if _, err := tr0sc.Translate(cpu0, dc2, b); err != nil {
		t.Fatalf("sc.w failed: %v", err)
	}
	if cpu0.ReadGPR(7) != 1 {
		t.Fatalf("expected sc.w failure (rd=1) after collision, got %d", cpu0.ReadGPR(7))
	}
	if data.mem[0x2000] != 7 {
		t.Fatalf("expected store to NOT commit on sc failure, got %d", data.mem[0x2000])
	}
}

// Scenario 3 (§8): AMOCAS.D on RV32 performs a 64-bit compare-and-swap via
// the HST's Lock128/Unlock128 pair.
func TestAMOCASDoubleWidthOnRV32(t *testing.T) {
	store := hst.New(8, 2)
	cpu := state.New(state.ArchRISCV32, 0, store)
	data := newFlatData()
	data.mem[0x3000] = 0x11111111
	data.mem[0x3008] = 0x22222222

	amocas := encodeAMO(0x05, 12, 1, 3, 10) // amocas.d x10,x12,(x1) -> width=3(64)
	img := wordMem{uint16(amocas), uint16(amocas >> 16)}
	exts := StaticExtensionSet{ExtZacas: true}
	tr := NewTranslator(img, data, exts, false)

	cpu.WriteGPR(1, 0x3000)
	cpu.WriteGPR(10, 0x11111111) // expected lo
	cpu.WriteGPR(11, 0x22222222) // expected hi
	cpu.WriteGPR(12, 0xAAAAAAAA) // new lo
	cpu.WriteGPR(13, 0xBBBBBBBB) // new hi

	dc := tb.NewDisasContext(0, 0)
	b := ir.NewBuilder(nopBackend{})
	if _, err := tr.Translate(cpu, dc, b); err != nil {
		t.Fatalf("amocas.d failed: %v", err)
	}
	if data.mem[0x3000] != 0xAAAAAAAA || data.mem[0x3008] != 0xBBBBBBBB {
		t.Fatalf("expected cas to commit new value, got lo=%#x hi=%#x", data.mem[0x3000], data.mem[0x3008])
	}
	if cpu.ReadGPR(10) != 0x11111111 || cpu.ReadGPR(11) != 0x22222222 {
		t.Fatalf("expected rd pair to read back the old value, got %#x/%#x", cpu.ReadGPR(10), cpu.ReadGPR(11))
	}
}

func TestAMOCASRequiresZacas(t *testing.T) {
	store := hst.New(8, 2)
	cpu := state.New(state.ArchRISCV32, 0, store)
	data := newFlatData()
	amocas := encodeAMO(0x05, 12, 1, 3, 10)
	img := wordMem{uint16(amocas), uint16(amocas >> 16)}
	tr := NewTranslator(img, data, StaticExtensionSet{}, false)
	cpu.WriteGPR(1, 0x4000)

	dc := tb.NewDisasContext(0, 0)
	b := ir.NewBuilder(nopBackend{})
	_, err := tr.Translate(cpu, dc, b)
	if err == nil {
		t.Fatal("expected IllegalInstruction when Zacas is disabled")
	}
	if _, ok := err.(*IllegalInstruction); !ok {
		t.Fatalf("expected *IllegalInstruction, got %T", err)
	}
}

func TestJALRMisalignedTarget(t *testing.T) {
	store := hst.New(8, 2)
	cpu := state.New(state.ArchRISCV32, 0, store)
	data := newFlatData()
	// jalr x1, x2, 1  -> imm=1, funct3=0, rd=1, opcode=0x67
	word := uint32(1)<<20 | uint32(2)<<15 | uint32(1)<<7 | 0x67
	img := wordMem{uint16(word), uint16(word >> 16)}
	tr := NewTranslator(img, data, StaticExtensionSet{}, false)
	cpu.WriteGPR(2, 0x1000)

	dc := tb.NewDisasContext(0, 0)
	b := ir.NewBuilder(nopBackend{})
	_, err := tr.Translate(cpu, dc, b)
	if err != nil {
		t.Fatalf("expected success: target 0x1000|1 &^1 == 0x1000, 4-byte aligned: %v", err)
	}

	// Now target 0x1002 (2-byte aligned, not 4-byte), RVC disabled: illegal.
	word2 := uint32(3)<<20 | uint32(2)<<15 | uint32(1)<<7 | 0x67
	img2 := wordMem{uint16(word2), uint16(word2 >> 16)}
	tr2 := NewTranslator(img2, data, StaticExtensionSet{}, false)
	cpu.WriteGPR(2, 0x1000)
	dc2 := tb.NewDisasContext(0, 0)
	_, err = tr2.Translate(cpu, dc2, b)
	if err == nil {
		t.Fatal("expected AddrMisaligned for 2-byte-only-aligned jalr target with RVC disabled")
	}
	if _, ok := err.(*AddrMisaligned); !ok {
		t.Fatalf("expected *AddrMisaligned, got %T", err)
	}
}

func TestCompressedExpansionAddi(t *testing.T) {
	// c.addi x1, 1: funct3=000, op=01, rd=x1, imm[4:0]=1, imm[5]=0
	parcel := uint16(1)<<7 | uint16(1)<<2 | 0x1
	word, err := ExpandCompressed(parcel)
	if err != nil {
		t.Fatalf("unexpected reserved: %v", err)
	}
	if word&0x7F != 0x13 {
		t.Fatalf("expected expansion to an OP-IMM word, got opcode %#x", word&0x7F)
	}
}

func TestCompressedReservedLuiZeroImm(t *testing.T) {
	// c.lui with rd!=0,2 and a zero immediate is reserved.
	parcel := uint16(0x3)<<13 | uint16(1)<<7 | 0x1
	_, err := ExpandCompressed(parcel)
	if err == nil {
		t.Fatal("expected reserved-encoding error for c.lui imm=0")
	}
	if _, ok := err.(*ReservedEncoding); !ok {
		t.Fatalf("expected *ReservedEncoding, got %T", err)
	}
}

func encodeVsetvli(rd, rs1 int, zimm uint32) uint32 {
	return zimm<<20 | uint32(rs1)<<15 | 7<<12 | uint32(rd)<<7 | 0x57
}

func encodeOPIVV(funct6 uint32, vm bool, vs2, vs1, vd int) uint32 {
	var vmBit uint32
	if vm {
		vmBit = 1
	}
	return funct6<<26 | vmBit<<25 | uint32(vs2)<<20 | uint32(vs1)<<15 | 0<<12 | uint32(vd)<<7 | 0x57
}

func putVRegU32(cpu *state.CPUState, vreg, lane int, val uint32) {
	off := vreg*int(cpu.Vec.VLenB) + lane*4
	for i := 0; i < 4; i++ {
		cpu.VRegBase[off+i] = byte(val >> (8 * i))
	}
}

func getVRegU32(cpu *state.CPUState, vreg, lane int) uint32 {
	off := vreg*int(cpu.Vec.VLenB) + lane*4
	var v uint32
	for i := 0; i < 4; i++ {
		v |= uint32(cpu.VRegBase[off+i]) << (8 * i)
	}
	return v
}

// Scenario 6 (§8): vsetvli sets vl=4/vsew=32, then a masked vadd.vv with
// v0=0b1010 applies only to lanes 1 and 3, leaving the others undisturbed.
func TestVectorMaskedAddScenario6(t *testing.T) {
	store := hst.New(8, 2)
	cpu := state.New(state.ArchRISCV32, 0, store)
	data := newFlatData()

	// vsetvli x2, x1, (vma=0,vta=0,vsew=32,vlmul=1): zimm = 2<<3 = 16
	vsetvli := encodeVsetvli(2, 1, 16)
	// vadd.vv v3, v1, v2, masked (vm=0)
	vadd := encodeOPIVV(0x00, false, 1, 2, 3)
	img := wordMem{
		uint16(vsetvli), uint16(vsetvli >> 16),
		uint16(vadd), uint16(vadd >> 16),
	}
	tr := NewTranslator(img, data, StaticExtensionSet{ExtZve32x: true}, false)
	cpu.WriteGPR(1, 4) // AVL=4

	dc := tb.NewDisasContext(0, 0)
	b := ir.NewBuilder(nopBackend{})
	n, err := tr.Translate(cpu, dc, b)
	if err != nil {
		t.Fatalf("vsetvli failed: %v", err)
	}
	if cpu.ReadGPR(2) != 4 {
		t.Fatalf("expected vl=4 written to rd, got %d", cpu.ReadGPR(2))
	}
	if cpu.Vec.VSEW != 32 || cpu.Vec.VL != 4 {
		t.Fatalf("expected vsew=32, vl=4, got vsew=%d vl=%d", cpu.Vec.VSEW, cpu.Vec.VL)
	}

	cpu.VRegBase[0] = 0b1010 // v0 mask
	for i, v := range [4]uint32{1, 2, 3, 4} {
		putVRegU32(cpu, 1, i, v)
	}
	for i, v := range [4]uint32{10, 20, 30, 40} {
		putVRegU32(cpu, 2, i, v)
	}
	for i, v := range [4]uint32{111, 222, 333, 444} {
		putVRegU32(cpu, 3, i, v)
	}

	dc2 := tb.NewDisasContext(uint64(n), 0)
	if _, err := tr.Translate(cpu, dc2, b); err != nil {
		t.Fatalf("vadd.vv failed: %v", err)
	}

	want := [4]uint32{111, 22, 333, 44}
	for i, w := range want {
		if got := getVRegU32(cpu, 3, i); got != w {
			t.Fatalf("lane %d: expected %d, got %d", i, w, got)
		}
	}
}

func TestVectorOpRequiresZve32x(t *testing.T) {
	store := hst.New(8, 2)
	cpu := state.New(state.ArchRISCV32, 0, store)
	data := newFlatData()
	vadd := encodeOPIVV(0x00, true, 1, 2, 3)
	img := wordMem{uint16(vadd), uint16(vadd >> 16)}
	tr := NewTranslator(img, data, StaticExtensionSet{}, false)

	dc := tb.NewDisasContext(0, 0)
	b := ir.NewBuilder(nopBackend{})
	_, err := tr.Translate(cpu, dc, b)
	if _, ok := err.(*IllegalInstruction); !ok {
		t.Fatalf("expected *IllegalInstruction when Zve32x is disabled, got %v", err)
	}
}

// §4.4: vill must gate every vector op but vset* before a valid vsetvl
// has configured the core.
func TestVectorOpIllegalWhileVill(t *testing.T) {
	store := hst.New(8, 2)
	cpu := state.New(state.ArchRISCV32, 0, store)
	cpu.Vec.VIll = true
	data := newFlatData()
	vadd := encodeOPIVV(0x00, true, 1, 2, 3)
	img := wordMem{uint16(vadd), uint16(vadd >> 16)}
	tr := NewTranslator(img, data, StaticExtensionSet{ExtZve32x: true}, false)

	dc := tb.NewDisasContext(0, 0)
	b := ir.NewBuilder(nopBackend{})
	_, err := tr.Translate(cpu, dc, b)
	if _, ok := err.(*IllegalInstruction); !ok {
		t.Fatalf("expected *IllegalInstruction while vill is set, got %v", err)
	}
}
