package arm64

import "testing"

type wordMem map[uint64]uint32

func (m wordMem) FetchWord(pc uint64) (uint32, error) { return m[pc], nil }

func TestDecodeNOP(t *testing.T) {
	mem := wordMem{0x1000: 0xD503201F}
	tr := NewTranslator(mem)
	class, _, err := tr.Decode(0x1000)
	if err != nil || class != ClassNOP {
		t.Fatalf("expected NOP, got class=%v err=%v", class, err)
	}
}

func TestDecodeBBranchOffset(t *testing.T) {
	mem := wordMem{0x1000: 0x14000002} // b #8
	tr := NewTranslator(mem)
	class, reg, err := tr.Decode(0x1000)
	if err != nil || class != ClassB {
		t.Fatalf("expected B, got class=%v err=%v", class, err)
	}
	if reg.Imm != 8 {
		t.Fatalf("expected branch offset 8, got %d", reg.Imm)
	}
}

func TestDecodeMisalignedPC(t *testing.T) {
	mem := wordMem{}
	tr := NewTranslator(mem)
	if _, _, err := tr.Decode(0x1001); err == nil {
		t.Fatal("expected PCAlignment error for an unaligned fetch")
	} else if _, ok := err.(*PCAlignment); !ok {
		t.Fatalf("expected *PCAlignment, got %T", err)
	}
}

func TestDecodeIllegal(t *testing.T) {
	mem := wordMem{0x2000: 0xFFFFFFFF}
	tr := NewTranslator(mem)
	_, _, err := tr.Decode(0x2000)
	if err == nil {
		t.Fatal("expected IllegalInstruction")
	}
	if _, ok := err.(*IllegalInstruction); !ok {
		t.Fatalf("expected *IllegalInstruction, got %T", err)
	}
}
