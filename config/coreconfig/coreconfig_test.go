package coreconfig

import (
	"os"
	"testing"

	"github.com/rcornwell/dbtcore/config/dbtconfig"
)

func TestLoadCoreAndHSTDirectives(t *testing.T) {
	Cores = nil
	HST = HSTSpec{Bits: 16, Shift: 2}

	content := "CORE riscv64 mem=65536\nCORE x86\nHST 8\n"
	f, err := os.CreateTemp(t.TempDir(), "cfg-*.txt")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatal(err)
	}
	f.Close()

	if err := dbtconfig.LoadConfigFile(f.Name()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(Cores) != 2 {
		t.Fatalf("expected 2 cores, got %d", len(Cores))
	}
	if Cores[0].Arch != "riscv64" || Cores[0].MemLen != 65536 {
		t.Fatalf("unexpected first core spec: %+v", Cores[0])
	}
	if Cores[1].Arch != "x86" || Cores[1].MemLen != 1<<20 {
		t.Fatalf("unexpected second core spec: %+v", Cores[1])
	}
	if HST.Bits != 8 {
		t.Fatalf("expected HST bits 8, got %d", HST.Bits)
	}
}

func TestAddCoreRejectsUnknownArch(t *testing.T) {
	if err := addCore("vax", nil); err == nil {
		t.Fatal("expected an error for an unknown architecture")
	}
}
