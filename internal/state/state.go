/*
   CPU state definitions shared by every guest architecture.

   Copyright (c) 2024, Richard Cornwell

   Permission is hereby granted, free of charge, to any person obtaining a
   copy of this software and associated documentation files (the "Software"),
   to deal in the Software without restriction, including without limitation
   the rights to use, copy, modify, merge, publish, distribute, sublicense,
   and/or sell copies of the Software, and to permit persons to whom the
   Software is furnished to do so, subject to the following conditions:

   The above copyright notice and this permission notice shall be included in
   all copies or substantial portions of the Software.

   THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
   IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
   FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.  IN NO EVENT SHALL
   ROBERT M SUPNIK BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
   IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
   CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.

*/

// Package state holds the per-core architectural register file shared by
// the x86, RISC-V and ARM64 front ends. One CPUState exists per emulated
// core; it is owned by that core's translated code and the helpers it
// calls, never touched from another goroutine except through the HST.
package state

import "github.com/rcornwell/dbtcore/internal/hst"

// Arch identifies which guest instruction set a core is decoding.
type Arch int

const (
	ArchX86 Arch = 1 + iota
	ArchRISCV32
	ArchRISCV64
	ArchARM64
)

// CCOp tags the lazily-evaluated x86 condition code state. Zero value is
// Dynamic, meaning EFlags already holds the materialised word.
type CCOp int

const (
	CCDynamic CCOp = iota
	CCEFlags
	CCAddB
	CCAddW
	CCAddL
	CCAddQ
	CCSubB
	CCSubW
	CCSubL
	CCSubQ
	CCAdcB
	CCAdcW
	CCAdcL
	CCAdcQ
	CCSbbB
	CCSbbW
	CCSbbL
	CCSbbQ
	CCLogicB
	CCLogicW
	CCLogicL
	CCLogicQ
	CCIncB
	CCIncW
	CCIncL
	CCIncQ
	CCDecB
	CCDecW
	CCDecL
	CCDecQ
	CCShlB
	CCShlW
	CCShlL
	CCShlQ
	CCSarB
	CCSarW
	CCSarL
	CCSarQ
	CCMulB
	CCMulW
	CCMulL
	CCMulQ
)

// CCState is the three-operand-plus-tag lazy condition code record (§4.2).
type CCState struct {
	Op  CCOp
	Src uint64 // rhs / discarded shift bits / full eflags when Op==CCEFlags
	Dst uint64 // result of the flag-defining op
	Tmp uint64 // scratch used by a handful of shift/rotate kernels
}

// VectorConfig is the RISC-V `vtype` + `vl`/`vstart` configuration state.
type VectorConfig struct {
	VL     uint64 // active vector length, clamped to VLMAX
	VStart uint64 // first unprocessed element; published on a vector fault
	VSEW   uint   // selected element width in bits: 8,16,32,64
	VLMul8 int    // LMUL expressed in eighths: 1 means LMUL=1/8, 8 means LMUL=1
	VTA    bool   // tail agnostic
	VMA    bool   // mask agnostic
	VXRM   uint   // fixed point rounding mode, 0..3
	VXSat  bool   // saturation occurred
	VIll   bool   // illegal vtype configuration
	VLenB  uint64 // VLEN/8, used by whole-register load/store
}

// HookState tracks the opcode/GPR/stack-access instrumentation masks and
// counters described in §3.1.
type HookState struct {
	OpcodeHookMask [256]bool
	GPRHookMask    uint32 // bit i set => writes to GPR i fire the hook
	StackHookEnb   bool
	InstCount      uint64
}

// ProfilerState remembers the previous stack pointer so helpers can
// announce stack-frame pushes/pops to an external profiler collaborator.
type ProfilerState struct {
	PrevSP uint64
}

// CPUState is the process-wide per-core architectural register file.
type CPUState struct {
	Arch Arch

	// General purpose registers. x86 uses the low 8 (32-bit mode) or all
	// 16 (64-bit mode) as 64-bit slots with width views applied by the
	// x86 front end; RISC-V/ARM64 use all 32 with GPR[0] hardwired zero
	// on RISC-V.
	GPR [32]uint64
	PC  uint64

	// x86 lazy condition codes (§4.2).
	CC CCState

	// x86 flags/mode.
	EFlags uint64
	HFlags uint32 // code size/stack size/IOPL/CPL/VM86, HF_INHIBIT_IRQ sticky bit
	HFlags2 uint32 // HF2_GIF, HF2_HIF, HF2_NMI

	// RISC-V CSR-adjacent state.
	FPR        [32]uint64 // NaN-boxed for narrower formats
	MStatus    uint64
	MCause     uint64
	MTval      uint64
	CSR        map[uint32]uint64
	Priv       uint
	PendingNMI uint64
	Vec        VectorConfig
	VRegBase   []byte // flat VLEN-wide register file, addressed by lane helpers

	// Multi-core atomics substrate.
	Store  *hst.Table
	CoreID uint32

	Hooks    HookState
	Profiler ProfilerState
}

// New constructs a CPUState for the given architecture and core id,
// sharing the process-wide store table across all cores.
func New(arch Arch, coreID uint32, store *hst.Table) *CPUState {
	cs := &CPUState{
		Arch:   arch,
		CoreID: coreID,
		Store:  store,
		CSR:    make(map[uint32]uint64),
	}
	if arch == ArchRISCV32 || arch == ArchRISCV64 {
		cs.Vec.VLenB = 16 // default VLEN=128 bits until vsetvl configures otherwise
		cs.VRegBase = make([]byte, 32*int(cs.Vec.VLenB))
	}
	return cs
}

// WriteGPR writes a general register, honouring the RISC-V x0-is-zero rule.
// x86/ARM64 callers pass reg in [0,16) / [0,32) respectively; RISC-V reg 0
// writes are silently dropped per §4.1 "Register access semantics".
func (cs *CPUState) WriteGPR(reg int, val uint64) {
	if (cs.Arch == ArchRISCV32 || cs.Arch == ArchRISCV64) && reg == 0 {
		return
	}
	cs.GPR[reg] = val
	if cs.Hooks.GPRHookMask&(1<<uint(reg)) != 0 {
		cs.Hooks.InstCount++ // the real hook callback is an external collaborator (§6); we just count here
	}
}

// ReadGPR reads a general register; RISC-V x0 always reads as zero.
func (cs *CPUState) ReadGPR(reg int) uint64 {
	if (cs.Arch == ArchRISCV32 || cs.Arch == ArchRISCV64) && reg == 0 {
		return 0
	}
	return cs.GPR[reg]
}

// WriteGPR32 deposits a 32-bit result into reg, zero-extending into the
// upper 32 bits on x86-64 per the "Upper-half zeroing" invariant (§8).
func (cs *CPUState) WriteGPR32(reg int, val uint32) {
	cs.GPR[reg] = uint64(val)
}
