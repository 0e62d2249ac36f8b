/*
   Micro-op IR builder shared by every guest front end.

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

// Package ir models the portable micro-op intermediate representation
// that sits between the per-architecture decoders and the host code
// generator back-end (§6, design note §9). The back-end itself is
// external and out of scope; Builder only records the op stream and a
// capability-gated Backend trait a front end can query at translation
// time for host-intrinsic atomics.
package ir

// Op names one micro-op family. The operand payload lives in Inst.
type Op int

const (
	OpMov Op = iota
	OpLoad
	OpStore
	OpAdd
	OpSub
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpSar
	OpMul
	OpDiv
	OpBrCond
	OpSetCond
	OpMovCond
	OpDeposit
	OpExtract
	OpExt8s
	OpExt8u
	OpExt16s
	OpExt16u
	OpExt32s
	OpExt32u
	OpBswap16
	OpBswap32
	OpBswap64
	OpClz
	OpCtz
	OpPopcnt
	OpRotl
	OpRotr
	OpGotoTB
	OpExitTB
	OpExitTBNoChaining
	OpAtomicCAS
	OpAtomicFetchAdd
	OpAtomicCmpxchgFallback
)

// Cond is a comparison predicate used by BrCond/SetCond/MovCond.
type Cond int

const (
	CondEQ Cond = iota
	CondNE
	CondLT
	CondGE
	CondLTU
	CondGEU
	CondLE
	CondGT
	CondLEU
	CondGTU
)

// Temp is a handle to a temporary value: a stable index for a "global"
// temp that aliases a guest register or flag slot, or an arena-scoped
// index for a "local" temp allocated within one TB and invalidated at
// branch joins (design note §9).
type Temp struct {
	id     int
	global bool
}

// MMUIndex selects the access-privilege context for a memory op, derived
// from CPL (x86) or privilege mode (RISC-V) by the caller.
type MMUIndex int

// Inst is one recorded micro-op.
type Inst struct {
	Op     Op
	Dst    Temp
	Src1   Temp
	Src2   Temp
	Imm    int64
	Cond   Cond
	Width  int // 8,16,32,64,128 where relevant
	MMU    MMUIndex
	TBSlot int // goto_tb slot index
}

// Backend is the capability surface a front end queries at translation
// time, per design note §9 "Host intrinsic fast path". The concrete
// implementation (actual code generation) is an external collaborator;
// only the capability predicates and op emission are modeled here.
type Backend interface {
	HasAtomicIntrinsic(width int) bool
	Emit(Inst)
}

// Builder accumulates the micro-op stream for one translation block and
// hands temps out of a per-TB local arena, discarded at TB end (design
// note §9 "Global mutable state").
type Builder struct {
	backend   Backend
	nextLocal int
	insts     []Inst
}

// NewBuilder constructs a Builder bound to the given back-end.
func NewBuilder(backend Backend) *Builder {
	return &Builder{backend: backend}
}

// Global returns a stable temp handle aliasing a guest register or flag
// scratch slot; id is caller-assigned and consistent across the whole
// core's lifetime (e.g. a GPR index or a CCState field selector).
func (b *Builder) Global(id int) Temp {
	return Temp{id: id, global: true}
}

// NewLocal allocates a fresh local temp from this TB's arena.
func (b *Builder) NewLocal() Temp {
	t := Temp{id: b.nextLocal, global: false}
	b.nextLocal++
	return t
}

// Reset discards the local arena and recorded instructions, readying the
// Builder for the next TB.
func (b *Builder) Reset() {
	b.nextLocal = 0
	b.insts = b.insts[:0]
}

// Emit records inst and forwards it to the back-end.
func (b *Builder) Emit(inst Inst) {
	b.insts = append(b.insts, inst)
	if b.backend != nil {
		b.backend.Emit(inst)
	}
}

// Insts returns the recorded op stream, mostly for tests and the
// interactive monitor's disassembly view.
func (b *Builder) Insts() []Inst {
	return b.insts
}

// HasAtomicIntrinsic reports whether the bound back-end advertises a
// host CAS/fetch-add intrinsic at the given width; front ends branch at
// translation time on this to pick the HST fallback path instead.
func (b *Builder) HasAtomicIntrinsic(width int) bool {
	if b.backend == nil {
		return false
	}
	return b.backend.HasAtomicIntrinsic(width)
}

// GotoTB records a direct intra-page jump into chain slot N, to be
// patched by the translation cache once the target TB exists (§4.5).
func (b *Builder) GotoTB(slot int) {
	b.Emit(Inst{Op: OpGotoTB, TBSlot: slot})
}

// ExitTB ends the TB allowing the dispatcher to chain directly to the
// next one.
func (b *Builder) ExitTB() {
	b.Emit(Inst{Op: OpExitTB})
}

// ExitTBNoChaining ends the TB forcing a full re-dispatch: used for
// cross-page/indirect jumps, exceptions, mode-changing CSR writes,
// MRET/SRET/WFI and FENCE.I (§4.5).
func (b *Builder) ExitTBNoChaining() {
	b.Emit(Inst{Op: OpExitTBNoChaining})
}
