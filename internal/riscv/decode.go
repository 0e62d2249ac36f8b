/*
   RISC-V scalar guest decoder and micro-op emitter.

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

// Package riscv decodes a guest RISC-V 32/64 instruction stream and
// emits the equivalent micro-op sequence (§4.1), including the LR/SC and
// AMOCAS sequences that exercise the HST substrate (§4.3) and the OP-V/
// LOAD-FP/STORE-FP dispatch into the vector engine (§4.4).
package riscv

import (
	"fmt"

	"github.com/rcornwell/dbtcore/internal/ir"
	"github.com/rcornwell/dbtcore/internal/riscv/vector"
	"github.com/rcornwell/dbtcore/internal/state"
	"github.com/rcornwell/dbtcore/internal/tb"
	"github.com/rcornwell/dbtcore/util/debug"
)

func init() {
	debug.RegisterFlags("RISCV", "DECODE", "AMO", "COMPRESSED")
}

// MemReader is the external ld*_code-equivalent collaborator (§6).
type MemReader interface {
	FetchHalf(pc uint64) (uint16, error)
}

// DataMem is the external qemu_ld*/st*-equivalent collaborator: guest
// data memory, addressed in bytes, width given explicitly.
type DataMem interface {
	Load(addr uint64, width int) (uint64, error)
	Store(addr uint64, width int, val uint64) error
}

// IllegalInstruction mirrors x86.IllegalInstruction for the RISC-V side:
// raised with mtval set to the full instruction word (§4.1, §7).
type IllegalInstruction struct {
	PC    uint64
	MTval uint64
}

func (e *IllegalInstruction) Error() string {
	return fmt.Sprintf("illegal instruction at pc=%#x: %#x", e.PC, e.MTval)
}

// AddrMisaligned is raised when a control transfer targets a 2-byte- but
// not 4-byte-aligned address and RVC is disabled (§4.1, §7).
type AddrMisaligned struct {
	Target uint64
}

func (e *AddrMisaligned) Error() string {
	return fmt.Sprintf("instruction address misaligned: target=%#x", e.Target)
}

// Translator decodes guest RISC-V code into IR for one core.
type Translator struct {
	mem    MemReader
	data   DataMem
	exts   ExtensionSet
	is64   bool
	rvc    bool
}

// NewTranslator constructs a Translator.
func NewTranslator(mem MemReader, data DataMem, exts ExtensionSet, is64 bool) *Translator {
	rvc := exts != nil && exts.Enabled(ExtC)
	return &Translator{mem: mem, data: data, exts: exts, is64: is64, rvc: rvc}
}

func (t *Translator) require(ext Extension) bool {
	return t.exts != nil && t.exts.Enabled(ext)
}

// checkAligned enforces §4.1's JALR/branch alignment rule: targets that
// are 2-byte but not 4-byte aligned are illegal unless RVC is enabled.
func (t *Translator) checkAligned(target uint64) error {
	if target&0x1 != 0 {
		return &AddrMisaligned{Target: target}
	}
	if target&0x3 != 0 && !t.rvc {
		return &AddrMisaligned{Target: target}
	}
	return nil
}

// Translate decodes one instruction at dc.PC (which may be a 16-bit
// compressed form, expanded via ExpandCompressed first) and emits the
// equivalent IR. Returns the consumed byte length.
func (t *Translator) Translate(cpu *state.CPUState, dc *tb.DisasContext, b *ir.Builder) (int, error) {
	parcel, err := t.mem.FetchHalf(dc.PC)
	if err != nil {
		return 0, err
	}
	length, ok := DecodeLength(parcel)
	if !ok {
		mtval := uint64(parcel)
		if parcel&0x3 == 0x3 {
			// tail bits 11 mark an encoding of at least 32 bits: report both parcels
			if hi, hiErr := t.mem.FetchHalf(dc.PC + 2); hiErr == nil {
				mtval |= uint64(hi) << 16
			}
		}
		return 0, &IllegalInstruction{PC: dc.PC, MTval: mtval}
	}

	if length == 2 {
		debug.Logf("RISCV", "COMPRESSED", "pc=%#x parcel=%#04x", dc.PC, parcel)
		word, expErr := ExpandCompressed(parcel)
		if expErr != nil {
			return 0, &IllegalInstruction{PC: dc.PC, MTval: uint64(parcel)}
		}
		if err := t.execWord(cpu, dc, b, word); err != nil {
			return 0, err
		}
		return 2, nil
	}

	if length != 4 {
		// 48/64/80+-bit forms are not in this representative subset;
		// the spec names only the length-decode contract for them.
		return 0, &IllegalInstruction{PC: dc.PC, MTval: uint64(parcel)}
	}

	hi, err := t.mem.FetchHalf(dc.PC + 2)
	if err != nil {
		return 0, err
	}
	word := uint32(parcel) | uint32(hi)<<16
	if err := t.execWord(cpu, dc, b, word); err != nil {
		return 0, err
	}
	return 4, nil
}

func signExtend(v uint32, bits int) int64 {
	shift := 32 - bits
	return int64(int32(v<<shift)) >> shift
}

// execWord decodes a 32-bit RISC-V instruction word (already expanded if
// it originated from a compressed form) and emits IR/mutates cpu state.
func (t *Translator) execWord(cpu *state.CPUState, dc *tb.DisasContext, b *ir.Builder, word uint32) error {
	opcode := word & 0x7F
	rd := int((word >> 7) & 0x1F)
	funct3 := (word >> 12) & 0x7
	rs1 := int((word >> 15) & 0x1F)
	rs2 := int((word >> 20) & 0x1F)
	funct7 := (word >> 25) & 0x7F

	switch opcode {
	case 0x13: // OP-IMM: ADDI/XORI/ORI/ANDI; shifts and SLTI/SLTIU are not decoded
		imm := signExtend(word>>20, 12)
		src := cpu.ReadGPR(rs1)
		switch funct3 {
		case 0:
			cpu.WriteGPR(rd, uint64(int64(src)+imm))
		case 4:
			cpu.WriteGPR(rd, src^uint64(imm))
		case 6:
			cpu.WriteGPR(rd, src|uint64(imm))
		case 7:
			cpu.WriteGPR(rd, src&uint64(imm))
		default:
			return &IllegalInstruction{PC: dc.PC, MTval: uint64(word)}
		}
		return nil

	case 0x33: // OP: ADD/SUB/XOR/OR/AND and M-extension MUL/DIV/REM; shifts and SLT/SLTU are not decoded
		if funct7 == 0x01 {
			if !t.require(ExtM) {
				return &IllegalInstruction{PC: dc.PC, MTval: uint64(word)}
			}
			return t.execMExtension(cpu, rd, rs1, rs2, funct3)
		}
		lhs, rhs := cpu.ReadGPR(rs1), cpu.ReadGPR(rs2)
		var result uint64
		switch {
		case funct3 == 0 && funct7 == 0x20:
			result = lhs - rhs
		case funct3 == 0:
			result = lhs + rhs
		case funct3 == 4:
			result = lhs ^ rhs
		case funct3 == 6:
			result = lhs | rhs
		case funct3 == 7:
			result = lhs & rhs
		default:
			return &IllegalInstruction{PC: dc.PC, MTval: uint64(word)}
		}
		cpu.WriteGPR(rd, result)
		return nil

	case 0x63: // BRANCH
		offset := branchImm(word)
		target := uint64(int64(dc.PC) + offset)
		taken := evalBranch(cpu, rs1, rs2, funct3)
		if taken {
			if err := t.checkAligned(target); err != nil {
				return err
			}
			cpu.PC = target
		}
		dc.Terminate(tb.DisasBranch)
		b.ExitTBNoChaining()
		return nil

	case 0x6F: // JAL
		offset := jalImm(word)
		target := uint64(int64(dc.PC) + offset)
		if err := t.checkAligned(target); err != nil {
			return err
		}
		cpu.WriteGPR(rd, dc.PC+4)
		cpu.PC = target
		dc.Terminate(tb.DisasTBJump)
		b.GotoTB(0)
		b.ExitTB()
		return nil

	case 0x67: // JALR
		imm := signExtend(word>>20, 12)
		target := uint64(int64(cpu.ReadGPR(rs1)) + imm)
		target &^= 1
		if err := t.checkAligned(target); err != nil {
			return err
		}
		cpu.WriteGPR(rd, dc.PC+4)
		cpu.PC = target
		dc.Terminate(tb.DisasBranch)
		b.ExitTBNoChaining()
		return nil

	case 0x2F: // AMO, including LR/SC and AMOCAS
		return t.execAMO(cpu, rd, rs1, rs2, funct3, funct7, word)

	case 0x73: // SYSTEM: ECALL/EBREAK/CSR*
		return t.execSystem(cpu, dc, b, rd, rs1, funct3, word)

	case 0x0F: // MISC-MEM: FENCE / FENCE.I
		if funct3 == 1 {
			if !t.require(ExtZifencei) {
				return &IllegalInstruction{PC: dc.PC, MTval: uint64(word)}
			}
			dc.Terminate(tb.DisasStop)
			b.ExitTBNoChaining()
		}
		return nil

	case 0x57: // OP-V: vector arithmetic and vset{i}vl{i} (§4.4)
		return t.execVectorOp(cpu, dc, rd, rs1, rs2, funct3, funct7, word)

	case 0x07: // LOAD-FP: vector unit-stride/strided/indexed/fault-first loads
		return t.execVectorLoad(cpu, dc, rd, rs1, word)

	case 0x27: // STORE-FP: vector unit-stride/strided/indexed stores
		return t.execVectorStore(cpu, dc, rs1, word)
	}

	return &IllegalInstruction{PC: dc.PC, MTval: uint64(word)}
}

func (t *Translator) execMExtension(cpu *state.CPUState, rd, rs1, rs2 int, funct3 uint32) error {
	lhs, rhs := cpu.ReadGPR(rs1), cpu.ReadGPR(rs2)
	switch funct3 {
	case 0: // MUL
		cpu.WriteGPR(rd, lhs*rhs)
	case 4: // DIV (signed)
		if rhs == 0 {
			cpu.WriteGPR(rd, ^uint64(0)) // architectural sentinel: -1 quotient (§7)
			return nil
		}
		cpu.WriteGPR(rd, uint64(int64(lhs)/int64(rhs)))
	case 6: // REM (signed)
		if rhs == 0 {
			cpu.WriteGPR(rd, lhs) // architectural sentinel: dividend remainder (§7)
			return nil
		}
		cpu.WriteGPR(rd, uint64(int64(lhs)%int64(rhs)))
	}
	return nil
}

func branchImm(word uint32) int64 {
	b12 := (word >> 31) & 1
	b11 := (word >> 7) & 1
	b10_5 := (word >> 25) & 0x3F
	b4_1 := (word >> 8) & 0xF
	raw := (b12 << 12) | (b11 << 11) | (b10_5 << 5) | (b4_1 << 1)
	return signExtend(raw, 13)
}

func jalImm(word uint32) int64 {
	b20 := (word >> 31) & 1
	b19_12 := (word >> 12) & 0xFF
	b11 := (word >> 20) & 1
	b10_1 := (word >> 21) & 0x3FF
	raw := (b20 << 20) | (b19_12 << 12) | (b11 << 11) | (b10_1 << 1)
	return signExtend(raw, 21)
}

func evalBranch(cpu *state.CPUState, rs1, rs2 int, funct3 uint32) bool {
	a, bv := cpu.ReadGPR(rs1), cpu.ReadGPR(rs2)
	switch funct3 {
	case 0: // BEQ
		return a == bv
	case 1: // BNE
		return a != bv
	case 4: // BLT
		return int64(a) < int64(bv)
	case 5: // BGE
		return int64(a) >= int64(bv)
	case 6: // BLTU
		return a < bv
	case 7: // BGEU
		return a >= bv
	}
	return false
}

// execAMO implements LR.W/SC.W (scenarios 1/2, §8) and AMOCAS (scenario
// 3, §8) against the HST substrate described in §4.3.
func (t *Translator) execAMO(cpu *state.CPUState, rd, rs1, rs2 int, funct3, funct7, word uint32) error {
	addr := cpu.ReadGPR(rs1)
	width := 32
	if funct3 == 3 {
		width = 64
	}
	op := funct7 >> 2
	debug.Logf("RISCV", "AMO", "addr=%#x op=%#x width=%d", addr, op, width)

	switch op {
	case 0x02: // LR
		val, err := t.data.Load(addr, width)
		if err != nil {
			return err
		}
		cpu.Store.Set(addr, cpu.CoreID)
		cpu.WriteGPR(rd, signExtendLoad(val, width))
		return nil

	case 0x03: // SC
		ok := cpu.Store.Check(addr, cpu.CoreID)
		if ok {
			if err := t.data.Store(addr, width, cpu.ReadGPR(rs2)); err != nil {
				return err
			}
			cpu.WriteGPR(rd, 0) // success
		} else {
			cpu.WriteGPR(rd, 1) // failure
		}
		return nil

	case 0x05: // AMOCAS (Zacas)
		if !t.require(ExtZacas) {
			return &IllegalInstruction{PC: cpu.PC, MTval: uint64(word)}
		}
		return t.execAMOCAS(cpu, rd, rs1, rs2, width)
	}

	return &IllegalInstruction{PC: cpu.PC, MTval: uint64(word)}
}

func signExtendLoad(val uint64, width int) uint64 {
	if width == 32 {
		return uint64(int64(int32(uint32(val))))
	}
	return val
}

// execAMOCAS implements the RV32 AMOCAS.D double-register-pair form
// (scenario 3, §8): expected value lives in {rd+1,rd}, new value in
// {rs2+1,rs2}; uses the HST's 128-bit lock pair since no host CAS
// intrinsic is assumed available in this port.
func (t *Translator) execAMOCAS(cpu *state.CPUState, rd, rs1, rs2 int, width int) error {
	addr := cpu.ReadGPR(rs1)
	if width != 64 || t.is64 {
		old, err := t.data.Load(addr, width)
		if err != nil {
			return err
		}
		expected := cpu.ReadGPR(rd)
		if old == expected {
			if err := t.data.Store(addr, width, cpu.ReadGPR(rs2)); err != nil {
				return err
			}
		}
		cpu.WriteGPR(rd, old)
		return nil
	}

	// RV32 AMOCAS.D: 64-bit compare-and-swap via a locked pair of HST
	// entries covering the low/high words, per §4.3 Lock_128/Unlock_128.
	addrHi := addr + 8
	cpu.Store.Lock128(addr, addrHi, cpu.CoreID)
	defer cpu.Store.Unlock128(addr, addrHi)

	oldLo, err := t.data.Load(addr, 32)
	if err != nil {
		return err
	}
	oldHi, err := t.data.Load(addrHi, 32)
	if err != nil {
		return err
	}
	old := oldLo | oldHi<<32

	expLo := cpu.ReadGPR(rd)
	expHi := cpu.ReadGPR(rd + 1)
	expected := expLo | expHi<<32

	if old == expected {
		newLo := cpu.ReadGPR(rs2)
		newHi := cpu.ReadGPR(rs2 + 1)
		if err := t.data.Store(addr, 32, newLo); err != nil {
			return err
		}
		if err := t.data.Store(addrHi, 32, newHi); err != nil {
			return err
		}
	}
	cpu.WriteGPR(rd, old&0xFFFFFFFF)
	cpu.WriteGPR(rd+1, old>>32)
	return nil
}

func (t *Translator) execSystem(cpu *state.CPUState, dc *tb.DisasContext, b *ir.Builder, rd, rs1 int, funct3 uint32, word uint32) error {
	switch funct3 {
	case 0: // ECALL/EBREAK/MRET/SRET/WFI
		switch word >> 20 {
		case 0x0: // ECALL
			dc.Terminate(tb.DisasStop)
			b.ExitTBNoChaining()
			return nil
		case 0x1: // EBREAK (§7 Breakpoint)
			dc.Terminate(tb.DisasStop)
			b.ExitTBNoChaining()
			return nil
		case 0x302: // MRET
			dc.Terminate(tb.DisasStop)
			b.ExitTBNoChaining()
			return nil
		case 0x102: // SRET
			dc.Terminate(tb.DisasStop)
			b.ExitTBNoChaining()
			return nil
		case 0x105: // WFI
			dc.Terminate(tb.DisasStop)
			b.ExitTBNoChaining()
			return nil
		}
		return nil
	default: // CSRRW/CSRRS/CSRRC and immediate forms
		if !t.require(ExtZicsr) {
			// Open Question resolution (§9/§14): raise rather than
			// log-and-proceed.
			return &IllegalInstruction{PC: dc.PC, MTval: uint64(word)}
		}
		csr := uint32(word >> 20)
		old := cpu.CSR[csr]
		val := cpu.ReadGPR(rs1)
		if funct3 >= 5 {
			val = uint64(rs1) // CSRR*I: the rs1 field is a 5-bit zero-extended immediate
		}
		switch funct3 & 3 {
		case 1: // CSRRW
			cpu.CSR[csr] = val
		case 2: // CSRRS
			cpu.CSR[csr] = old | val
		case 3: // CSRRC
			cpu.CSR[csr] = old &^ val
		}
		cpu.WriteGPR(rd, old)
		return nil
	}
}

// execVectorOp dispatches OP-V (§4.4): every form is gated on ExtZve32x;
// funct3==7 is one of the three vset* configuration forms, everything
// else is arithmetic additionally gated on cpu.Vec.VIll (checked before
// any op but vset*, per the spec's translation-time vill-check practice).
func (t *Translator) execVectorOp(cpu *state.CPUState, dc *tb.DisasContext, rd, rs1, rs2 int, funct3, funct7 uint32, word uint32) error {
	if !t.require(ExtZve32x) {
		return &IllegalInstruction{PC: dc.PC, MTval: uint64(word)}
	}
	if funct3 == 7 {
		return t.execSetVL(cpu, rd, rs1, rs2, word)
	}

	if cpu.Vec.VIll {
		return &IllegalInstruction{PC: dc.PC, MTval: uint64(word)}
	}

	unmasked := funct7&1 == 1
	funct6 := funct7 >> 1
	eng := vector.NewEngine(t.data, &cpu.Vec, cpu.VRegBase)
	mask := cpu.VRegBase[:cpu.Vec.VLenB]

	switch funct3 {
	case 0: // OPIVV: vd, vs2(=rs2 field), vs1(=rs1 field)
		op, ok := vectorBinaryOp(funct6)
		if !ok {
			return &IllegalInstruction{PC: dc.PC, MTval: uint64(word)}
		}
		return eng.BinaryOp(rd, rs1, rs2, !unmasked, mask, op)
	}

	return &IllegalInstruction{PC: dc.PC, MTval: uint64(word)}
}

// vectorBinaryOp maps an OPIVV funct6 to its element-wise operation,
// applied as op(vs2[ei], vs1[ei]) per the "vd, vs2, vs1" operand order
// the V extension's assembly syntax uses (§4.4).
func vectorBinaryOp(funct6 uint32) (func(a, b uint64) uint64, bool) {
	switch funct6 {
	case 0x00: // vadd.vv
		return func(a, b uint64) uint64 { return a + b }, true
	case 0x02: // vsub.vv
		return func(a, b uint64) uint64 { return a - b }, true
	case 0x09: // vand.vv
		return func(a, b uint64) uint64 { return a & b }, true
	case 0x0A: // vor.vv
		return func(a, b uint64) uint64 { return a | b }, true
	case 0x0B: // vxor.vv
		return func(a, b uint64) uint64 { return a ^ b }, true
	}
	return nil, false
}

// execSetVL implements vsetvli/vsetvl/vsetivli (§4.4). Only the common
// case of a well-formed vtype encoding is modeled; malformed vtype bits
// surface as VIll via vector.SetVL, matching the guest-visible contract.
func (t *Translator) execSetVL(cpu *state.CPUState, rd, rs1, rs2 int, word uint32) error {
	vlenBits := cpu.Vec.VLenB * 8

	var zimm uint32
	var avl uint64
	var setToMax bool

	switch {
	case word>>31 == 0: // vsetvli rd, rs1, zimm[10:0]
		zimm = (word >> 20) & 0x7FF
		avl, setToMax = t.resolveAVL(cpu, rd, rs1)

	case word>>30 == 0x3: // vsetivli rd, uimm[4:0], zimm[9:0]
		zimm = (word >> 20) & 0x3FF
		avl = uint64(rs1) // rs1 field doubles as a 5-bit unsigned AVL immediate

	default: // vsetvl rd, rs1, rs2: vtype comes from the rs2 register
		zimm = uint32(cpu.ReadGPR(rs2)) & 0x7FF
		avl, setToMax = t.resolveAVL(cpu, rd, rs1)
	}

	vlmul := zimm & 0x7
	vsew := (zimm >> 3) & 0x7
	vta := zimm&0x40 != 0
	vma := zimm&0x80 != 0

	cfg, _ := vector.SetVL(vlenBits, avl, 8<<vsew, uint(vlmul), vta, vma, setToMax)
	cpu.Vec = cfg
	cpu.WriteGPR(rd, cfg.VL)
	return nil
}

// resolveAVL implements the rs1==x0 special cases shared by vsetvli and
// vsetvl: rs1==x0 with rd!=x0 requests VLMAX; rs1==x0 with rd==x0 keeps
// the current vl (the spec's "unchanged" slow path is simplified here to
// always report VLMAX-capable callers explicitly requesting it).
func (t *Translator) resolveAVL(cpu *state.CPUState, rd, rs1 int) (uint64, bool) {
	if rs1 == 0 {
		if rd == 0 {
			return cpu.Vec.VL, false
		}
		return 0, true
	}
	return cpu.ReadGPR(rs1), false
}

// execVectorLoad dispatches the LOAD-FP encodings this port treats as
// exclusively vector loads (§4.4): unit-stride, strided, indexed, and
// fault-first, gated by VIll and ExtZve32x exactly like arithmetic.
func (t *Translator) execVectorLoad(cpu *state.CPUState, dc *tb.DisasContext, rd, rs1 int, word uint32) error {
	if !t.require(ExtZve32x) {
		return &IllegalInstruction{PC: dc.PC, MTval: uint64(word)}
	}
	if cpu.Vec.VIll {
		return &IllegalInstruction{PC: dc.PC, MTval: uint64(word)}
	}

	nf := int((word >> 29) & 0x7)
	mop := (word >> 26) & 0x3
	unmasked := (word>>25)&1 == 1
	lumopOrVs2 := int((word >> 20) & 0x1F)
	widthField := (word >> 12) & 0x7

	eew, ok := vector.EEWFromField(widthField) // index EEW for indexed forms
	if !ok {
		return &IllegalInstruction{PC: dc.PC, MTval: uint64(word)}
	}

	eng := vector.NewEngine(t.data, &cpu.Vec, cpu.VRegBase)
	mask := cpu.VRegBase[:cpu.Vec.VLenB]
	addr := cpu.ReadGPR(rs1)
	masked := !unmasked

	switch mop {
	case 0: // unit-stride family, selected by the lumop sub-field
		switch lumopOrVs2 {
		case 0x08: // vl<nf>re<eew>.v: whole-register load
			return eng.WholeRegisterLoad(rd, addr, nf)
		case 0x0B: // vlm.v: mask load
			return eng.MaskLoad(rd, addr)
		case 0x10: // vle<eew>ff.v: fault-first load
			return eng.FaultFirstLoad(rd, addr, nf, masked, mask)
		default: // vle<eew>.v
			return eng.UnitStrideLoad(rd, addr, nf, masked, mask)
		}
	case 2: // vlse<eew>.v: strided, stride in rs2 (GPR)
		stride := int64(cpu.ReadGPR(lumopOrVs2))
		return eng.StridedLoad(rd, addr, stride, nf, masked, mask)
	case 1, 3: // vlxei<eew>.v: indexed (unordered/ordered), index in vs2
		return eng.IndexedLoad(rd, addr, lumopOrVs2, eew/8, nf, masked, mask)
	}

	return &IllegalInstruction{PC: dc.PC, MTval: uint64(word)}
}

// execVectorStore mirrors execVectorLoad for STORE-FP.
func (t *Translator) execVectorStore(cpu *state.CPUState, dc *tb.DisasContext, rs1 int, word uint32) error {
	if !t.require(ExtZve32x) {
		return &IllegalInstruction{PC: dc.PC, MTval: uint64(word)}
	}
	if cpu.Vec.VIll {
		return &IllegalInstruction{PC: dc.PC, MTval: uint64(word)}
	}

	vs := int((word >> 7) & 0x1F) // vs3: the data register group, same field as rd
	nf := int((word >> 29) & 0x7)
	mop := (word >> 26) & 0x3
	unmasked := (word>>25)&1 == 1
	sumopOrVs2 := int((word >> 20) & 0x1F)
	widthField := (word >> 12) & 0x7

	eew, ok := vector.EEWFromField(widthField)
	if !ok {
		return &IllegalInstruction{PC: dc.PC, MTval: uint64(word)}
	}

	eng := vector.NewEngine(t.data, &cpu.Vec, cpu.VRegBase)
	mask := cpu.VRegBase[:cpu.Vec.VLenB]
	addr := cpu.ReadGPR(rs1)
	masked := !unmasked

	switch mop {
	case 0:
		switch sumopOrVs2 {
		case 0x08: // vs<nf>r.v: whole-register store
			return eng.WholeRegisterStore(vs, addr, nf)
		case 0x0B: // vsm.v: mask store
			return eng.MaskStore(vs, addr)
		default: // vse<eew>.v
			return eng.UnitStrideStore(vs, addr, nf, masked, mask)
		}
	case 2: // vsse<eew>.v
		stride := int64(cpu.ReadGPR(sumopOrVs2))
		return eng.StridedStore(vs, addr, stride, nf, masked, mask)
	case 1, 3: // vsxei<eew>.v
		return eng.IndexedStore(vs, addr, sumopOrVs2, eew/8, nf, masked, mask)
	}

	return &IllegalInstruction{PC: dc.PC, MTval: uint64(word)}
}
