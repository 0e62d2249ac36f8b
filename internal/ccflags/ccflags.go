/*
   Lazy x86 condition-code evaluation.

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

// Package ccflags computes x86 EFLAGS from the lazy (cc_op, cc_src,
// cc_dst) triplet instead of materialising them on every flag-defining
// instruction (§4.2). Every flag-setting opcode handler in the x86 front
// end ends with exactly one call into this package, the same one
// eager-assignment-per-handler discipline the teacher CPU uses for its
// single `cc` field (emu/cpu/cpu_standard.go), generalized here to carry
// enough information to reconstruct the full word on demand.
package ccflags

import "github.com/rcornwell/dbtcore/internal/state"

// EFlags bit positions this package computes.
const (
	FlagCF uint64 = 1 << 0
	FlagPF uint64 = 1 << 2
	FlagAF uint64 = 1 << 4
	FlagZF uint64 = 1 << 6
	FlagSF uint64 = 1 << 7
	FlagOF uint64 = 1 << 11
)

// Cond names the conditions the x86 Jcc/SETcc/CMOVcc families test.
type Cond int

const (
	CondO Cond = iota
	CondNO
	CondB // CF=1
	CondAE
	CondE // ZF=1
	CondNE
	CondBE // CF=1 or ZF=1
	CondA
	CondS
	CondNS
	CondP
	CondNP
	CondL
	CondGE
	CondLE
	CondG
)

func widthMask(op state.CCOp) uint64 {
	switch {
	case op == state.CCAddB || op == state.CCSubB || op == state.CCAdcB ||
		op == state.CCSbbB || op == state.CCLogicB || op == state.CCIncB ||
		op == state.CCDecB || op == state.CCShlB || op == state.CCSarB || op == state.CCMulB:
		return 0xff
	case op == state.CCAddW || op == state.CCSubW || op == state.CCAdcW ||
		op == state.CCSbbW || op == state.CCLogicW || op == state.CCIncW ||
		op == state.CCDecW || op == state.CCShlW || op == state.CCSarW || op == state.CCMulW:
		return 0xffff
	case op == state.CCAddL || op == state.CCSubL || op == state.CCAdcL ||
		op == state.CCSbbL || op == state.CCLogicL || op == state.CCIncL ||
		op == state.CCDecL || op == state.CCShlL || op == state.CCSarL || op == state.CCMulL:
		return 0xffffffff
	default:
		return 0xffffffffffffffff
	}
}

func signBit(op state.CCOp) uint64 {
	return (widthMask(op) >> 1) + 1
}

// UpdateOnArith stages the triplet for an add/sub/adc/sbb-kind result,
// equivalent to gen_op_update2_cc: cc_dst = result, cc_src = rhs operand.
func UpdateOnArith(cpu *state.CPUState, op state.CCOp, result, rhs uint64) {
	cpu.CC = state.CCState{Op: op, Dst: result, Src: rhs}
}

// UpdateOnLogicIncDec stages the triplet for logic/inc/dec-kind results,
// equivalent to gen_op_update1_cc: only cc_dst matters, cc_src is unused.
func UpdateOnLogicIncDec(cpu *state.CPUState, op state.CCOp, result uint64) {
	cpu.CC = state.CCState{Op: op, Dst: result}
}

// UpdateOnShift stages the triplet for a shift/rotate-kind result,
// equivalent to gen_op_update_neg_cc but generalized to carry the last
// bit shifted out in cc_src, as shift-kinds require for CF.
func UpdateOnShift(cpu *state.CPUState, op state.CCOp, result, lastBitOut uint64) {
	cpu.CC = state.CCState{Op: op, Dst: result, Src: lastBitOut}
}

// SetEFlags promotes the lazy state directly to a materialised word,
// equivalent to tagging cc_op == CC_EFLAGS: cc_src holds the full value.
func SetEFlags(cpu *state.CPUState, eflags uint64) {
	cpu.CC = state.CCState{Op: state.CCEFlags, Src: eflags}
}

// UpdateCCOp promotes any pending lazy state to CC_DYNAMIC by forcing an
// immediate full-EFLAGS materialisation into cpu.EFlags. Required before
// any instruction that reads flags out-of-band: PUSHF, SAHF, interrupts,
// IRET (§4.2 Invariant).
func UpdateCCOp(cpu *state.CPUState) {
	cpu.EFlags = ComputeEFlags(cpu)
	cpu.CC = state.CCState{Op: state.CCDynamic}
}

// lhsAdd recovers the left-hand operand of an add-kind op: cc_dst - cc_src.
func lhsAdd(cc state.CCState) uint64 { return cc.Dst - cc.Src }

// lhsSub recovers the left-hand operand of a sub-kind op: cc_dst + cc_src.
func lhsSub(cc state.CCState) uint64 { return cc.Dst + cc.Src }

func isAddKind(op state.CCOp) bool {
	switch op {
	case state.CCAddB, state.CCAddW, state.CCAddL, state.CCAddQ,
		state.CCAdcB, state.CCAdcW, state.CCAdcL, state.CCAdcQ:
		return true
	}
	return false
}

func isSubKind(op state.CCOp) bool {
	switch op {
	case state.CCSubB, state.CCSubW, state.CCSubL, state.CCSubQ,
		state.CCSbbB, state.CCSbbW, state.CCSbbL, state.CCSbbQ:
		return true
	}
	return false
}

func isShiftKind(op state.CCOp) bool {
	switch op {
	case state.CCShlB, state.CCShlW, state.CCShlL, state.CCShlQ,
		state.CCSarB, state.CCSarW, state.CCSarL, state.CCSarQ:
		return true
	}
	return false
}

// ComputeEFlags reconstructs the full EFLAGS word from whatever is
// pending in cpu.CC, switching on cc_op — equivalent to
// gen_compute_eflags. If CC.Op is Dynamic, cpu.EFlags is already current
// and is returned unchanged.
func ComputeEFlags(cpu *state.CPUState) uint64 {
	cc := cpu.CC
	switch cc.Op {
	case state.CCDynamic:
		return cpu.EFlags
	case state.CCEFlags:
		return cc.Src
	}

	mask := widthMask(cc.Op)
	sign := signBit(cc.Op)
	var flags uint64

	dst := cc.Dst & mask
	if dst == 0 {
		flags |= FlagZF
	}
	if dst&sign != 0 {
		flags |= FlagSF
	}
	flags |= parityFlag(dst)

	switch {
	case isAddKind(cc.Op):
		lhs := lhsAdd(cc) & mask
		if cc.Dst&mask < lhs {
			flags |= FlagCF
		}
		if overflowAdd(lhs, cc.Src&mask, dst, sign) {
			flags |= FlagOF
		}
	case isSubKind(cc.Op):
		lhs := lhsSub(cc) & mask
		if lhs < cc.Src&mask {
			flags |= FlagCF
		}
		if overflowSub(lhs, cc.Src&mask, dst, sign) {
			flags |= FlagOF
		}
	case isShiftKind(cc.Op):
		if cc.Src&1 != 0 {
			flags |= FlagCF
		}
	}
	return flags
}

// ComputeEFlagsC returns only the CF bit, equivalent to
// gen_compute_eflags_c — the common case for Jcc/SETcc conditions that
// need nothing else.
func ComputeEFlagsC(cpu *state.CPUState) uint64 {
	return ComputeEFlags(cpu) & FlagCF
}

func parityFlag(v uint64) uint64 {
	b := byte(v)
	b ^= b >> 4
	b ^= b >> 2
	b ^= b >> 1
	if b&1 == 0 {
		return FlagPF
	}
	return 0
}

func overflowAdd(lhs, rhs, result, sign uint64) bool {
	return ((lhs^result)&(rhs^result))&sign != 0
}

func overflowSub(lhs, rhs, result, sign uint64) bool {
	return ((lhs^rhs)&(lhs^result))&sign != 0
}

// IsFastJccCase reports whether cond is decidable from only cc.Dst/cc.Src
// without a full EFLAGS reconstruction (§4.2 "Fast/slow-path table").
func IsFastJccCase(cc state.CCState, cond Cond) bool {
	switch {
	case isSubKind(cc.Op):
		switch cond {
		case CondE, CondNE, CondS, CondNS, CondB, CondAE, CondBE, CondA, CondL, CondGE, CondLE, CondG:
			return true
		}
	case isAddKind(cc.Op) || cc.Op == state.CCLogicB || cc.Op == state.CCLogicW ||
		cc.Op == state.CCLogicL || cc.Op == state.CCLogicQ ||
		cc.Op == state.CCIncB || cc.Op == state.CCIncW || cc.Op == state.CCIncL || cc.Op == state.CCIncQ ||
		cc.Op == state.CCDecB || cc.Op == state.CCDecW || cc.Op == state.CCDecL || cc.Op == state.CCDecQ ||
		isShiftKind(cc.Op):
		switch cond {
		case CondE, CondNE, CondS, CondNS:
			return true
		}
	}
	return false
}

// EvalFast evaluates cond directly against cc.Dst/cc.Src when
// IsFastJccCase(cc, cond) is true, specialising the sub-kind cases per
// §4.2 (e.g. JCC_Z compares cc_dst to zero; JCC_B compares lhs against
// cc_src with an unsigned condition) rather than paying for a full
// EFLAGS reconstruction.
func EvalFast(cc state.CCState, cond Cond) bool {
	mask := widthMask(cc.Op)
	dst := cc.Dst & mask
	sign := signBit(cc.Op)

	switch cond {
	case CondE:
		return dst == 0
	case CondNE:
		return dst != 0
	case CondS:
		return dst&sign != 0
	case CondNS:
		return dst&sign == 0
	}

	if !isSubKind(cc.Op) {
		return false
	}
	lhs := lhsSub(cc) & mask
	rhs := cc.Src & mask
	// signed conditions compare both operands sign-extended from the operand width
	slhs, srhs := int64(lhs), int64(rhs)
	if lhs&sign != 0 {
		slhs = int64(lhs | ^mask)
	}
	if rhs&sign != 0 {
		srhs = int64(rhs | ^mask)
	}
	switch cond {
	case CondB:
		return lhs < rhs
	case CondAE:
		return lhs >= rhs
	case CondBE:
		return lhs <= rhs
	case CondA:
		return lhs > rhs
	case CondL:
		return slhs < srhs
	case CondGE:
		return slhs >= srhs
	case CondLE:
		return slhs <= srhs
	case CondG:
		return slhs > srhs
	}
	return false
}
