/*
   ARM64 minimal instruction-fetch front end.

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

// Package arm64 is the minimal ARM64 front end named in the spec's scope
// note: fixed 4-byte instruction length, alignment checking, and enough
// opcode dispatch to prove the Translator shape generalises across a
// third guest architecture. It is intentionally not a complete A64
// decoder (§1 scope: ARM64 gets about 1% of the effort budget).
package arm64

import (
	"fmt"

	"github.com/rcornwell/dbtcore/util/debug"
)

func init() {
	debug.RegisterFlags("ARM64", "DECODE")
}

// MemReader is the external ldl_code-equivalent collaborator (§6).
type MemReader interface {
	FetchWord(pc uint64) (uint32, error)
}

// IllegalInstruction mirrors the other front ends' error shape (§7).
type IllegalInstruction struct {
	PC    uint64
	MTval uint32
}

func (e *IllegalInstruction) Error() string {
	return fmt.Sprintf("illegal instruction at pc=%#x: %#x", e.PC, e.MTval)
}

// PCAlignment is raised when PC is not 4-byte aligned, which A64 requires
// unconditionally (there is no compressed encoding).
type PCAlignment struct {
	PC uint64
}

func (e *PCAlignment) Error() string {
	return fmt.Sprintf("pc misaligned: %#x", e.PC)
}

// Translator decodes guest A64 code into IR for one core. The
// representative subset below covers unconditional branch (B), branch
// with link (BL), NOP, and RET -- enough surface for the TB-chaining and
// exception-dispatch paths to exercise a third architecture end to end.
type Translator struct {
	mem MemReader
}

// NewTranslator constructs a Translator bound to an instruction-fetch
// collaborator.
func NewTranslator(mem MemReader) *Translator {
	return &Translator{mem: mem}
}

// InstructionLength is always 4 for A64: no compressed encoding exists.
func (t *Translator) InstructionLength(pc uint64) (int, error) {
	if pc&0x3 != 0 {
		return 0, &PCAlignment{PC: pc}
	}
	return 4, nil
}

// FetchReg holds the decoded operand fields used by the subset below.
type FetchReg struct {
	Rd, Rn int
	Imm    int64
}

// Decode reads one 4-byte instruction at pc and reports its class and
// operands. It does not mutate CPU state or emit IR directly -- callers
// (the core driver) interpret the result, mirroring how x86/RISC-V keep
// decode and IR emission in the same call for brevity but this front end
// splits them since its surface is deliberately thin.
type Class int

const (
	ClassUnknown Class = iota
	ClassNOP
	ClassB
	ClassBL
	ClassRET
)

// Decode classifies the instruction word at pc.
func (t *Translator) Decode(pc uint64) (Class, FetchReg, error) {
	if pc&0x3 != 0 {
		return ClassUnknown, FetchReg{}, &PCAlignment{PC: pc}
	}
	word, err := t.mem.FetchWord(pc)
	if err != nil {
		return ClassUnknown, FetchReg{}, err
	}
	debug.Logf("ARM64", "DECODE", "pc=%#x word=%#x", pc, word)

	switch {
	case word == 0xD503201F: // NOP
		return ClassNOP, FetchReg{}, nil

	case word&0xFC000000 == 0x14000000: // B imm26
		imm := signExtend26(word & 0x03FFFFFF)
		return ClassB, FetchReg{Imm: imm * 4}, nil

	case word&0xFC000000 == 0x94000000: // BL imm26
		imm := signExtend26(word & 0x03FFFFFF)
		return ClassBL, FetchReg{Imm: imm * 4}, nil

	case word&0xFFFFFC1F == 0xD65F0000: // RET Xn (default X30)
		rn := int((word >> 5) & 0x1F)
		return ClassRET, FetchReg{Rn: rn}, nil
	}

	return ClassUnknown, FetchReg{}, &IllegalInstruction{PC: pc, MTval: word}
}

func signExtend26(v uint32) int64 {
	const bits = 26
	shift := 32 - bits
	return int64(int32(v<<shift)) >> shift
}
