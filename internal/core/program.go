/*
   Per-architecture Program adapters.

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

package core

import (
	"github.com/rcornwell/dbtcore/internal/arm64"
	"github.com/rcornwell/dbtcore/internal/interrupt"
	"github.com/rcornwell/dbtcore/internal/ir"
	"github.com/rcornwell/dbtcore/internal/mmu"
	"github.com/rcornwell/dbtcore/internal/riscv"
	"github.com/rcornwell/dbtcore/internal/state"
	"github.com/rcornwell/dbtcore/internal/tb"
	"github.com/rcornwell/dbtcore/internal/x86"
)

// nullBackend discards every emitted micro-op; actual host code
// generation is an external collaborator (ir.Backend) not modeled in
// this repository (§6).
type nullBackend struct{}

func (nullBackend) HasAtomicIntrinsic(width int) bool { return width <= 64 }
func (nullBackend) Emit(ir.Inst)                      {}

// X86Program glues the x86 front end to one core's CPU state and flat
// guest memory, implementing Program (§5 Concurrency model).
type X86Program struct {
	cpu      *state.CPUState
	mem      *mmu.Flat
	trans    *x86.Translator
	pending  interrupt.X86Pending
	ifEnable bool
}

// NewX86Program constructs a Program driving an x86 core against mem.
func NewX86Program(cpu *state.CPUState, mem *mmu.Flat, exts x86.ExtensionSet, longMode bool) *X86Program {
	return &X86Program{
		cpu:   cpu,
		mem:   mem,
		trans: x86.NewTranslator(mem, exts, longMode),
	}
}

// StepTB decodes and executes one instruction, standing in for a full
// TB loop (the translation cache and host codegen are external
// collaborators, §6); the loop-until-Terminate shape is modeled by the
// caller repeatedly invoking StepTB rather than by looping here.
func (p *X86Program) StepTB() (int, error) {
	dc := tb.NewDisasContext(p.cpu.PC, 0)
	n, err := p.trans.Translate(p.cpu, dc, ir.NewBuilder(nullBackend{}))
	if err != nil {
		return 0, err
	}
	p.cpu.PC += uint64(n)
	return 1, nil
}

// ServiceInterrupts applies x86's fixed interrupt priority order (§4.6).
func (p *X86Program) ServiceInterrupts() bool {
	src := interrupt.X86ProcessInterrupt(p.pending, p.ifEnable)
	return src != interrupt.X86None
}

// RISCVProgram glues the RISC-V front end to one core's CPU state.
type RISCVProgram struct {
	cpu       *state.CPUState
	mem       *mmu.Flat
	trans     *riscv.Translator
	pending   interrupt.RISCVPending
	debugMode bool
}

// NewRISCVProgram constructs a Program driving a RISC-V core against mem.
func NewRISCVProgram(cpu *state.CPUState, mem *mmu.Flat, exts riscv.ExtensionSet, is64 bool) *RISCVProgram {
	return &RISCVProgram{
		cpu:   cpu,
		mem:   mem,
		trans: riscv.NewTranslator(mem, mem, exts, is64),
	}
}

// StepTB decodes and executes one instruction.
func (p *RISCVProgram) StepTB() (int, error) {
	dc := tb.NewDisasContext(p.cpu.PC, 0)
	n, err := p.trans.Translate(p.cpu, dc, ir.NewBuilder(nullBackend{}))
	if err != nil {
		return 0, err
	}
	p.cpu.PC += uint64(n)
	return 1, nil
}

// ServiceInterrupts applies RISC-V's NMI-before-ordinary-trap order (§4.6).
func (p *RISCVProgram) ServiceInterrupts() bool {
	src := interrupt.RISCVProcessInterrupt(p.pending, p.debugMode)
	return src != interrupt.RISCVNone
}

// ARM64Program glues the minimal ARM64 front end to one core's CPU state.
type ARM64Program struct {
	cpu   *state.CPUState
	mem   *mmu.Flat
	trans *arm64.Translator
}

// NewARM64Program constructs a Program driving an ARM64 core against mem.
func NewARM64Program(cpu *state.CPUState, mem *mmu.Flat) *ARM64Program {
	return &ARM64Program{cpu: cpu, mem: mem, trans: arm64.NewTranslator(mem)}
}

// StepTB decodes and executes one instruction using the minimal ARM64
// class dispatch (§1 scope note: ARM64 gets about 1% of the effort
// budget, so this does not thread through an ir.Builder the way x86 and
// RISC-V do).
func (p *ARM64Program) StepTB() (int, error) {
	class, reg, err := p.trans.Decode(p.cpu.PC)
	if err != nil {
		return 0, err
	}
	switch class {
	case arm64.ClassB:
		p.cpu.PC = uint64(int64(p.cpu.PC) + reg.Imm)
	case arm64.ClassBL:
		p.cpu.WriteGPR(30, p.cpu.PC+4)
		p.cpu.PC = uint64(int64(p.cpu.PC) + reg.Imm)
	case arm64.ClassRET:
		p.cpu.PC = p.cpu.ReadGPR(reg.Rn)
	default:
		p.cpu.PC += 4
	}
	return 1, nil
}

// ServiceInterrupts is a no-op: the minimal ARM64 front end does not
// model GIC delivery (§1 scope note).
func (p *ARM64Program) ServiceInterrupts() bool { return false }
