/*
   Exception and interrupt priority dispatch.

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

// Package interrupt resolves which pending exception/interrupt a core
// should service next, following the fixed architectural priority orders
// in §4.6/§7 rather than delivery order. Actual vector dispatch (pushing
// a trap frame, updating mode/CSR state) is the core driver's job; this
// package only answers "which one, if any, fires now".
package interrupt

// X86Pending is the bitset of latched x86 interrupt/exception sources a
// core driver feeds into X86ProcessInterrupt.
type X86Pending struct {
	Init bool
	SIPI bool
	SMI  bool
	NMI  bool
	MCE  bool
	Hard bool // INTR pin, gated by EFlags.IF
	VIRQ bool // virtual IRQ (SVM/VMX nested delivery)
}

// X86Source names one resolved x86 interrupt/exception source.
type X86Source int

const (
	X86None X86Source = iota
	X86Init
	X86SIPI
	X86SMI
	X86NMI
	X86MCE
	X86Hard
	X86VIRQ
)

// X86ProcessInterrupt resolves the highest-priority pending x86 source,
// in the fixed order INIT > SIPI > SMI > NMI > MCE > HARD > VIRQ (§4.6).
// ifFlag is EFlags.IF; hardware INTR is masked when it is clear.
func X86ProcessInterrupt(p X86Pending, ifFlag bool) X86Source {
	switch {
	case p.Init:
		return X86Init
	case p.SIPI:
		return X86SIPI
	case p.SMI:
		return X86SMI
	case p.NMI:
		return X86NMI
	case p.MCE:
		return X86MCE
	case p.Hard && ifFlag:
		return X86Hard
	case p.VIRQ:
		return X86VIRQ
	}
	return X86None
}

// RISCVPending is the bitset of latched RISC-V trap sources.
type RISCVPending struct {
	NMI        bool
	MachineExt bool
	MachineSoft bool
	MachineTimer bool
	SupervisorExt bool
	SupervisorSoft bool
	SupervisorTimer bool
}

// RISCVSource names one resolved RISC-V trap source.
type RISCVSource int

const (
	RISCVNone RISCVSource = iota
	RISCVNMI
	RISCVMachineExt
	RISCVMachineSoft
	RISCVMachineTimer
	RISCVSupervisorExt
	RISCVSupervisorSoft
	RISCVSupervisorTimer
)

// RISCVProcessInterrupt resolves the highest-priority pending RISC-V
// trap. In debug mode every interrupt source, NMI included, is masked
// (§4.6: "in debug mode, all interrupts including NMI are masked and
// WFI is a NOP"). Otherwise NMI is serviced before any ordinary trap,
// which then follows the privileged-spec fixed order: machine external
// > machine software > machine timer > supervisor external > supervisor
// software > supervisor timer.
func RISCVProcessInterrupt(p RISCVPending, debugMode bool) RISCVSource {
	if debugMode {
		return RISCVNone
	}
	if p.NMI {
		return RISCVNMI
	}
	switch {
	case p.MachineExt:
		return RISCVMachineExt
	case p.MachineSoft:
		return RISCVMachineSoft
	case p.MachineTimer:
		return RISCVMachineTimer
	case p.SupervisorExt:
		return RISCVSupervisorExt
	case p.SupervisorSoft:
		return RISCVSupervisorSoft
	case p.SupervisorTimer:
		return RISCVSupervisorTimer
	}
	return RISCVNone
}
