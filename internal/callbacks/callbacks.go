/*
   External callback surface (§6 External Interfaces).

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

// Package callbacks models the hook/profiler/interrupt-controller
// collaborator surface a core driver calls out to (§6). Adapted from
// emu/device/device.go's Device interface: that interface gave every
// S/370 peripheral one fixed shape (StartIO/StartCmd/HaltIO/InitDev);
// here the equivalent fixed shape belongs to whatever external system
// wants visibility into a running core -- a debugger, a profiler, an
// interrupt controller model.
package callbacks

// OpcodeHook fires before the opcode at pc executes, when the owning
// core's HookState has that opcode's bit set (§3.1).
type OpcodeHook interface {
	OnOpcode(coreID uint32, pc uint64, opcode uint32)
}

// GPRHook fires after a general register write, when the owning core's
// GPRHookMask has that register's bit set (§3.1).
type GPRHook interface {
	OnGPRWrite(coreID uint32, reg int, val uint64)
}

// StackHook fires on a push/pop-shaped stack-pointer adjustment, used by
// an external profiler to track call-frame depth (§3.1 ProfilerState).
type StackHook interface {
	OnStackAdjust(coreID uint32, prevSP, newSP uint64)
}

// InterruptController is queried by a core's driver loop between TBs to
// learn about externally-latched interrupt sources (timer, device IRQ
// lines, IPIs) that the core itself has no other way to observe (§4.6).
type InterruptController interface {
	Pending(coreID uint32) (source uint32, valid bool)
	Acknowledge(coreID uint32, source uint32)
}

// Registry collects the optional hook implementations a particular
// emulator embedding wants wired in; nil fields mean "no hook", checked
// by the caller before invoking.
type Registry struct {
	Opcode     OpcodeHook
	GPR        GPRHook
	Stack      StackHook
	Interrupts InterruptController
}

// FireOpcode dispatches to the opcode hook if one is registered.
func (r *Registry) FireOpcode(coreID uint32, pc uint64, opcode uint32) {
	if r.Opcode != nil {
		r.Opcode.OnOpcode(coreID, pc, opcode)
	}
}

// FireGPRWrite dispatches to the GPR-write hook if one is registered.
func (r *Registry) FireGPRWrite(coreID uint32, reg int, val uint64) {
	if r.GPR != nil {
		r.GPR.OnGPRWrite(coreID, reg, val)
	}
}

// FireStackAdjust dispatches to the stack hook if one is registered.
func (r *Registry) FireStackAdjust(coreID uint32, prevSP, newSP uint64) {
	if r.Stack != nil {
		r.Stack.OnStackAdjust(coreID, prevSP, newSP)
	}
}
