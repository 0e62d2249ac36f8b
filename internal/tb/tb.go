/*
   Translation block and per-TB decode context.

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

// Package tb models the translation block (§3.2) and the live decode
// context (§3.4) a front end threads through one TB's worth of
// instruction decoding. TBs themselves are owned and cached by the
// translation-cache subsystem, an external collaborator; this package
// only carries the fields the core needs to describe one.
package tb

import "github.com/rcornwell/dbtcore/internal/state"

// DisasReason names why a TB's decode loop stopped.
type DisasReason int

const (
	DisasNone DisasReason = iota
	DisasBranch
	DisasStop
	DisasTBJump
	DisasPageCross
)

// Block is one straight-line run of translated guest code, terminated by
// a control transfer, a privilege-mode change, or a page boundary (§3.2).
type Block struct {
	EntryPC    uint64
	CodeFlags  uint32 // operand/address size, code size, etc. snapshotted at entry
	HostCode   []byte // opaque handle into the external back-end's code cache
	ChainSlots [2]*Block
	DoNotChain bool // forces re-resolution, e.g. after a CSR write that changes mode
}

// DisasContext is the live state of one in-flight TB translation.
type DisasContext struct {
	PC        uint64 // next byte to fetch
	Opcode    uint32 // raw opcode just fetched, kept for fault reporting
	Prefixes  uint32 // x86 prefix bitmask; unused by RISC-V/ARM64
	OpSize    int    // effective operand size in bits
	AddrSize  int    // effective address size in bits
	Rex       uint8  // x86-64 REX byte, 0 if absent
	SegOver   int    // x86 segment override selector, -1 if none
	Jumpable  bool   // false forces single-step semantics
	CCOp      state.CCOp
	MMUIndex  int
	IsJmp     DisasReason
}

// NewDisasContext starts a fresh decode context at entryPC.
func NewDisasContext(entryPC uint64, mmuIndex int) *DisasContext {
	return &DisasContext{
		PC:       entryPC,
		SegOver:  -1,
		Jumpable: true,
		MMUIndex: mmuIndex,
	}
}

// Terminate records why the TB's decode loop must stop; the first call
// wins and later calls are ignored whatever their reason. Whether the
// generated IR exits with or without chaining is decided by the front
// end, not here.
func (dc *DisasContext) Terminate(reason DisasReason) {
	if dc.IsJmp == DisasNone {
		dc.IsJmp = reason
	}
}

// Done reports whether the decode loop for this TB should stop.
func (dc *DisasContext) Done() bool {
	return dc.IsJmp != DisasNone
}
