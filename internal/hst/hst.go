/*
   HST - hash-table store test, the multi-core atomics substrate.

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

// Package hst implements the store table backing RISC-V LR/SC and AMOCAS,
// and the fine-grained fallback lock used when a back-end has no host
// compare-and-swap intrinsic for a given width (§4.3).
//
// Ported from the canonical implementation in tlib's
// hash-table-store-test.c; the parallel hst.c stub named in the spec's
// Open Questions is not ported.
package hst

import (
	"sync/atomic"

	"github.com/rcornwell/dbtcore/util/debug"
)

func init() {
	debug.RegisterFlags("HST", "SET", "CHECK", "LOCK")
}

// Sentinels. Both fields share the same "no one owns this" encoding.
const (
	NoCore   uint32 = 0xFFFFFFFF
	Unlocked uint32 = 0xFFFFFFFF
)

// entry is one hash-table-store-test slot. Both fields are mutated only
// through atomic operations since entries are shared across every core's
// goroutine.
type entry struct {
	lastCore atomic.Uint32
	lock     atomic.Uint32
}

// Table is the fixed-size, never-resized store table shared by every core
// in the process.
type Table struct {
	entries []entry
	shift   uint
	mask    uint64
}

// New allocates a store table with 2^bits entries, selected by
// index = (addr >> shift) & mask, matching the explicit-index hash the
// design notes (§9) call for in place of the C host-pointer-prefix trick.
func New(bits uint, shift uint) *Table {
	count := uint64(1) << bits
	t := &Table{
		entries: make([]entry, count),
		shift:   shift,
		mask:    count - 1,
	}
	t.Reset()
	return t
}

// Reset writes the HST_NO_CORE/HST_UNLOCKED sentinels into every entry.
// Called at process start and again after deserialising a saved emulator
// state, since reservations never survive a snapshot (§3.3 Lifecycle).
func (t *Table) Reset() {
	for i := range t.entries {
		t.entries[i].lastCore.Store(NoCore)
		t.entries[i].lock.Store(Unlocked)
	}
}

func (t *Table) index(addr uint64) uint64 {
	return (addr >> t.shift) & t.mask
}

// Set records that core is the most recent writer/reserver of addr's
// entry. Backs LR, which per §4.3 merely calls store_table_set.
func (t *Table) Set(addr uint64, core uint32) {
	debug.Logf("HST", "SET", "core %d reserves %#x", core, addr)
	t.entries[t.index(addr)].lastCore.Store(core)
}

// Check reports whether core still owns addr's entry, i.e. no other core
// has written to it since. Backs SC, which proceeds only on a true result.
func (t *Table) Check(addr uint64, core uint32) bool {
	ok := t.entries[t.index(addr)].lastCore.Load() == core
	debug.Logf("HST", "CHECK", "core %d checks %#x: %v", core, addr, ok)
	return ok
}

// Lock acquires addr's fine-grained lock for core, spinning on a CAS
// against the Unlocked sentinel. Used by the locked CAS/fetch-add
// fallback path when the back-end has no matching host intrinsic.
func (t *Table) Lock(addr uint64, core uint32) {
	e := &t.entries[t.index(addr)]
	for !e.lock.CompareAndSwap(Unlocked, core) {
		// spin; a core never blocks on its own lock and recursive
		// acquisition is a caller bug, not something to detect here.
	}
	debug.Logf("HST", "LOCK", "core %d locks %#x", core, addr)
}

// Unlock releases addr's fine-grained lock.
func (t *Table) Unlock(addr uint64) {
	t.entries[t.index(addr)].lock.Store(Unlocked)
}

// Lock128 acquires the two entries covering a double-width (128-bit)
// AMOCAS-style sequence. Callers must pass addrHi == addrLo+8 and the two
// addresses must hash to distinct entries; both are caller invariants
// (§4.3), not re-validated here beyond the low-address-first ordering
// that avoids deadlock against a concurrent Lock128 on the same pair.
func (t *Table) Lock128(addrLo, addrHi uint64, core uint32) {
	t.Lock(addrLo, core)
	t.Lock(addrHi, core)
}

// Unlock128 releases both entries acquired by Lock128, high address first
// to mirror the acquisition order.
func (t *Table) Unlock128(addrLo, addrHi uint64) {
	t.Unlock(addrHi)
	t.Unlock(addrLo)
}

// EntryCount reports the number of slots in the table, mostly useful for
// logging/diagnostics and tests.
func (t *Table) EntryCount() int {
	return len(t.entries)
}
