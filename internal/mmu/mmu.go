/*
   Guest physical memory and the ld*_code, qemu_ld* and st* collaborator
   surface (§6 External Interfaces).

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

// Package mmu is a flat, byte-addressed guest physical memory used by
// the test harness and the reference core wiring; real deployments are
// expected to supply their own MemReader/DataMem backed by a proper
// guest MMU (§6 treats both as external collaborators). Adapted from
// emu/memory/memory.go's fixed 4MB word-addressed S/370 store: widened
// to byte addressing and arbitrary widths since every front end in this
// module (x86, RISC-V, ARM64) needs sub-word and unaligned access.
package mmu

import "fmt"

// Flat is a flat byte-addressed guest physical memory.
type Flat struct {
	bytes []byte
}

// NewFlat allocates a Flat memory of the given size in bytes.
func NewFlat(size int) *Flat {
	return &Flat{bytes: make([]byte, size)}
}

// Size reports the memory's byte size.
func (m *Flat) Size() int { return len(m.bytes) }

func (m *Flat) checkRange(addr uint64, width int) error {
	if addr+uint64(width) > uint64(len(m.bytes)) {
		return fmt.Errorf("access out of range: addr=%#x width=%d size=%#x", addr, width, len(m.bytes))
	}
	return nil
}

// Load reads width bits (8/16/32/64) at addr, little-endian, implementing
// the qemu_ld*-equivalent collaborator interface consumed by every front
// end's DataMem.
func (m *Flat) Load(addr uint64, width int) (uint64, error) {
	n := width / 8
	if err := m.checkRange(addr, n); err != nil {
		return 0, err
	}
	var v uint64
	for i := 0; i < n; i++ {
		v |= uint64(m.bytes[addr+uint64(i)]) << (8 * i)
	}
	return v, nil
}

// Store writes width bits at addr, little-endian, implementing the
// qemu_st*-equivalent collaborator interface.
func (m *Flat) Store(addr uint64, width int, val uint64) error {
	n := width / 8
	if err := m.checkRange(addr, n); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		m.bytes[addr+uint64(i)] = byte(val >> (8 * i))
	}
	return nil
}

// FetchByte implements x86's MemReader.
func (m *Flat) FetchByte(pc uint64) (uint8, error) {
	if err := m.checkRange(pc, 1); err != nil {
		return 0, err
	}
	return m.bytes[pc], nil
}

// FetchHalf implements RISC-V's MemReader (a 16-bit code parcel).
func (m *Flat) FetchHalf(pc uint64) (uint16, error) {
	v, err := m.Load(pc, 16)
	return uint16(v), err
}

// FetchWord implements ARM64's MemReader (a fixed 32-bit instruction).
func (m *Flat) FetchWord(pc uint64) (uint32, error) {
	v, err := m.Load(pc, 32)
	return uint32(v), err
}

// LoadBytes copies a guest code image into memory starting at addr, for
// test setup.
func (m *Flat) LoadBytes(addr uint64, data []byte) error {
	if err := m.checkRange(addr, len(data)); err != nil {
		return err
	}
	copy(m.bytes[addr:], data)
	return nil
}
