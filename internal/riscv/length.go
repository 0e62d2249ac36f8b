/*
   RISC-V instruction-length decoding.

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

package riscv

// DecodeLength returns the byte length of the instruction whose first
// 16-bit code parcel is word, following the rules in §4.1:
//
//	tail bits != 11:                          16-bit
//	tail == 11, bits[4:2] != 111:              32-bit
//	bits[6:0] == 0111111 (0x3F):               64-bit
//	bits[5:0] == 011111  (0x1F):                48-bit
//	xnnnxxxxx1111111 with nnn != 111:          (10+2*nnn) bytes, nnn from bits[14:12]
//	otherwise:                                 reserved (0, false)
//
// A parcel that is all zeros or all ones is always illegal.
func DecodeLength(word uint16) (int, bool) {
	if word == 0x0000 || word == 0xFFFF {
		return 0, false
	}

	tail := word & 0x3
	if tail != 0x3 {
		return 2, true
	}

	bits42 := (word >> 2) & 0x7
	if bits42 != 0x7 {
		return 4, true
	}

	// tail==11, bits[4:2]==111: examine wider instruction-length field.
	if word&0x7F == 0x3F {
		return 8, true
	}
	if word&0x3F == 0x1F {
		return 6, true
	}

	if word&0x7F == 0x7F {
		nnn := (word >> 12) & 0x7
		if nnn == 0x7 {
			return 0, false
		}
		return 10 + 2*int(nnn), true
	}

	return 0, false
}
