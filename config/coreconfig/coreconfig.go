/*
   Core-topology configuration directive.

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

// Package coreconfig registers the "CORE" and "HST" config directives
// that describe a machine's topology before main builds it: one CORE
// line per emulated core (architecture plus a memory size), and one HST
// line sizing the shared store table (§4.3, §6 config surface).
// Adapted from config/debugconfig.go's init-time RegisterModel pattern.
package coreconfig

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rcornwell/dbtcore/config/dbtconfig"
)

// Spec describes one CORE directive: an architecture name ("x86",
// "riscv32", "riscv64", "arm64") and the flat memory size in bytes to
// back it.
type Spec struct {
	Arch   string
	MemLen int
}

// HSTSpec describes the HST directive: 2^Bits entries, indexed by
// addr>>Shift.
type HSTSpec struct {
	Bits  uint
	Shift uint
}

var (
	Cores []Spec
	HST   = HSTSpec{Bits: 16, Shift: 2} // default: 64K entries, word-granular
)

func init() {
	dbtconfig.RegisterModel("CORE", dbtconfig.TypeOptions, addCore)
	dbtconfig.RegisterModel("HST", dbtconfig.TypeOptions, setHST)
}

func addCore(arch string, options []dbtconfig.Option) error {
	arch = strings.ToLower(arch)
	switch arch {
	case "x86", "riscv32", "riscv64", "arm64":
	default:
		return fmt.Errorf("unknown core architecture: %s", arch)
	}

	memLen := 1 << 20 // 1 MiB default
	for _, opt := range options {
		if strings.EqualFold(opt.Name, "mem") && len(opt.Value) == 1 && opt.Value[0] != nil {
			n, err := strconv.Atoi(*opt.Value[0])
			if err != nil {
				return fmt.Errorf("mem option must be a byte count: %w", err)
			}
			memLen = n
		}
	}

	Cores = append(Cores, Spec{Arch: arch, MemLen: memLen})
	return nil
}

func setHST(first string, _ []dbtconfig.Option) error {
	bits, err := strconv.ParseUint(first, 10, 32)
	if err != nil {
		return errors.New("HST directive requires a bit-count value")
	}
	HST = HSTSpec{Bits: uint(bits), Shift: 2}
	return nil
}
