/*
   Debug-flag configuration directive.

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

// Package debugconfig registers the "DEBUG" and "DEBUGFILE" config
// directives (§6 ambient config surface), dispatching to util/debug's
// per-subsystem flag registry. Adapted from
// config/debugconfig/debugconfig.go: the teacher's version switched on a
// fixed set of S/370 subsystems (CHANNEL/CPU/TAPE/a device number);
// this version switches on this module's subsystems (CORE, HST, X86,
// RISCV, VECTOR, ARM64) and has no device-number case at all, since
// nothing in this domain is addressed that way.
package debugconfig

import (
	"errors"
	"strings"

	"github.com/rcornwell/dbtcore/config/dbtconfig"
	"github.com/rcornwell/dbtcore/util/debug"
)

func init() {
	dbtconfig.RegisterModel("DEBUG", dbtconfig.TypeOptions, setDebug)
	dbtconfig.RegisterFile("DEBUGFILE", func(first string, _ []dbtconfig.Option) error {
		return debug.OpenFile(first)
	})
}

func setDebug(subsystem string, options []dbtconfig.Option) error {
	subsystem = strings.ToUpper(subsystem)
	if len(options) == 0 {
		return errors.New("DEBUG directive requires at least one flag name")
	}
	for _, opt := range options {
		if err := debug.SetFlag(subsystem, opt.Name); err != nil {
			return err
		}
		for _, v := range opt.Value {
			if v == nil {
				continue
			}
			if err := debug.SetFlag(subsystem, *v); err != nil {
				return err
			}
		}
	}
	return nil
}
