/*
   Per-subsystem debug-flag logging.

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

// Package debug gives every subsystem (a front end, the HST, the vector
// engine, the core driver) a named bitmask of enabled debug flags and a
// single shared output file, toggled by the "DEBUG" config directive
// (config/debugconfig). Adapted from util/debug/debug.go: the original
// routed every message through one global file keyed by device number or
// channel number; here messages are keyed by an arbitrary subsystem
// name, and flags are named strings turned into bits by SetFlag rather
// than hardcoded per-device constants.
package debug

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

var (
	mu      sync.Mutex
	logFile *os.File
	masks   = map[string]uint64{}
	names   = map[string]map[string]uint64{} // subsystem -> flag name -> bit
)

// RegisterFlags declares the named debug flags a subsystem supports, in
// the order their bits are assigned. Call once from the subsystem's
// init().
func RegisterFlags(subsystem string, flagNames ...string) {
	mu.Lock()
	defer mu.Unlock()
	m := make(map[string]uint64, len(flagNames))
	for i, n := range flagNames {
		m[strings.ToUpper(n)] = 1 << uint(i)
	}
	names[subsystem] = m
}

// SetFlag enables the named flag for subsystem; returns an error if
// either is unrecognised.
func SetFlag(subsystem, flagName string) error {
	mu.Lock()
	defer mu.Unlock()
	m, ok := names[subsystem]
	if !ok {
		return fmt.Errorf("unknown debug subsystem: %s", subsystem)
	}
	bit, ok := m[strings.ToUpper(flagName)]
	if !ok {
		return fmt.Errorf("unknown debug flag %q for subsystem %s", flagName, subsystem)
	}
	masks[subsystem] |= bit
	return nil
}

// Enabled reports whether flagName is set for subsystem.
func Enabled(subsystem, flagName string) bool {
	mu.Lock()
	defer mu.Unlock()
	bit, ok := names[subsystem][strings.ToUpper(flagName)]
	if !ok {
		return false
	}
	return masks[subsystem]&bit != 0
}

// Logf writes a formatted debug message to the shared debug file when
// flagName is enabled for subsystem, a no-op otherwise (and if no debug
// file has been opened at all).
func Logf(subsystem, flagName, format string, a ...any) {
	if !Enabled(subsystem, flagName) {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		return
	}
	fmt.Fprintf(logFile, subsystem+": "+format+"\n", a...)
}

func openFile(name string) error {
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		return fmt.Errorf("debug file already open: %s", logFile.Name())
	}
	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("unable to create debug file %s: %w", name, err)
	}
	logFile = f
	return nil
}

// OpenFile opens the shared debug output file, exported for direct use
// by main and by config/debugconfig's DEBUGFILE directive.
func OpenFile(name string) error { return openFile(name) }
