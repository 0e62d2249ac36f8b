/*
   Per-core driver loop.

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

// Package core drives one emulated core's goroutine: decode/execute one
// TB's worth of guest code at a time, process commands from the monitor,
// and service pending interrupts between TBs (§5 Concurrency model). The
// goroutine-per-core shape, done-channel shutdown and command-channel
// dispatch follow emu/core/core.go's CPU driver loop; emu/master's
// packet type (absent from this retrieval pack) is replaced by the
// Command type below, carried over our own channel rather than imported.
package core

import (
	"log/slog"
	"sync"
	"time"

	"github.com/rcornwell/dbtcore/util/debug"
)

func init() {
	debug.RegisterFlags("CORE", "RUN", "FAULT", "CMD")
}

// CmdKind names one driver command.
type CmdKind int

const (
	CmdStart CmdKind = iota
	CmdStop
	CmdInjectIRQ
	CmdTick
)

// Command is one message sent to a core's driver loop.
type Command struct {
	Kind CmdKind
	Arg  uint64
}

// Program is the per-architecture step function a Core drives: decode
// and execute exactly one translation block's worth of guest code,
// returning the number of guest instructions retired (for tick/profiling
// accounting) or an error if a guest fault (such as an IllegalInstruction)
// propagated out of the TB (§7).
type Program interface {
	StepTB() (int, error)

	// ServiceInterrupts is called between TBs; it returns true if an
	// interrupt was taken (forcing a fresh TB lookup at the new PC).
	ServiceInterrupts() bool
}

// Core owns one emulated processor's goroutine.
type Core struct {
	ID      uint32
	wg      sync.WaitGroup
	done    chan struct{}
	cmds    chan Command
	running bool
	prog    Program
}

// New constructs a Core bound to a Program (the glued-together front
// end + IR + back-end for one guest architecture).
func New(id uint32, prog Program) *Core {
	return &Core{
		ID:   id,
		prog: prog,
		done: make(chan struct{}),
		cmds: make(chan Command, 16),
	}
}

// Start runs the core's driver loop in its own goroutine.
func (c *Core) Start() {
	c.wg.Add(1)
	go c.run()
}

func (c *Core) run() {
	defer c.wg.Done()
	for {
		if c.running {
			if c.prog.ServiceInterrupts() {
				continue
			}
			n, err := c.prog.StepTB()
			if err != nil {
				debug.Logf("CORE", "FAULT", "core %d: %v", c.ID, err)
				slog.Error("guest fault", "core", c.ID, "err", err)
				c.running = false
				continue
			}
			debug.Logf("CORE", "RUN", "core %d stepped %d instructions", c.ID, n)
		}
		select {
		case <-c.done:
			slog.Info("shutdown core", "core", c.ID)
			return
		case cmd := <-c.cmds:
			c.dispatch(cmd)
		default:
		}
	}
}

func (c *Core) dispatch(cmd Command) {
	debug.Logf("CORE", "CMD", "core %d: %v", c.ID, cmd.Kind)
	switch cmd.Kind {
	case CmdStart:
		c.running = true
	case CmdStop:
		c.running = false
	case CmdInjectIRQ, CmdTick:
		// accepted and otherwise ignored: they are not passed to the
		// Program, whose ServiceInterrupts is re-checked on the next
		// iteration as on every other one.
	}
}

// Send enqueues a command for this core's driver loop.
func (c *Core) Send(cmd Command) {
	c.cmds <- cmd
}

// Stop signals the driver loop to exit and waits up to one second.
func (c *Core) Stop() {
	close(c.done)
	finished := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		slog.Warn("timed out waiting for core to finish", "core", c.ID)
	}
}
