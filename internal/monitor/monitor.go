/*
   Interactive monitor command parser.

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

// Package monitor implements the operator console command language:
// start/stop/continue one or all cores, inject an interrupt, list the
// core ids, and toggle a debug flag, all typed at a liner-backed prompt
// (internal/monitor's ConsoleReader). Adapted from
// command/parser/parser.go's minimum-abbreviation command table; the
// teacher's grammar was built around device numbers and attach/detach/
// set/unset of peripherals, none of which this domain has, so the
// command set here is the much smaller one a core driver loop actually
// needs.
package monitor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/rcornwell/dbtcore/internal/core"
	"github.com/rcornwell/dbtcore/util/debug"
)

// Machine is the set of cores the monitor commands operate on.
type Machine struct {
	Cores []*core.Core
}

type cmdLine struct {
	line string
	pos  int
}

type cmdFunc func(*cmdLine, *Machine) (bool, error)

type cmd struct {
	name    string
	min     int
	process cmdFunc
}

var cmdList = []cmd{
	{name: "start", min: 3, process: cmdStart},
	{name: "stop", min: 3, process: cmdStop},
	{name: "continue", min: 1, process: cmdStart},
	{name: "irq", min: 3, process: cmdIRQ},
	{name: "show", min: 2, process: cmdShow},
	{name: "debug", min: 3, process: cmdDebug},
	{name: "quit", min: 4, process: cmdQuit},
}

// ProcessCommand parses and runs one operator command line, returning
// true if the caller should stop reading further commands.
func ProcessCommand(commandLine string, m *Machine) (bool, error) {
	line := cmdLine{line: commandLine}
	name := line.getWord()

	matches := matchList(name)
	switch len(matches) {
	case 0:
		return false, fmt.Errorf("command not found: %s", name)
	case 1:
		return matches[0].process(&line, m)
	default:
		return false, fmt.Errorf("ambiguous command: %s", name)
	}
}

func matchCommand(c cmd, name string) bool {
	if len(name) > len(c.name) {
		return false
	}
	for i := range name {
		if c.name[i] != name[i] {
			return false
		}
	}
	return len(name) >= c.min
}

func matchList(name string) []cmd {
	if name == "" {
		return nil
	}
	var out []cmd
	for _, c := range cmdList {
		if matchCommand(c, name) {
			out = append(out, c)
		}
	}
	return out
}

func (l *cmdLine) skipSpace() {
	for l.pos < len(l.line) && unicode.IsSpace(rune(l.line[l.pos])) {
		l.pos++
	}
}

func (l *cmdLine) isEOL() bool {
	return l.pos >= len(l.line) || l.line[l.pos] == '#'
}

func (l *cmdLine) getWord() string {
	l.skipSpace()
	start := l.pos
	for !l.isEOL() && !unicode.IsSpace(rune(l.line[l.pos])) {
		l.pos++
	}
	return strings.ToLower(l.line[start:l.pos])
}

func coreByID(m *Machine, idText string) (*core.Core, error) {
	id, err := strconv.ParseUint(idText, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("core id must be a number: %s", idText)
	}
	for _, c := range m.Cores {
		if uint64(c.ID) == id {
			return c, nil
		}
	}
	return nil, fmt.Errorf("no such core: %d", id)
}

func cmdStart(line *cmdLine, m *Machine) (bool, error) {
	id := line.getWord()
	if id == "" {
		for _, c := range m.Cores {
			c.Send(core.Command{Kind: core.CmdStart})
		}
		return false, nil
	}
	c, err := coreByID(m, id)
	if err != nil {
		return false, err
	}
	c.Send(core.Command{Kind: core.CmdStart})
	return false, nil
}

func cmdStop(line *cmdLine, m *Machine) (bool, error) {
	id := line.getWord()
	if id == "" {
		for _, c := range m.Cores {
			c.Send(core.Command{Kind: core.CmdStop})
		}
		return false, nil
	}
	c, err := coreByID(m, id)
	if err != nil {
		return false, err
	}
	c.Send(core.Command{Kind: core.CmdStop})
	return false, nil
}

func cmdIRQ(line *cmdLine, m *Machine) (bool, error) {
	idText := line.getWord()
	c, err := coreByID(m, idText)
	if err != nil {
		return false, err
	}
	vecText := line.getWord()
	vec, err := strconv.ParseUint(vecText, 0, 64)
	if err != nil {
		return false, fmt.Errorf("irq vector must be a number: %s", vecText)
	}
	c.Send(core.Command{Kind: core.CmdInjectIRQ, Arg: vec})
	return false, nil
}

func cmdShow(_ *cmdLine, m *Machine) (bool, error) {
	for _, c := range m.Cores {
		fmt.Printf("core %d\n", c.ID)
	}
	return false, nil
}

func cmdDebug(line *cmdLine, _ *Machine) (bool, error) {
	subsystem := strings.ToUpper(line.getWord())
	flag := line.getWord()
	if subsystem == "" || flag == "" {
		return false, errors.New("usage: debug <subsystem> <flag>")
	}
	return false, debug.SetFlag(subsystem, flag)
}

func cmdQuit(_ *cmdLine, _ *Machine) (bool, error) {
	return true, nil
}
