/*
   Configuration file parser.

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

// Package dbtconfig parses the emulator's configuration file: one
// directive per line, a keyword followed by a value and a space
// separated option list, each option optionally carrying an "=value" or
// a comma separated list of values. Adapted from
// config/configparser/configparser.go's tokenizer and model-registry
// pattern; the original grammar addressed S/370 peripherals by hex
// device number, which this domain has no use for, so the "first
// option" here is a free-form string (an architecture name, a file
// path) rather than a device address. Packages that need config-driven
// setup (core topology, HST sizing, debug flags) call RegisterModel from
// their own init(), exactly as the teacher's device packages did,
// keeping this package free of any dependency on them.
package dbtconfig

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"
)

// Option is one space-separated token following a directive's first
// value, optionally carrying "=value" or a comma-separated value list.
type Option struct {
	Name     string
	EqualOpt string
	Value    []*string
}

// Directive kind, mirroring the teacher's TypeModel/TypeOption/etc.
const (
	TypeOptions = 1 + iota // first value plus a following option list
	TypeOption             // first value only, no further options
	TypeSwitch             // no value at all, a bare flag
	TypeFile               // first value is a quoted or bare file path
)

// CreateFunc is called once a directive's line is fully parsed; first is
// the value immediately after the directive keyword ("", if the
// directive is a bare switch), options is whatever followed it.
type CreateFunc func(first string, options []Option) error

type modelDef struct {
	create CreateFunc
	ty     int
}

var models = map[string]modelDef{}

// RegisterModel registers a directive handler, called from an init()
// function in whichever package owns that directive's semantics.
func RegisterModel(name string, ty int, fn CreateFunc) {
	models[strings.ToUpper(name)] = modelDef{create: fn, ty: ty}
}

// RegisterFile is RegisterModel specialised to TypeFile directives, kept
// as its own entry point for single-purpose file directives such as
// config/debugconfig's "DEBUGFILE".
func RegisterFile(name string, fn CreateFunc) {
	RegisterModel(name, TypeFile, fn)
}

var lineNumber int

type optionLine struct {
	line string
	pos  int
}

// LoadConfigFile reads and applies every directive in name, in order.
func LoadConfigFile(name string) error {
	file, err := os.Open(name)
	if err != nil {
		return err
	}
	defer file.Close()

	lineNumber = 0
	reader := bufio.NewReader(file)
	for {
		line := optionLine{}
		line.line, err = reader.ReadString('\n')
		lineNumber++
		if len(line.line) == 0 && err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if parseErr := line.parseLine(); parseErr != nil {
			return parseErr
		}
	}
}

func (l *optionLine) skipSpace() {
	for l.pos < len(l.line) && unicode.IsSpace(rune(l.line[l.pos])) {
		l.pos++
	}
}

func (l *optionLine) isEOL() bool {
	return l.pos >= len(l.line) || l.line[l.pos] == '#'
}

func (l *optionLine) parseWord() string {
	l.skipSpace()
	start := l.pos
	for !l.isEOL() && !unicode.IsSpace(rune(l.line[l.pos])) {
		l.pos++
	}
	return l.line[start:l.pos]
}

// parseQuoted reads either a bare word or a "double quoted string".
func (l *optionLine) parseQuoted() string {
	l.skipSpace()
	if l.isEOL() {
		return ""
	}
	if l.line[l.pos] == '"' {
		l.pos++
		start := l.pos
		for l.pos < len(l.line) && l.line[l.pos] != '"' {
			l.pos++
		}
		s := l.line[start:l.pos]
		if l.pos < len(l.line) {
			l.pos++
		}
		return s
	}
	return l.parseWord()
}

// parseOptions consumes the rest of the line as a space-separated list
// of options, each optionally "name=value" or "name=v1,v2,v3".
func (l *optionLine) parseOptions() []Option {
	var opts []Option
	for {
		l.skipSpace()
		if l.isEOL() {
			return opts
		}
		start := l.pos
		for !l.isEOL() && !unicode.IsSpace(rune(l.line[l.pos])) {
			l.pos++
		}
		tok := l.line[start:l.pos]

		opt := Option{}
		if eq := strings.IndexByte(tok, '='); eq >= 0 {
			opt.Name = tok[:eq]
			opt.EqualOpt = tok[eq+1:]
			for _, v := range strings.Split(opt.EqualOpt, ",") {
				vv := v
				opt.Value = append(opt.Value, &vv)
			}
		} else {
			opt.Name = tok
		}
		opts = append(opts, opt)
	}
}

func (l *optionLine) parseLine() error {
	l.skipSpace()
	if l.isEOL() {
		return nil
	}
	keyword := l.parseWord()
	model, ok := models[strings.ToUpper(keyword)]
	if !ok {
		return fmt.Errorf("unknown directive %q, line %d", keyword, lineNumber)
	}

	switch model.ty {
	case TypeSwitch:
		l.skipSpace()
		if !l.isEOL() {
			return fmt.Errorf("switch directive %q takes no value, line %d", keyword, lineNumber)
		}
		return model.create("", nil)

	case TypeOption:
		first := l.parseWord()
		l.skipSpace()
		if !l.isEOL() {
			return fmt.Errorf("directive %q takes exactly one value, line %d", keyword, lineNumber)
		}
		return model.create(first, nil)

	case TypeFile:
		first := l.parseQuoted()
		return model.create(first, nil)

	case TypeOptions:
		first := l.parseWord()
		opts := l.parseOptions()
		return model.create(first, opts)
	}
	return fmt.Errorf("directive %q has no recognised type, line %d", keyword, lineNumber)
}
