/*
 * dbtcore - Main process.
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	getopt "github.com/pborman/getopt/v2"

	"github.com/rcornwell/dbtcore/config/coreconfig"
	"github.com/rcornwell/dbtcore/config/dbtconfig"
	"github.com/rcornwell/dbtcore/internal/core"
	"github.com/rcornwell/dbtcore/internal/hst"
	"github.com/rcornwell/dbtcore/internal/mmu"
	"github.com/rcornwell/dbtcore/internal/monitor"
	"github.com/rcornwell/dbtcore/internal/riscv"
	"github.com/rcornwell/dbtcore/internal/state"
	"github.com/rcornwell/dbtcore/internal/x86"
	"github.com/rcornwell/dbtcore/util/logger"

	_ "github.com/rcornwell/dbtcore/config/debugconfig"
)

var log *slog.Logger

func main() {
	optConfig := getopt.StringLong("config", 'c', "dbtcore.cfg", "Configuration file")
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optDebug := getopt.BoolLong("debug", 'd', "Enable debug logging")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	var file *os.File
	if *optLogFile != "" {
		var err error
		file, err = os.Create(*optLogFile)
		if err != nil {
			fmt.Println("unable to create log file: " + err.Error())
			os.Exit(1)
		}
	} else {
		file = os.Stderr
	}
	level := new(slog.LevelVar)
	if *optDebug {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}
	log = slog.New(logger.NewHandler(file, &slog.HandlerOptions{Level: level}, optDebug))
	slog.SetDefault(log)

	log.Info("dbtcore started")

	if _, err := os.Stat(*optConfig); os.IsNotExist(err) {
		log.Error("configuration file not found", "path", *optConfig)
		os.Exit(1)
	}

	if err := dbtconfig.LoadConfigFile(*optConfig); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}

	store := hst.New(coreconfig.HST.Bits, coreconfig.HST.Shift)
	ticker := core.NewTicker(10 * time.Millisecond)

	machine := &monitor.Machine{}
	for i, spec := range coreconfig.Cores {
		cpu := state.New(archFor(spec.Arch), uint32(i), store)
		mem := mmu.NewFlat(spec.MemLen)
		var prog core.Program
		switch spec.Arch {
		case "x86":
			prog = core.NewX86Program(cpu, mem, x86.StaticExtensionSet{}, true)
		case "riscv32":
			prog = core.NewRISCVProgram(cpu, mem, riscv.StaticExtensionSet{}, false)
		case "riscv64":
			prog = core.NewRISCVProgram(cpu, mem, riscv.StaticExtensionSet{}, true)
		case "arm64":
			prog = core.NewARM64Program(cpu, mem)
		}
		c := core.New(uint32(i), prog)
		ticker.Register(c)
		c.Start()
		machine.Cores = append(machine.Cores, c)
	}
	ticker.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		monitor.ConsoleReader(machine)
		close(done)
	}()

	select {
	case <-sigChan:
		fmt.Println("Got quit signal")
	case <-done:
	}

	log.Info("shutting down")
	ticker.Shutdown()
	for _, c := range machine.Cores {
		c.Stop()
	}
	log.Info("shutdown complete")
}

func archFor(name string) state.Arch {
	switch name {
	case "riscv32":
		return state.ArchRISCV32
	case "riscv64":
		return state.ArchRISCV64
	case "arm64":
		return state.ArchARM64
	default:
		return state.ArchX86
	}
}
