package monitor

import (
	"testing"

	"github.com/rcornwell/dbtcore/internal/core"
)

type stubProgram struct{}

func (stubProgram) StepTB() (int, error)    { return 1, nil }
func (stubProgram) ServiceInterrupts() bool { return false }

func TestProcessCommandAbbreviation(t *testing.T) {
	c := core.New(0, stubProgram{})
	m := &Machine{Cores: []*core.Core{c}}

	if _, err := ProcessCommand("sta", m); err != nil {
		t.Fatalf("unexpected error starting core: %v", err)
	}
	if _, err := ProcessCommand("sto", m); err != nil {
		t.Fatalf("unexpected error stopping core: %v", err)
	}
}

func TestProcessCommandTooShortPrefixUnmatched(t *testing.T) {
	m := &Machine{}
	if _, err := ProcessCommand("s", m); err == nil {
		t.Fatal("expected an error: \"s\" is shorter than every start/stop/show minimum")
	}
}

func TestProcessCommandUnknown(t *testing.T) {
	m := &Machine{}
	if _, err := ProcessCommand("bogus", m); err == nil {
		t.Fatal("expected an error for an unknown command")
	}
}

func TestProcessCommandQuit(t *testing.T) {
	m := &Machine{}
	quit, err := ProcessCommand("quit", m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !quit {
		t.Fatal("expected quit to request shutdown")
	}
}
