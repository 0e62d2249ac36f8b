package core

import (
	"log/slog"
	"sync"
	"time"
)

// Ticker delivers a regular wall-clock pulse to every registered core's
// command channel as a CmdTick command, independent of guest-cycle
// counting; Core.dispatch accepts CmdTick and takes no further action on
// it. Adapted from emu/timer/timer.go;
// emu/master.Packet is replaced by this package's own Command type, and
// the single hardcoded channel becomes a registry of core Send targets
// so one Ticker can drive every core in the process.
type Ticker struct {
	wg      sync.WaitGroup
	mu      sync.Mutex
	targets []*Core
	enable  chan bool
	done    chan struct{}
	period  time.Duration
}

// NewTicker constructs a Ticker with the given pulse period and starts
// its background goroutine (stopped until Start is called).
func NewTicker(period time.Duration) *Ticker {
	t := &Ticker{
		enable: make(chan bool, 1),
		done:   make(chan struct{}),
		period: period,
	}
	t.wg.Add(1)
	go t.run()
	return t
}

// Register adds a core to receive CmdTick pulses.
func (t *Ticker) Register(c *Core) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.targets = append(t.targets, c)
}

// Start begins delivering pulses.
func (t *Ticker) Start() { t.enable <- true }

// Stop pauses pulse delivery without tearing down the goroutine.
func (t *Ticker) Stop() { t.enable <- false }

// Shutdown terminates the Ticker's goroutine, waiting up to one second.
func (t *Ticker) Shutdown() {
	close(t.done)
	finished := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(time.Second):
		slog.Warn("timed out waiting for ticker to finish")
	}
}

func (t *Ticker) run() {
	defer t.wg.Done()
	running := false
	ticker := time.NewTicker(t.period)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !running {
				continue
			}
			t.mu.Lock()
			for _, c := range t.targets {
				c.Send(Command{Kind: CmdTick})
			}
			t.mu.Unlock()
		case running = <-t.enable:
			if running {
				ticker.Reset(t.period)
			}
		case <-t.done:
			return
		}
	}
}
