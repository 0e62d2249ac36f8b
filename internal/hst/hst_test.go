package hst

import (
	"sync"
	"testing"
)

func TestResetSentinels(t *testing.T) {
	tbl := New(4, 3)
	for i := 0; i < tbl.EntryCount(); i++ {
		addr := uint64(i) << 3
		if tbl.Check(addr, NoCore) != true {
			t.Fatalf("entry %d: expected lastCore sentinel NoCore", i)
		}
	}
}

func TestSetCheckLRSC(t *testing.T) {
	// Scenario 1 (§8): LR/SC success with no interleaving core.
	tbl := New(4, 3)
	const addr = 0x40
	tbl.Set(addr, 0) // LR on core 0
	if !tbl.Check(addr, 0) {
		t.Fatal("SC should succeed when no other core wrote since the LR")
	}
}

func TestSetCheckCollision(t *testing.T) {
	// Scenario 2 (§8): LR/SC failure by collision.
	tbl := New(4, 3)
	const addr = 0x40
	tbl.Set(addr, 0) // core 0's LR
	tbl.Set(addr, 1) // core 1's plain store touches the same entry
	if tbl.Check(addr, 0) {
		t.Fatal("SC on core 0 must fail after core 1 wrote the same entry")
	}
}

func TestHashCollision(t *testing.T) {
	// Two addresses that hash to the same entry must serialize against
	// each other (§4.3 Collision semantics): this is a property of the
	// fixed-bit hash, not a bug, and must be deterministic.
	tbl := New(2, 3) // only 4 entries: any addr differing by a multiple of 32 collides
	a, b := uint64(0x40), uint64(0x40+ (4<<3))
	if tbl.index(a) != tbl.index(b) {
		t.Fatalf("expected %#x and %#x to collide in a 4-entry table", a, b)
	}
}

func TestLockMutualExclusion(t *testing.T) {
	tbl := New(4, 3)
	const addr = 0x100
	const n = 8
	var wg sync.WaitGroup
	counter := 0
	// Each goroutine stands in for a core; only one may hold the lock
	// for this entry at a time (§8 "HST mutual exclusion").
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(core uint32) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tbl.Lock(addr, core)
				counter++
				tbl.Unlock(addr)
			}
		}(uint32(i))
	}
	wg.Wait()
	if counter != n*100 {
		t.Fatalf("lost updates under lock: got %d want %d", counter, n*100)
	}
}

func TestLock128Ordering(t *testing.T) {
	tbl := New(4, 3)
	lo, hi := uint64(0x200), uint64(0x208)
	tbl.Lock128(lo, hi, 3)
	// A second core attempting the same pair must observe both locked.
	loEntry := &tbl.entries[tbl.index(lo)]
	hiEntry := &tbl.entries[tbl.index(hi)]
	if loEntry.lock.Load() != 3 || hiEntry.lock.Load() != 3 {
		t.Fatal("Lock128 must hold both entries for the caller's core")
	}
	tbl.Unlock128(lo, hi)
	if loEntry.lock.Load() != Unlocked || hiEntry.lock.Load() != Unlocked {
		t.Fatal("Unlock128 must release both entries")
	}
}
