package utils

import (
	"sync"
	"testing"
)

func TestAtomBool(t *testing.T) {
	b := new(TAtomBool)

	if b.Get() {
		t.Fatal("zero value should be false")
	}

	b.Set(true)
	if !b.Get() {
		t.Fatal("expected true after Set(true)")
	}

	b.Set(false)
	if b.Get() {
		t.Fatal("expected false after Set(false)")
	}

	// Hammer it from multiple goroutines, the race detector should stay quiet.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v bool) {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				b.Set(v)
				b.Get()
			}
		}(i%2 == 0)
	}
	wg.Wait()
}
