package utils

import "sync/atomic"

// TAtomBool define an atomic boolean
type TAtomBool struct{ flag atomic.Bool }

// Set set the value of an atomic boolean
func (b *TAtomBool) Set(value bool) {
	b.flag.Store(value)
}

// Get return the value of an atomic boolean
func (b *TAtomBool) Get() bool {
	return b.flag.Load()
}
