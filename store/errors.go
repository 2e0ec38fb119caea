package store

import "errors"

// Errors shared by all store implementations.
var (
	ErrClosed        = errors.New("store: store is closed")
	ErrDuplicate     = errors.New("store: duplicate record")
	ErrUnknownPeriod = errors.New("store: unknown reset period")
	ErrNotReady      = errors.New("store: not ready")

	// ErrConcurrentUpdate signals an optimistic-concurrency conflict on an
	// outcome write. The shipped stores apply outcomes atomically and never
	// return it; drivers built on compare-and-swap storage reject with it so
	// callers can retry.
	ErrConcurrentUpdate = errors.New("store: concurrent update conflict")
)
