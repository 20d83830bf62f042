package domain

import (
	"context"
	"time"
)

// SafetyGate is the single global kill switch consulted before every side
// effect. Toggling is optimistic-locked through Version so a conflicting
// operator change is never silently overridden.
type SafetyGate struct {
	Active    bool
	Reason    string
	ChangedBy string
	Version   int64
	ChangedAt time.Time
}

// GateReader exposes the two read paths the gate supports. Read is strongly
// consistent and must be used immediately before a side effect; IsActive may
// serve a cached value and is only suitable for high-frequency polling.
type GateReader interface {
	Read(ctx context.Context) (SafetyGate, error)
	IsActive(ctx context.Context) (bool, error)
}

// GateStore adds the conditional write used to toggle the gate. Write expects
// gate.Version to match the stored version and returns ErrVersionConflict
// otherwise; callers must re-read and decide for themselves, never retry
// blindly.
type GateStore interface {
	GateReader
	Write(ctx context.Context, gate SafetyGate) error
}
