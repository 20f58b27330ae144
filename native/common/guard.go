package common

import (
	"errors"
	"sync/atomic"
)

var (
	ErrModulePaused  = errors.New("module paused")
	ErrReentrantCall = errors.New("reentrant call rejected")
)

// Module names recognised by PauseView implementations.
const (
	ModuleCampaign = "campaign"
	ModuleSpending = "spending"
	ModulePayments = "payments"
)

type PauseView interface {
	IsPaused(module string) bool
}

func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// StaticPauses is a PauseView backed by a fixed module set.
type StaticPauses map[string]bool

// IsPaused implements PauseView.
func (s StaticPauses) IsPaused(module string) bool { return s[module] }

// ReentrancyGuard is the single "operation in progress" flag shared by every
// externally-calling operation of one campaign instance. A zero value is ready
// to use.
type ReentrancyGuard struct {
	entered atomic.Bool
}

// Enter sets the flag and returns the function that clears it. It fails with
// ErrReentrantCall while another holder has not released it yet.
func (g *ReentrancyGuard) Enter() (func(), error) {
	if g == nil {
		return func() {}, nil
	}
	if !g.entered.CompareAndSwap(false, true) {
		return nil, ErrReentrantCall
	}
	return func() { g.entered.Store(false) }, nil
}

// Held reports whether an operation currently holds the guard.
func (g *ReentrancyGuard) Held() bool {
	return g != nil && g.entered.Load()
}
