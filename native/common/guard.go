package common

import (
	"errors"
	"sync/atomic"
)

var (
	ErrModulePaused  = errors.New("module paused")
	ErrReentrantCall = errors.New("reentrant call")
)

type PauseView interface {
	IsPaused(module string) (bool, error)
}

// Guard fails with ErrModulePaused when module is paused. A view that cannot
// read its pause flag returns that error unchanged.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	paused, err := p.IsPaused(module)
	if err != nil {
		return err
	}
	if paused {
		return ErrModulePaused
	}
	return nil
}

// ReentrancyGuard rejects nested entry into a critical section. The zero value
// is ready to use.
type ReentrancyGuard struct {
	entered atomic.Bool
}

// Enter marks the guard as held. It fails with ErrReentrantCall when the guard
// is already held.
func (g *ReentrancyGuard) Enter() error {
	if !g.entered.CompareAndSwap(false, true) {
		return ErrReentrantCall
	}
	return nil
}

// Exit releases the guard.
func (g *ReentrancyGuard) Exit() {
	g.entered.Store(false)
}

// Held reports whether the guard is currently held.
func (g *ReentrancyGuard) Held() bool {
	return g.entered.Load()
}
