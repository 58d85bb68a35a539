package common

import (
	"errors"
	"testing"
)

type pauseMap map[string]bool

func (p pauseMap) IsPaused(module string) (bool, error) { return p[module], nil }

type brokenView struct{ err error }

func (b brokenView) IsPaused(string) (bool, error) { return true, b.err }

func TestGuard(t *testing.T) {
	if err := Guard(nil, "campaign"); err != nil {
		t.Fatalf("nil view should not block: %v", err)
	}
	view := pauseMap{"campaign": true}
	if err := Guard(view, "campaign"); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	if err := Guard(view, "token"); err != nil {
		t.Fatalf("unpaused module blocked: %v", err)
	}
	readErr := errors.New("read failed")
	err := Guard(brokenView{err: readErr}, "campaign")
	if !errors.Is(err, readErr) || errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected read error instead of pause, got %v", err)
	}
}

func TestReentrancyGuard(t *testing.T) {
	var g ReentrancyGuard
	if err := g.Enter(); err != nil {
		t.Fatalf("first enter: %v", err)
	}
	if err := g.Enter(); !errors.Is(err, ErrReentrantCall) {
		t.Fatalf("expected ErrReentrantCall, got %v", err)
	}
	if !g.Held() {
		t.Fatalf("guard should be held")
	}
	g.Exit()
	if err := g.Enter(); err != nil {
		t.Fatalf("enter after exit: %v", err)
	}
	g.Exit()
}
