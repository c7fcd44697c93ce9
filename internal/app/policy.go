package app

import (
	"fmt"

	"github.com/dkeye/roomrelay/internal/core"
)

type BackpressureAction int

const (
	DropFrame BackpressureAction = iota
	KickMember
)

// Policy decides what happens to a member whose outbound queue is full.
type Policy interface {
	OnBackPressure(member *core.Session) BackpressureAction
}

// DropPolicy silently loses the frame; delivery is best effort anyway.
type DropPolicy struct{}

func (DropPolicy) OnBackPressure(*core.Session) BackpressureAction { return DropFrame }

// KickPolicy disconnects slow members.
type KickPolicy struct{}

func (KickPolicy) OnBackPressure(*core.Session) BackpressureAction { return KickMember }

// PolicyByName maps the slow_consumer setting to a Policy.
func PolicyByName(name string) (Policy, error) {
	switch name {
	case "", "drop":
		return DropPolicy{}, nil
	case "kick":
		return KickPolicy{}, nil
	}
	return nil, fmt.Errorf("unknown slow consumer policy %q", name)
}
