// Package access tracks health-store availability and the granted
// permission tiers, and gates every engine operation on them.
package access

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Tier is a permission level gating store operations. Tiers are ordered
// and cumulative: historical implies background implies basic.
type Tier int

const (
	TierBasic Tier = iota + 1
	TierBackground
	TierHistorical
)

func (t Tier) String() string {
	switch t {
	case TierBasic:
		return "basic"
	case TierBackground:
		return "background"
	case TierHistorical:
		return "historical"
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

// ParseTier maps a wire-format tier name onto a Tier.
func ParseTier(s string) (Tier, error) {
	switch s {
	case "basic":
		return TierBasic, nil
	case "background":
		return TierBackground, nil
	case "historical":
		return TierHistorical, nil
	}
	return 0, fmt.Errorf("unknown permission tier %q", s)
}

// TierSet is a set of granted tiers. Because tiers are cumulative it is
// fully described by the highest granted tier. The zero value is empty.
type TierSet struct {
	highest Tier
}

// NewTierSet builds a set from individual grants.
func NewTierSet(tiers ...Tier) TierSet {
	var s TierSet
	for _, t := range tiers {
		if t > s.highest {
			s.highest = t
		}
	}
	return s
}

// Has reports whether the set covers the given tier.
func (s TierSet) Has(t Tier) bool { return s.highest >= t }

// Empty reports whether no tier is granted.
func (s TierSet) Empty() bool { return s.highest == 0 }

// Highest returns the highest granted tier, or 0 when empty.
func (s TierSet) Highest() Tier { return s.highest }

// Tiers lists the granted tiers in ascending order.
func (s TierSet) Tiers() []Tier {
	var out []Tier
	for t := TierBasic; t <= s.highest; t++ {
		out = append(out, t)
	}
	return out
}

// Snapshot is an immutable view of store availability and granted tiers at
// the time of an explicit check. Operations receive a snapshot as a
// parameter; nothing reads mutable global permission state. Snapshots are
// never persisted — they are recomputed from the store at each check.
type Snapshot struct {
	StoreAvailable bool
	Tiers          TierSet
	CheckedAt      time.Time
}

// Require fails fast when the snapshot does not cover the given tier,
// before any store call is attempted.
func (s Snapshot) Require(t Tier) error {
	if !s.StoreAvailable {
		return ErrStoreUnavailable
	}
	if !s.Tiers.Has(t) {
		return &TierError{Required: t, Granted: s.Tiers}
	}
	return nil
}

// ErrStoreUnavailable means the health store cannot be reached. The
// condition is terminal until the next explicit Refresh; it disables every
// operation except the re-check itself.
var ErrStoreUnavailable = errors.New("health store unavailable")

// ErrPermissionDenied marks a permission rejection by the store itself,
// as opposed to a snapshot-gated TierError raised before any store call.
var ErrPermissionDenied = errors.New("permission denied by store")

// TierError is a permission-denied failure for a specific tier. It is
// surfaced to the caller and never retried automatically.
type TierError struct {
	Required Tier
	Granted  TierSet
}

func (e *TierError) Error() string {
	if e.Granted.Empty() {
		return fmt.Sprintf("operation requires %s permission tier, none granted", e.Required)
	}
	return fmt.Sprintf("operation requires %s permission tier, highest granted is %s",
		e.Required, e.Granted.Highest())
}

// IsPermissionDenied reports whether err is a permission failure, either
// snapshot-gated or rejected by the store.
func IsPermissionDenied(err error) bool {
	var te *TierError
	return errors.As(err, &te) || errors.Is(err, ErrPermissionDenied)
}

// Prober is the slice of the store the checker needs.
type Prober interface {
	CheckAvailability(ctx context.Context) (bool, error)
	CheckPermissions(ctx context.Context) (TierSet, error)
}
