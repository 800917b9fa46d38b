package types

import "math"

// Round is a monotonically increasing attempt to commit one block; at
// most one leader per round. Rounds start at 1 (spec ยง3, ยง8).
type Round uint64

// EpochId identifies a maximal span sharing one voting configuration.
type EpochId uint64

// Previous returns (e-1, true) when e > 0, and (0, false) at epoch zero.
//
// Several snapshots of the source this spec is drawn from return Some(self)
// here instead of Some(self-1); that is a known bug. This follows the
// corrected definition.
func (e EpochId) Previous() (EpochId, bool) {
	if e == 0 {
		return 0, false
	}
	return e - 1, true
}

// NodeTime is a signed integer millisecond timestamp. NeverTime stands in
// for "no deadline": min(x, NeverTime) == x for any reachable x.
type NodeTime int64

// NeverTime is the maximum representable NodeTime, used as a sentinel
// meaning "no forced re-entry is scheduled".
const NeverTime NodeTime = math.MaxInt64

// Min returns the earlier of two deadlines, treating NeverTime as +infinity.
func (t NodeTime) Min(other NodeTime) NodeTime {
	if t < other {
		return t
	}
	return other
}

// Add returns t advanced by d milliseconds. Adding to NeverTime saturates.
func (t NodeTime) Add(d Duration) NodeTime {
	if t == NeverTime {
		return NeverTime
	}
	return t + NodeTime(d)
}

// Duration is a signed integer millisecond duration.
type Duration int64
