package enums

import "fmt"

// ReleaseStatus tracks an inventory release from pending demand to settlement.
// The only legal moves are pending → released (allocation) and
// released → not_released (compensation).
type ReleaseStatus string

const (
	ReleaseStatusPending     ReleaseStatus = "pending"
	ReleaseStatusReleased    ReleaseStatus = "released"
	ReleaseStatusNotReleased ReleaseStatus = "not_released"
)

var validReleaseStatuses = []ReleaseStatus{
	ReleaseStatusPending,
	ReleaseStatusReleased,
	ReleaseStatusNotReleased,
}

var releaseStatusTransitions = map[ReleaseStatus][]ReleaseStatus{
	ReleaseStatusPending:     {ReleaseStatusReleased, ReleaseStatusNotReleased},
	ReleaseStatusReleased:    {ReleaseStatusNotReleased},
	ReleaseStatusNotReleased: {},
}

// String implements fmt.Stringer.
func (s ReleaseStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ReleaseStatus.
func (s ReleaseStatus) IsValid() bool {
	for _, candidate := range validReleaseStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether the status machine allows moving to next.
func (s ReleaseStatus) CanTransitionTo(next ReleaseStatus) bool {
	for _, candidate := range releaseStatusTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ParseReleaseStatus converts raw input into a ReleaseStatus.
func ParseReleaseStatus(value string) (ReleaseStatus, error) {
	for _, candidate := range validReleaseStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid release status %q", value)
}
