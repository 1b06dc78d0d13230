package enums

import "fmt"

// ProductionRunStatus tracks whether a synchronous production run is still
// standing or has been compensated away.
type ProductionRunStatus string

const (
	ProductionRunStatusCompleted ProductionRunStatus = "completed"
	ProductionRunStatusUndone    ProductionRunStatus = "undone"
)

var validProductionRunStatuses = []ProductionRunStatus{
	ProductionRunStatusCompleted,
	ProductionRunStatusUndone,
}

// String implements fmt.Stringer.
func (s ProductionRunStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ProductionRunStatus.
func (s ProductionRunStatus) IsValid() bool {
	for _, candidate := range validProductionRunStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseProductionRunStatus converts raw input into a ProductionRunStatus.
func ParseProductionRunStatus(value string) (ProductionRunStatus, error) {
	for _, candidate := range validProductionRunStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid production run status %q", value)
}
