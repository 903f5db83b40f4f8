package model

// Status reports how good the returned schedule is known to be
type Status int

const (
	// StatusOptimal means no schedule with a lower total penalty exists
	StatusOptimal Status = iota

	// StatusFeasibleSuboptimal means the time limit ended the search; the
	// best schedule found so far is returned but is not proven optimal
	StatusFeasibleSuboptimal

	// StatusInfeasible means the hard constraints contradict each other
	// and no schedule exists
	StatusInfeasible
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "OPTIMAL"
	case StatusFeasibleSuboptimal:
		return "FEASIBLE_SUBOPTIMAL"
	case StatusInfeasible:
		return "INFEASIBLE"
	default:
		return "UNKNOWN"
	}
}

// HasSchedule returns true if a schedule accompanies the status
func (s Status) HasSchedule() bool {
	return s == StatusOptimal || s == StatusFeasibleSuboptimal
}

// MarshalText encodes the status name
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
