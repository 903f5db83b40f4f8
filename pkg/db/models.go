package db

// ScheduleRun represents a database schedule run record: one solve and its
// penalty breakdown
type ScheduleRun struct {
	ID         string
	WeekOf     string // first date of the planned week, "2006-01-02"
	Status     string
	Objective  int
	LowerBound int

	Understaffing int
	RoleShortfall int
	Clopen        int
	HourImbalance int

	ElapsedMillis int64
	CreatedAt     string
}

// AssignmentRecord represents a database assignment record
type AssignmentRecord struct {
	ID         string
	RunID      string
	ShiftDate  string
	Period     string
	EmployeeID string
	Role       string
}
