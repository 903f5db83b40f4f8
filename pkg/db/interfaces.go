package db

import "context"

// ScheduleRunStore defines the interface for schedule run database operations
type ScheduleRunStore interface {
	GetScheduleRuns(ctx context.Context) ([]ScheduleRun, error)

	// InsertScheduleRunWithAssignments stores a run and its assignments
	// atomically: either both are saved or neither is
	InsertScheduleRunWithAssignments(ctx context.Context, run *ScheduleRun, assignments []AssignmentRecord) error
}

// AssignmentStore defines the interface for assignment database operations
type AssignmentStore interface {
	GetAssignments(ctx context.Context, runID string) ([]AssignmentRecord, error)
}

// Database defines the interface for all database operations.
// postgres.DB implements this interface.
type Database interface {
	ScheduleRunStore
	AssignmentStore
}
