package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/jakechorley/shiftplanner/pkg/db"
)

// GetScheduleRuns retrieves all schedule run records, newest first
func (d *DB) GetScheduleRuns(ctx context.Context) ([]db.ScheduleRun, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, week_of, status, objective, lower_bound,
			understaffing, role_shortfall, clopen, hour_imbalance,
			elapsed_ms, created_at
		FROM schedule_run
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedule runs: %w", err)
	}
	defer rows.Close()

	var runs []db.ScheduleRun
	for rows.Next() {
		var r db.ScheduleRun
		var weekOf, createdAt time.Time
		if err := rows.Scan(
			&r.ID, &weekOf, &r.Status, &r.Objective, &r.LowerBound,
			&r.Understaffing, &r.RoleShortfall, &r.Clopen, &r.HourImbalance,
			&r.ElapsedMillis, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan schedule run: %w", err)
		}
		r.WeekOf = weekOf.Format("2006-01-02")
		r.CreatedAt = createdAt.UTC().Format(time.RFC3339)
		runs = append(runs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schedule runs: %w", err)
	}

	return runs, nil
}

// InsertScheduleRunWithAssignments stores the run and its assignments in
// one transaction. A failure on any row leaves no trace of the run.
func (d *DB) InsertScheduleRunWithAssignments(ctx context.Context, run *db.ScheduleRun, assignments []db.AssignmentRecord) error {
	if err := insertRunTx(ctx, d.pool, run, assignments); err != nil {
		return err
	}
	d.logger.Debug("Stored schedule run",
		zap.String("run_id", run.ID),
		zap.Int("assignments", len(assignments)))
	return nil
}

// txStarter is satisfied by *pgxpool.Pool and pgx.Conn
type txStarter interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

func insertRunTx(ctx context.Context, conn txStarter, run *db.ScheduleRun, assignments []db.AssignmentRecord) error {
	return pgx.BeginFunc(ctx, conn, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO schedule_run (id, week_of, status, objective, lower_bound,
				understaffing, role_shortfall, clopen, hour_imbalance, elapsed_ms)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, run.ID, run.WeekOf, run.Status, run.Objective, run.LowerBound,
			run.Understaffing, run.RoleShortfall, run.Clopen, run.HourImbalance,
			run.ElapsedMillis)
		if err != nil {
			return fmt.Errorf("failed to insert schedule run: %w", err)
		}

		for _, a := range assignments {
			var role *string
			if a.Role != "" {
				role = &a.Role
			}

			_, err := tx.Exec(ctx, `
				INSERT INTO assignment (id, run_id, shift_date, period, employee_id, role)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, a.ID, a.RunID, a.ShiftDate, a.Period, a.EmployeeID, role)
			if err != nil {
				return fmt.Errorf("failed to insert assignment: %w", err)
			}
		}
		return nil
	})
}

// GetAssignments retrieves the assignments of one run ordered by date.
// Periods within a date come back in name order; callers that know the
// configured period order re-sort.
func (d *DB) GetAssignments(ctx context.Context, runID string) ([]db.AssignmentRecord, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, run_id, shift_date, period, employee_id, role
		FROM assignment
		WHERE run_id = $1
		ORDER BY shift_date, period, employee_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()

	var assignments []db.AssignmentRecord
	for rows.Next() {
		var a db.AssignmentRecord
		var shiftDate time.Time
		var role *string
		if err := rows.Scan(&a.ID, &a.RunID, &shiftDate, &a.Period, &a.EmployeeID, &role); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		a.ShiftDate = shiftDate.Format("2006-01-02")
		if role != nil {
			a.Role = *role
		}
		assignments = append(assignments, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assignments: %w", err)
	}

	return assignments, nil
}

var _ db.Database = (*DB)(nil)
