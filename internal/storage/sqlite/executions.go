package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/routined/internal/constants"
	rerrors "github.com/julianstephens/routined/internal/errors"
	"github.com/julianstephens/routined/internal/models"
	"github.com/julianstephens/routined/internal/utils"
)

const executionColumns = `id, routine_id, user_id, date, scheduled_time, end_time,
       status, started_at, completed_at, created_at`

func (s *Store) GetExecution(id string) (models.Execution, error) {
	row := s.db.QueryRow(`SELECT `+executionColumns+` FROM executions WHERE id = ?`, id)
	e, err := scanExecution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Execution{}, fmt.Errorf("execution %s: %w", id, rerrors.ErrNotFound)
	}
	return e, err
}

func (s *Store) GetExecutionsForDate(userID, date string) ([]models.Execution, error) {
	rows, err := s.db.Query(`
		SELECT `+executionColumns+` FROM executions
		WHERE user_id = ? AND date = ?
		ORDER BY scheduled_time, id`, userID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var executions []models.Execution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		executions = append(executions, e)
	}
	return executions, rows.Err()
}

func (s *Store) EnsureExecution(r models.Routine, date string) (models.Execution, error) {
	day, err := time.Parse(constants.DateFormat, date)
	if err != nil {
		return models.Execution{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	if !utils.IsOccurrence(r, day) {
		return models.Execution{}, fmt.Errorf("routine %s on %s: %w", r.ID, date, rerrors.ErrNotScheduled)
	}

	e := models.NewExecution(uuid.New().String(), r, date, time.Now().UTC())
	_, err = s.db.Exec(`
		INSERT INTO executions (id, routine_id, user_id, date, scheduled_time, end_time, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (routine_id, date) DO NOTHING`,
		e.ID, e.RoutineID, e.UserID, e.Date, e.ScheduledTime, e.EndTime, string(e.Status), formatTime(e.CreatedAt),
	)
	if err != nil {
		return models.Execution{}, fmt.Errorf("failed to create execution: %w", err)
	}

	row := s.db.QueryRow(`SELECT `+executionColumns+` FROM executions WHERE routine_id = ? AND date = ?`, r.ID, date)
	return scanExecution(row)
}

func (s *Store) UpdateExecution(e models.Execution) error {
	res, err := s.db.Exec(`
		UPDATE executions SET status = ?, started_at = ?, completed_at = ?
		WHERE id = ?`,
		string(e.Status), nullTime(e.StartedAt), nullTime(e.CompletedAt), e.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update execution: %w", err)
	}
	return expectOne(res, "execution", e.ID)
}

func scanExecution(row scanner) (models.Execution, error) {
	var e models.Execution
	var status, createdAt string
	var startedAt, completedAt sql.NullString
	err := row.Scan(&e.ID, &e.RoutineID, &e.UserID, &e.Date, &e.ScheduledTime, &e.EndTime,
		&status, &startedAt, &completedAt, &createdAt)
	if err != nil {
		return models.Execution{}, err
	}
	e.Status = models.ExecutionStatus(status)
	e.CreatedAt = parseTime(createdAt)
	if startedAt.Valid {
		t := parseTime(startedAt.String)
		e.StartedAt = &t
	}
	if completedAt.Valid {
		t := parseTime(completedAt.String)
		e.CompletedAt = &t
	}
	return e, nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}
