package postgres

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	rerrors "github.com/julianstephens/routined/internal/errors"
	"github.com/julianstephens/routined/internal/models"
	"github.com/julianstephens/routined/internal/validation"
)

const routineColumns = `id, user_id, title, description, days, start_time, end_time,
       category, priority, active, created_at, updated_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func (s *Store) AddRoutine(r models.Routine) error {
	r.NormalizeDays()
	if err := validation.ValidateRoutine(r); err != nil {
		return err
	}
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now

	days, err := json.Marshal(r.Days)
	if err != nil {
		return fmt.Errorf("encoding days: %w", err)
	}
	_, err = s.db.Exec(`
INSERT INTO routines (`+routineColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		r.ID, r.UserID, r.Title, r.Description, string(days), r.StartTime, r.EndTime,
		string(r.Category), string(r.Priority), r.Active, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to add routine: %w", err)
	}
	return nil
}

func (s *Store) GetRoutine(id string) (models.Routine, error) {
	row := s.db.QueryRow(`SELECT `+routineColumns+` FROM routines WHERE id = $1`, id)
	r, err := scanRoutine(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Routine{}, fmt.Errorf("routine %s: %w", id, rerrors.ErrNotFound)
	}
	return r, err
}

func (s *Store) GetRoutines(userID string, includeInactive bool) ([]models.Routine, error) {
	query := `SELECT ` + routineColumns + ` FROM routines WHERE user_id = $1`
	if !includeInactive {
		query += ` AND active`
	}
	query += ` ORDER BY start_time, title`

	rows, err := s.db.Query(query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var routines []models.Routine
	for rows.Next() {
		r, err := scanRoutine(rows)
		if err != nil {
			return nil, err
		}
		routines = append(routines, r)
	}
	return routines, rows.Err()
}

func (s *Store) UpdateRoutine(r models.Routine) error {
	r.NormalizeDays()
	if err := validation.ValidateRoutine(r); err != nil {
		return err
	}
	days, err := json.Marshal(r.Days)
	if err != nil {
		return fmt.Errorf("encoding days: %w", err)
	}
	res, err := s.db.Exec(`
UPDATE routines
SET title = $1, description = $2, days = $3, start_time = $4, end_time = $5,
    category = $6, priority = $7, active = $8, updated_at = $9
WHERE id = $10`,
		r.Title, r.Description, string(days), r.StartTime, r.EndTime,
		string(r.Category), string(r.Priority), r.Active, time.Now().UTC(), r.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update routine: %w", err)
	}
	return expectOne(res, "routine", r.ID)
}

func (s *Store) SetRoutineActive(id string, active bool) error {
	res, err := s.db.Exec(`UPDATE routines SET active = $1, updated_at = $2 WHERE id = $3`,
		active, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update routine: %w", err)
	}
	return expectOne(res, "routine", id)
}

func (s *Store) DeleteRoutine(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM executions WHERE routine_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete executions: %w", err)
	}
	res, err := tx.Exec(`DELETE FROM routines WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete routine: %w", err)
	}
	if err := expectOne(res, "routine", id); err != nil {
		return err
	}
	return tx.Commit()
}

func scanRoutine(row scanner) (models.Routine, error) {
	var r models.Routine
	var days, category, priority string
	err := row.Scan(&r.ID, &r.UserID, &r.Title, &r.Description, &days, &r.StartTime, &r.EndTime,
		&category, &priority, &r.Active, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return models.Routine{}, err
	}
	if err := json.Unmarshal([]byte(days), &r.Days); err != nil {
		return models.Routine{}, fmt.Errorf("decoding days of routine %s: %w", r.ID, err)
	}
	r.Category = models.Category(category)
	r.Priority = models.Priority(priority)
	return r, nil
}

func expectOne(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, rerrors.ErrNotFound)
	}
	return nil
}
