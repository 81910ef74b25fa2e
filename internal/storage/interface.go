package storage

import "github.com/julianstephens/routined/internal/models"

// Provider is the routine store. Routines, their dated executions and the
// notification settings live behind it.
type Provider interface {
	// Lifecycle
	Init() error
	Load() error
	Close() error

	// Settings
	GetSettings() (models.Settings, error)
	SaveSettings(models.Settings) error

	// Routines
	AddRoutine(models.Routine) error
	GetRoutine(id string) (models.Routine, error)
	GetRoutines(userID string, includeInactive bool) ([]models.Routine, error)
	UpdateRoutine(models.Routine) error
	SetRoutineActive(id string, active bool) error
	// DeleteRoutine removes the routine and every execution it owns.
	DeleteRoutine(id string) error

	// Executions
	GetExecution(id string) (models.Execution, error)
	GetExecutionsForDate(userID, date string) ([]models.Execution, error)
	// EnsureExecution returns the execution of r on date (YYYY-MM-DD),
	// creating it as pending when absent. Calling it twice never creates a
	// second row. It refuses inactive routines and days outside r.Days.
	EnsureExecution(r models.Routine, date string) (models.Execution, error)
	UpdateExecution(models.Execution) error

	// Utils
	GetConfigPath() string
}

// Migrator is implemented by stores with a versioned schema.
type Migrator interface {
	Migrate(logFn func(string)) (int, error)
	SchemaVersion() (current, latest int, err error)
}
