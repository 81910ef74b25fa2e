package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/julianstephens/routined/internal/constants"
	"github.com/julianstephens/routined/internal/storage/postgres"
	"github.com/julianstephens/routined/internal/storage/sqlite"
)

var (
	_ Provider = (*sqlite.Store)(nil)
	_ Provider = (*postgres.Store)(nil)
	_ Migrator = (*sqlite.Store)(nil)
	_ Migrator = (*postgres.Store)(nil)
)

// Backend names a routine store implementation.
type Backend string

const (
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
)

// DetectBackend classifies a --config value. postgres:// URIs and key=value
// DSNs with a host go to PostgreSQL; anything else is a SQLite file path.
func DetectBackend(target string) Backend {
	if postgres.IsURL(target) {
		return BackendPostgres
	}
	if strings.Contains(target, "host=") && strings.Contains(target, " ") {
		return BackendPostgres
	}
	return BackendSQLite
}

// New builds the Provider for target without opening it. An empty target
// selects the default SQLite database.
func New(target string) (Provider, error) {
	if target == "" {
		target = constants.DefaultConfigPath
	}

	switch DetectBackend(target) {
	case BackendPostgres:
		if err := postgres.ValidateConnString(target); err != nil {
			return nil, err
		}
		return postgres.New(target), nil
	default:
		path, err := ExpandPath(target)
		if err != nil {
			return nil, err
		}
		return sqlite.NewStore(path), nil
	}
}

// ExpandPath resolves a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
