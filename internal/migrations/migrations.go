package migrations

import (
	"fmt"
	"os"
	"path/filepath"
)

var (
	// MigrationsDir can be overridden in tests or by the application
	MigrationsDir = "scripts/migrations"
)

// GetDefaultMigrationsDir resolves the migrations directory, preferring the
// SENDGATE_MIGRATIONS_DIR environment variable when set.
func GetDefaultMigrationsDir() string {
	if dir := os.Getenv("SENDGATE_MIGRATIONS_DIR"); dir != "" {
		return dir
	}
	return MigrationsDir
}

// GetInitialSchema returns the initial database schema
func GetInitialSchema() (string, error) {
	dir := GetDefaultMigrationsDir()

	// Try a few locations so tests running from package directories also
	// find the schema file.
	searchPaths := []string{
		filepath.Join(dir, "001_initial_schema.sql"),
		filepath.Join("..", dir, "001_initial_schema.sql"),
		filepath.Join("..", "..", dir, "001_initial_schema.sql"),
	}

	for _, path := range searchPaths {
		if content, err := os.ReadFile(path); err == nil { // #nosec G304 - Paths are fixed relative locations
			return string(content), nil
		}
	}

	return "", fmt.Errorf("could not find schema file in any location")
}
