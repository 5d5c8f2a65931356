// Package migrations embeds the schema scripts applied by cmd/migrate
package migrations

import (
	"embed"
	"fmt"
)

//go:embed *.sql
var files embed.FS

// Script returns the SQL for the given migration and direction ("up" or "down")
func Script(name, direction string) (string, error) {
	if direction != "up" && direction != "down" {
		return "", fmt.Errorf("unknown migration direction %q", direction)
	}

	content, err := files.ReadFile(fmt.Sprintf("%s.%s.sql", name, direction))
	if err != nil {
		return "", fmt.Errorf("failed to read migration %s (%s): %w", name, direction, err)
	}
	return string(content), nil
}
