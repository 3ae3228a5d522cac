package hldb

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"

	"go.ntppool.org/common/logger"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Schema returns the DDL statements for driver.
func Schema(driver Driver) ([]string, error) {
	if driver == "" {
		driver = DriverMySQL
	}
	b, err := schemaFS.ReadFile("schema/" + string(driver) + ".sql")
	if err != nil {
		return nil, fmt.Errorf("no schema for driver %q", driver)
	}

	var stmts []string
	for _, s := range strings.Split(string(b), ";") {
		if s = strings.TrimSpace(s); len(s) > 0 {
			stmts = append(stmts, s)
		}
	}
	return stmts, nil
}

// Migrate creates any missing tables. Statements are idempotent so it is
// safe to run on every start.
func Migrate(ctx context.Context, db *sql.DB, driver Driver) error {
	log := logger.FromContext(ctx)

	stmts, err := Schema(driver)
	if err != nil {
		return err
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	log.DebugContext(ctx, "schema up to date", "driver", driver, "statements", len(stmts))
	return nil
}
