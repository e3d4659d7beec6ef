package comparison

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"github.com/wonny/sfmlstats/pkg/database"
	"github.com/wonny/sfmlstats/pkg/logger"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migration 하나의 스키마 파일
type Migration struct {
	Name string
	SQL  string
}

// Migrations returns the embedded migrations in apply order
func Migrations() ([]Migration, error) {
	names, err := fs.Glob(migrationFS, "migrations/*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(names)

	migrations := make([]Migration, 0, len(names))
	for _, name := range names {
		body, err := migrationFS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		migrations = append(migrations, Migration{Name: name, SQL: string(body)})
	}
	return migrations, nil
}

// Migrate 스키마 적용. 모든 문장은 IF NOT EXISTS 라 반복 실행해도 안전하다.
func Migrate(ctx context.Context, conn database.Conn, log *logger.Logger) error {
	migrations, err := Migrations()
	if err != nil {
		return err
	}

	log = log.WithField("module", "comparison.migrate")
	for _, m := range migrations {
		if _, err := conn.Exec(ctx, m.SQL); err != nil {
			return fmt.Errorf("apply %s: %w", m.Name, err)
		}
		log.WithField("migration", m.Name).Info("Migration applied")
	}

	return nil
}
