package storage

import (
	"context"
	"fmt"
	"log"

	"salesetl/internal/schema"
	"salesetl/internal/schema/ddl"
)

// EnsureSchema creates every table that does not exist yet, using the DDL
// dialect of repo.Kind(). It stops at the first failing statement.
func EnsureSchema(ctx context.Context, repo Repository, tables []schema.Table) error {
	for _, t := range tables {
		stmt, err := ddl.BuildCreateTableSQL(repo.Kind(), t)
		if err != nil {
			return fmt.Errorf("ddl %s: %w", t.FQN(), err)
		}
		if err := repo.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create %s: %w", t.FQN(), err)
		}
		log.Printf("storage: ensured table %s", t.FQN())
	}
	return nil
}
