// Package models holds the gorm-mapped tables.
package models

// All returns every model for auto-migration.
func All() []any {
	return []any{
		&Workflow{},
		&ConciliationRun{},
		&TransitionLog{},
		&Credential{},
	}
}
