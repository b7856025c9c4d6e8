package database

import (
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/models"
)

// Migrator handles database migrations
type Migrator struct {
	db *Connection
}

// NewMigrator creates a new migrator instance
func NewMigrator(db *Connection) *Migrator {
	return &Migrator{db: db}
}

func (m *Migrator) tables() []interface{} {
	return []interface{}{
		&models.MappingProfile{},
		&models.MappingProfileEvent{},
		&models.IngestionRun{},
		&models.IngestionSnapshot{},
		&models.IngestionRejection{},
		&models.Person{},
		&models.Group{},
		&models.Membership{},
		&models.OutboxEvent{},
	}
}

// Up runs all pending migrations
func (m *Migrator) Up() error {
	if m.db.IsMemory() {
		return nil
	}
	return m.db.AutoMigrate(m.tables()...)
}

// Down rolls back all migrations (for testing purposes)
func (m *Migrator) Down() error {
	if m.db.IsMemory() {
		return nil
	}
	tables := m.tables()
	for i, j := 0, len(tables)-1; i < j; i, j = i+1, j-1 {
		tables[i], tables[j] = tables[j], tables[i]
	}
	return m.db.Migrator().DropTable(tables...)
}

// Status reports which tables exist
func (m *Migrator) Status() map[string]bool {
	status := make(map[string]bool)
	if m.db.IsMemory() {
		return status
	}
	for _, table := range m.tables() {
		if tabler, ok := table.(interface{ TableName() string }); ok {
			status[tabler.TableName()] = m.db.Migrator().HasTable(table)
		}
	}
	return status
}
