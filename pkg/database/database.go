package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/neurotrace/neurotrace-api/internal/config"
	"github.com/neurotrace/neurotrace-api/internal/domain"
	"github.com/neurotrace/neurotrace-api/internal/domain/patient"
	"github.com/neurotrace/neurotrace-api/internal/domain/visit"
)

func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		PrepareStmt:                              true,
		DisableForeignKeyConstraintWhenMigrating: false,
		DisableAutomaticPing:                     false,
	}

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DSN(),
		PreferSimpleProtocol: false,
	}), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return db, nil
}

func Migrate(db *gorm.DB, log *zap.Logger) error {
	log.Info("running database migrations")
	start := time.Now()

	schemas := []string{"clinical", "auth", "audit"} // logical namespace
	for _, schema := range schemas {
		if err := db.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema)).Error; err != nil {
			return fmt.Errorf("creating schema %s: %w", schema, err)
		}
	}

	models := []any{
		&domain.User{},
		&domain.Profile{},
		&domain.AuditLog{},
		&patient.Patient{},
		&visit.Visit{},
	}

	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto-migrating models: %w", err)
	}

	if err := createConstraints(db); err != nil {
		return fmt.Errorf("creating constraints: %w", err)
	}

	log.Info("migrations completed", zap.Duration("duration", time.Since(start)))
	return nil
}

func createConstraints(db *gorm.DB) error {
	statements := []struct {
		name  string
		query string
	}{
		// Deleting a patient removes all of their visits.
		{
			name: "fk_visits_patient_cascade",
			query: `DO $$ BEGIN
				IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'fk_visits_patient') THEN
					ALTER TABLE clinical.visits
						ADD CONSTRAINT fk_visits_patient
						FOREIGN KEY (patient_id) REFERENCES clinical.patients (id)
						ON DELETE CASCADE;
				END IF;
			END $$`,
		},
		// Stage values are constrained to the canonical set at the store level.
		{
			name: "chk_visits_stage",
			query: `DO $$ BEGIN
				IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_visits_stage') THEN
					ALTER TABLE clinical.visits
						ADD CONSTRAINT chk_visits_stage
						CHECK (predicted_stage IS NULL OR predicted_stage IN
							('Normal', 'Very_Mild_Dementia', 'Mild_Dementia', 'Moderate_Dementia'));
				END IF;
			END $$`,
		},
		{
			name:  "idx_visits_patient_timeline",
			query: `CREATE INDEX IF NOT EXISTS idx_visits_patient_timeline ON clinical.visits (patient_id, created_at)`,
		},
		// Patient search: GIN index for full-text search on name fields
		{
			name:  "idx_patients_name_search",
			query: `CREATE INDEX IF NOT EXISTS idx_patients_name_trgm ON clinical.patients USING gin ((first_name || ' ' || last_name) gin_trgm_ops) WHERE deleted_at IS NULL`,
		},
	}

	// pg_trgm backs the name-search index; requires the extension to be
	// installable by the migration role.
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS pg_trgm").Error; err != nil {
		return fmt.Errorf("creating pg_trgm extension: %w", err)
	}

	for _, stmt := range statements {
		if err := db.Exec(stmt.query).Error; err != nil {
			return fmt.Errorf("applying %s: %w", stmt.name, err)
		}
	}

	return nil
}
