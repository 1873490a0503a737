package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// migrationLockID serializes migrations between the API and the worker.
const migrationLockID int64 = 0x7265636f726473

// Migration is one forward-only schema change.
type Migration struct {
	Version int
	Name    string
	UpSQL   string
}

func migrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_courses", UpSQL: migration001Up},
		{Version: 2, Name: "create_grades", UpSQL: migration002Up},
		{Version: 3, Name: "create_classifications", UpSQL: migration003Up},
	}
}

// Migrator applies pending migrations and records them in schema_migrations.
type Migrator struct {
	conn       *Connection
	migrations []Migration
}

// NewMigrator creates a migrator with the built-in migrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{conn: conn, migrations: migrations()}
}

// Migrate applies every migration not yet recorded. Each one runs in its own
// transaction holding an advisory lock, so concurrent callers apply it once.
func (m *Migrator) Migrate(ctx context.Context) error {
	if _, err := m.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return fmt.Errorf("%w: create schema_migrations: %v", ErrMigrationFailed, err)
	}

	for _, mig := range m.migrations {
		err := m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLockID); err != nil {
				return err
			}

			var applied bool
			if err := tx.QueryRow(ctx,
				`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`, mig.Version,
			).Scan(&applied); err != nil {
				return err
			}
			if applied {
				return nil
			}

			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return err
			}
			_, err := tx.Exec(ctx,
				`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: %03d_%s: %v", ErrMigrationFailed, mig.Version, mig.Name, err)
		}
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE COURSES
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create courses, disciplines and enrollments
-- Version: 001

CREATE TABLE IF NOT EXISTS courses (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    name VARCHAR(200) NOT NULL,
    formula VARCHAR(10) NOT NULL,
    is_period BOOLEAN NOT NULL DEFAULT FALSE,
    modules BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT courses_grouping CHECK (NOT (is_period AND modules))
);

CREATE TABLE IF NOT EXISTS disciplines (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    name VARCHAR(200) NOT NULL
);

CREATE TABLE IF NOT EXISTS course_disciplines (
    course_id UUID NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
    discipline_id UUID NOT NULL REFERENCES disciplines(id) ON DELETE CASCADE,
    hours INTEGER NOT NULL DEFAULT 0,
    weight DECIMAL(6,3) NOT NULL DEFAULT 1,
    module INTEGER NOT NULL DEFAULT 0,
    expected VARCHAR(20) NOT NULL DEFAULT 'VF',

    PRIMARY KEY (course_id, discipline_id),
    CONSTRAINT course_disciplines_hours CHECK (hours >= 0),
    CONSTRAINT course_disciplines_expected CHECK (expected IN ('VF', 'AVI VF', 'AVI AVII VF'))
);

CREATE TABLE IF NOT EXISTS poles (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    name VARCHAR(200) NOT NULL
);

CREATE TABLE IF NOT EXISTS enrollments (
    student_id UUID NOT NULL,
    student_name VARCHAR(200) NOT NULL DEFAULT '',
    course_id UUID NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
    pole_id UUID NOT NULL REFERENCES poles(id),
    active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (course_id, student_id)
);

CREATE INDEX IF NOT EXISTS idx_enrollments_active ON enrollments(course_id) WHERE active;
`


// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE GRADES
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create assessments and behaviors
-- Version: 002

CREATE TABLE IF NOT EXISTS assessments (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    student_id UUID NOT NULL,
    course_id UUID NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
    discipline_id UUID NOT NULL,
    avi DECIMAL(5,3),
    avii DECIMAL(5,3),
    vf DECIMAL(5,3) NOT NULL,
    vfe DECIMAL(5,3),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT assessments_unique UNIQUE (student_id, course_id, discipline_id),
    CONSTRAINT assessments_range CHECK (
        vf BETWEEN 0 AND 10
        AND (avi IS NULL OR avi BETWEEN 0 AND 10)
        AND (avii IS NULL OR avii BETWEEN 0 AND 10)
        AND (vfe IS NULL OR vfe BETWEEN 0 AND 10)
    )
);

CREATE INDEX IF NOT EXISTS idx_assessments_course ON assessments(course_id, student_id);

-- months holds 12 nullable scores, January first
CREATE TABLE IF NOT EXISTS behaviors (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    student_id UUID NOT NULL,
    course_id UUID NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
    module INTEGER NOT NULL DEFAULT 0,
    current_year INTEGER NOT NULL,
    months DOUBLE PRECISION[] NOT NULL DEFAULT ARRAY[NULL,NULL,NULL,NULL,NULL,NULL,NULL,NULL,NULL,NULL,NULL,NULL]::DOUBLE PRECISION[],
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT behaviors_months CHECK (array_length(months, 1) = 12)
);

CREATE INDEX IF NOT EXISTS idx_behaviors_course ON behaviors(course_id, student_id);
`


// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE CLASSIFICATIONS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create classifications
-- Version: 003

CREATE TABLE IF NOT EXISTS classifications (
    id UUID PRIMARY KEY,
    student_id UUID NOT NULL,
    student_name VARCHAR(200) NOT NULL DEFAULT '',
    course_id UUID NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
    pole_id UUID NOT NULL,
    average DECIMAL(6,3) NOT NULL,
    assessments_count INTEGER NOT NULL DEFAULT 0,
    behaviors_count INTEGER NOT NULL DEFAULT 0,
    concept VARCHAR(50) NOT NULL,
    status VARCHAR(30) NOT NULL,
    is_recovering BOOLEAN NOT NULL DEFAULT FALSE,
    assessments JSONB NOT NULL DEFAULT '[]'::jsonb,
    behaviors JSONB NOT NULL DEFAULT '[]'::jsonb,
    groups JSONB NOT NULL DEFAULT '[]'::jsonb,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT classifications_unique UNIQUE (student_id, course_id),
    CONSTRAINT classifications_status CHECK (
        status IN ('approved', 'disapproved', 'second season', 'approved second season')
    )
);

CREATE INDEX IF NOT EXISTS idx_classifications_course_average ON classifications(course_id, average DESC);
CREATE INDEX IF NOT EXISTS idx_classifications_course_pole ON classifications(course_id, pole_id, average DESC);
`

