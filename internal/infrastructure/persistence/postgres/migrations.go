// Package postgres implements the PostgreSQL persistence layer for the
// ClassPulse backend.
package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE ROSTER
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create roster tables
-- Version: 001

-- Students known to the recognition pipeline
CREATE TABLE IF NOT EXISTS students (
    id BIGSERIAL PRIMARY KEY,
    name VARCHAR(200) NOT NULL UNIQUE,
    photo_path TEXT,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_students_name ON students(name);

-- Face encodings captured at enrollment. A student can carry several
-- (different angles, lighting); the recognizer matches against all of them.
CREATE TABLE IF NOT EXISTS student_encodings (
    id BIGSERIAL PRIMARY KEY,
    student_id BIGINT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    encoding BYTEA NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_student_encodings_student_id ON student_encodings(student_id);
`

const migration001Down = `
DROP TABLE IF EXISTS student_encodings;
DROP TABLE IF EXISTS students;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE COURSES
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create courses and course occurrences
-- Version: 002

CREATE TABLE IF NOT EXISTS courses (
    id BIGSERIAL PRIMARY KEY,
    name VARCHAR(200) NOT NULL,
    code VARCHAR(50),
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_courses_name ON courses(name);

-- One row per held occurrence of a course. session_number increments per
-- course; end_time stays NULL until the occurrence is finalized.
CREATE TABLE IF NOT EXISTS course_sessions (
    id BIGSERIAL PRIMARY KEY,
    course_id BIGINT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
    session_number INTEGER NOT NULL,
    session_date VARCHAR(10) NOT NULL,
    start_time TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    end_time TIMESTAMP WITH TIME ZONE,
    total_students INTEGER NOT NULL DEFAULT 0,
    avg_engagement DOUBLE PRECISION NOT NULL DEFAULT 0,

    CONSTRAINT uq_course_sessions_number UNIQUE (course_id, session_number)
);

CREATE INDEX IF NOT EXISTS idx_course_sessions_course_id ON course_sessions(course_id);
CREATE INDEX IF NOT EXISTS idx_course_sessions_date ON course_sessions(session_date);
`

const migration002Down = `
DROP TABLE IF EXISTS course_sessions;
DROP TABLE IF EXISTS courses;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE MONITORING RECORDS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create attendance and engagement history
-- Version: 003

-- One row per detection; the reports collapse these to per-day or
-- per-occurrence presence.
CREATE TABLE IF NOT EXISTS attendance (
    id BIGSERIAL PRIMARY KEY,
    student_id BIGINT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    session_date VARCHAR(10) NOT NULL,
    session_time VARCHAR(8) NOT NULL,
    course_id BIGINT REFERENCES courses(id) ON DELETE SET NULL,
    course_session_id BIGINT REFERENCES course_sessions(id) ON DELETE SET NULL,
    detected_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_attendance_student_date ON attendance(student_id, session_date);
CREATE INDEX IF NOT EXISTS idx_attendance_session_date ON attendance(session_date);
CREATE INDEX IF NOT EXISTS idx_attendance_course_id ON attendance(course_id);
CREATE INDEX IF NOT EXISTS idx_attendance_course_session_id ON attendance(course_session_id);

CREATE TABLE IF NOT EXISTS engagement (
    id BIGSERIAL PRIMARY KEY,
    student_id BIGINT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    session_date VARCHAR(10) NOT NULL,
    session_time VARCHAR(8) NOT NULL,
    attention_score DOUBLE PRECISION NOT NULL DEFAULT 0,
    eyes_open BOOLEAN NOT NULL DEFAULT TRUE,
    facing_camera BOOLEAN NOT NULL DEFAULT TRUE,
    course_id BIGINT REFERENCES courses(id) ON DELETE SET NULL,
    course_session_id BIGINT REFERENCES course_sessions(id) ON DELETE SET NULL,
    recorded_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_engagement_student_date ON engagement(student_id, session_date);
CREATE INDEX IF NOT EXISTS idx_engagement_session_date ON engagement(session_date);
CREATE INDEX IF NOT EXISTS idx_engagement_course_id ON engagement(course_id);
CREATE INDEX IF NOT EXISTS idx_engagement_course_session_id ON engagement(course_session_id);
`

const migration003Down = `
DROP TABLE IF EXISTS engagement;
DROP TABLE IF EXISTS attendance;
`
