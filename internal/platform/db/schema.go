package db

import (
	"context"
	"fmt"
)

// Timestamps are stored as RFC3339Nano TEXT and flags as INTEGER 0/1 so the
// same DDL and queries run on both backends.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS organisations (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		modified_at TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		email TEXT,
		password_hash TEXT NOT NULL,
		salt_hex TEXT NOT NULL,
		is_superuser INTEGER NOT NULL DEFAULT 0,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS memberships (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL REFERENCES organisations(id),
		user_id TEXT NOT NULL REFERENCES users(id),
		org_role TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		UNIQUE (org_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS institutions (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL REFERENCES organisations(id),
		name TEXT NOT NULL,
		sla_hours INTEGER NOT NULL DEFAULT 48,
		created_at TEXT NOT NULL,
		UNIQUE (org_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS protocols (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL REFERENCES organisations(id),
		name TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		UNIQUE (org_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS cases (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL REFERENCES organisations(id),
		created_at TEXT NOT NULL,
		patient_first_name TEXT NOT NULL,
		patient_surname TEXT NOT NULL,
		patient_referral_id TEXT,
		institution_id TEXT NOT NULL REFERENCES institutions(id),
		study_description TEXT NOT NULL,
		admin_notes TEXT,
		reopen_reason TEXT,
		reviewer_id TEXT,
		uploaded_filename TEXT,
		stored_filepath TEXT,
		status TEXT NOT NULL,
		protocol TEXT,
		decision TEXT,
		decision_comment TEXT,
		vetted_at TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_cases_org_status ON cases (org_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_cases_org_created ON cases (org_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS case_events (
		id TEXT PRIMARY KEY,
		case_id TEXT NOT NULL REFERENCES cases(id),
		org_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		event_type TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		actor_role TEXT NOT NULL,
		cross_tenant INTEGER NOT NULL DEFAULT 0,
		occurred_at TEXT NOT NULL,
		decision TEXT,
		protocol TEXT,
		comment TEXT,
		UNIQUE (case_id, seq)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_case_events_org_time ON case_events (org_id, occurred_at)`,
}

// EnsureSchema creates all tables if missing. Safe to call at every startup.
func (h *Handle) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := h.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
