package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

type DB struct {
	*sql.DB
}

func New(dbPath string) (*DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return &DB{db}, nil
}

func (db *DB) Migrate() error {
	queries := []string{
		// Researchers
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT UNIQUE NOT NULL,
			username TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			last_login_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Wizard drafts; step payloads live in one JSON document
		`CREATE TABLE IF NOT EXISTS study_drafts (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			current_step TEXT NOT NULL DEFAULT '1a',
			is_complete INTEGER NOT NULL DEFAULT 0,
			steps TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,

		// Launched studies; sub-records stored as JSON documents
		`CREATE TABLE IF NOT EXISTS studies (
			id TEXT PRIMARY KEY,
			creator_id TEXT NOT NULL,
			title TEXT NOT NULL,
			background TEXT,
			language TEXT NOT NULL DEFAULT 'en',
			study_type TEXT NOT NULL,
			main_question TEXT NOT NULL,
			orientation_text TEXT,
			rating_scale TEXT NOT NULL DEFAULT '{}',
			elements TEXT NOT NULL DEFAULT '[]',
			classification_questions TEXT NOT NULL DEFAULT '[]',
			iped_parameters TEXT NOT NULL DEFAULT '{}',
			tasks TEXT NOT NULL DEFAULT '{}',
			share_token TEXT UNIQUE NOT NULL,
			share_url TEXT,
			status TEXT NOT NULL DEFAULT 'active',
			total_responses INTEGER NOT NULL DEFAULT 0,
			completed_responses INTEGER NOT NULL DEFAULT 0,
			abandoned_responses INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (creator_id) REFERENCES users(id) ON DELETE CASCADE
		)`,

		// Anonymous respondent progress
		`CREATE TABLE IF NOT EXISTS study_responses (
			id TEXT PRIMARY KEY,
			study_id TEXT NOT NULL,
			session_id TEXT UNIQUE NOT NULL,
			respondent_id INTEGER NOT NULL,
			status TEXT NOT NULL DEFAULT 'in_progress',
			personal_info TEXT,
			classification_answers TEXT NOT NULL DEFAULT '[]',
			completed_tasks TEXT NOT NULL DEFAULT '[]',
			current_task_index INTEGER NOT NULL DEFAULT 0,
			total_tasks_assigned INTEGER NOT NULL DEFAULT 0,
			completed_tasks_count INTEGER NOT NULL DEFAULT 0,
			session_start_time DATETIME NOT NULL,
			session_end_time DATETIME,
			last_activity DATETIME NOT NULL,
			abandonment_reason TEXT,
			ip_address TEXT,
			user_agent TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (study_id) REFERENCES studies(id) ON DELETE CASCADE
		)`,

		// Per-task event tracking
		`CREATE TABLE IF NOT EXISTS task_sessions (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			task_id TEXT NOT NULL,
			study_response_id TEXT NOT NULL,
			page_transitions TEXT NOT NULL DEFAULT '[]',
			element_interactions TEXT NOT NULL DEFAULT '[]',
			completed INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			completed_at DATETIME,
			FOREIGN KEY (study_response_id) REFERENCES study_responses(id) ON DELETE CASCADE,
			UNIQUE(session_id, task_id)
		)`,

		// Indexes for performance
		`CREATE INDEX IF NOT EXISTS idx_drafts_user ON study_drafts(user_id, is_complete)`,
		`CREATE INDEX IF NOT EXISTS idx_studies_creator ON studies(creator_id)`,
		`CREATE INDEX IF NOT EXISTS idx_studies_share_token ON studies(share_token)`,
		`CREATE INDEX IF NOT EXISTS idx_responses_study ON study_responses(study_id)`,
		`CREATE INDEX IF NOT EXISTS idx_responses_activity ON study_responses(status, last_activity)`,
		`CREATE INDEX IF NOT EXISTS idx_task_sessions_session ON task_sessions(session_id)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

func (db *DB) Close() error {
	return db.DB.Close()
}
