package database

import (
	"database/sql"

	"iped-studio/models"
)

// ==================== TASK SESSION OPERATIONS ====================

const taskSessionColumns = `id, session_id, task_id, study_response_id,
	page_transitions, element_interactions, completed, created_at, completed_at`

func (r *Repository) CreateTaskSession(ts *models.TaskSession) error {
	transitions, err := marshalDoc(ts.PageTransitions)
	if err != nil {
		return err
	}
	interactions, err := marshalDoc(ts.ElementInteractions)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(`
		INSERT INTO task_sessions (`+taskSessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		ts.ID, ts.SessionID, ts.TaskID, ts.StudyResponseID,
		transitions, interactions, ts.Completed, ts.CreatedAt, ts.CompletedAt,
	)
	return err
}

func (r *Repository) UpdateTaskSession(ts *models.TaskSession) error {
	transitions, err := marshalDoc(ts.PageTransitions)
	if err != nil {
		return err
	}
	interactions, err := marshalDoc(ts.ElementInteractions)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(`
		UPDATE task_sessions SET
			page_transitions = ?,
			element_interactions = ?,
			completed = ?,
			completed_at = ?
		WHERE id = ?
	`, transitions, interactions, ts.Completed, ts.CompletedAt, ts.ID)
	return err
}

func (r *Repository) GetTaskSession(sessionID, taskID string) (*models.TaskSession, error) {
	row := r.db.QueryRow(`
		SELECT `+taskSessionColumns+` FROM task_sessions
		WHERE session_id = ? AND task_id = ?
	`, sessionID, taskID)
	return scanTaskSession(row)
}

// GetLatestTaskSession retrieves the most recently created task session
// for a respondent session.
func (r *Repository) GetLatestTaskSession(sessionID string) (*models.TaskSession, error) {
	row := r.db.QueryRow(`
		SELECT `+taskSessionColumns+` FROM task_sessions
		WHERE session_id = ?
		ORDER BY created_at DESC
		LIMIT 1
	`, sessionID)
	return scanTaskSession(row)
}

func scanTaskSession(row *sql.Row) (*models.TaskSession, error) {
	var ts models.TaskSession
	var transitions, interactions string
	var completedAt sql.NullTime

	err := row.Scan(
		&ts.ID, &ts.SessionID, &ts.TaskID, &ts.StudyResponseID,
		&transitions, &interactions, &ts.Completed, &ts.CreatedAt, &completedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := unmarshalDoc(transitions, &ts.PageTransitions); err != nil {
		return nil, err
	}
	if err := unmarshalDoc(interactions, &ts.ElementInteractions); err != nil {
		return nil, err
	}
	if completedAt.Valid {
		t := completedAt.Time
		ts.CompletedAt = &t
	}
	return &ts, nil
}
