package database

import (
	"database/sql"
	"time"

	"iped-studio/models"
)

// ==================== DRAFT OPERATIONS ====================

// GetActiveDraft retrieves the newest incomplete draft for a user.
func (r *Repository) GetActiveDraft(userID string) (*models.StudyDraft, error) {
	row := r.db.QueryRow(`
		SELECT id, user_id, current_step, is_complete, steps, created_at, updated_at
		FROM study_drafts
		WHERE user_id = ? AND is_complete = 0
		ORDER BY created_at DESC
		LIMIT 1
	`, userID)
	return scanDraft(row)
}

func scanDraft(row *sql.Row) (*models.StudyDraft, error) {
	var draft models.StudyDraft
	var steps string
	err := row.Scan(
		&draft.ID, &draft.UserID, &draft.CurrentStep, &draft.IsComplete,
		&steps, &draft.CreatedAt, &draft.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := unmarshalDoc(steps, &draft.Steps); err != nil {
		return nil, err
	}
	return &draft, nil
}

func (r *Repository) CreateDraft(draft *models.StudyDraft) error {
	steps, err := marshalDoc(draft.Steps)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(`
		INSERT INTO study_drafts (id, user_id, current_step, is_complete, steps, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, draft.ID, draft.UserID, draft.CurrentStep, draft.IsComplete, steps,
		draft.CreatedAt, draft.UpdatedAt)
	return err
}

func (r *Repository) UpdateDraft(draft *models.StudyDraft) error {
	steps, err := marshalDoc(draft.Steps)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(`
		UPDATE study_drafts SET
			current_step = ?,
			is_complete = ?,
			steps = ?,
			updated_at = ?
		WHERE id = ?
	`, draft.CurrentStep, draft.IsComplete, steps, time.Now(), draft.ID)
	return err
}

func (r *Repository) DeleteDraft(draftID string) error {
	_, err := r.db.Exec(`DELETE FROM study_drafts WHERE id = ?`, draftID)
	return err
}

// DeleteCompletedDrafts removes drafts that were marked complete at
// launch but never cleaned up. Returns the number of drafts removed.
func (r *Repository) DeleteCompletedDrafts() (int64, error) {
	res, err := r.db.Exec(`DELETE FROM study_drafts WHERE is_complete = 1`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
