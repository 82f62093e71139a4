package database

import (
	"database/sql"
	"time"

	"iped-studio/models"
)

// ==================== RESPONSE OPERATIONS ====================

const responseColumns = `id, study_id, session_id, respondent_id, status,
	personal_info, classification_answers, completed_tasks,
	current_task_index, total_tasks_assigned, completed_tasks_count,
	session_start_time, session_end_time, last_activity,
	abandonment_reason, ip_address, user_agent, created_at`

func (r *Repository) CreateResponse(resp *models.StudyResponse) error {
	personalInfo, err := marshalNullableDoc(resp.PersonalInfo)
	if err != nil {
		return err
	}
	answers, err := marshalDoc(resp.ClassificationAnswers)
	if err != nil {
		return err
	}
	tasks, err := marshalDoc(resp.CompletedTasks)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(`
		INSERT INTO study_responses (`+responseColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		resp.ID, resp.StudyID, resp.SessionID, resp.RespondentID, resp.Status,
		personalInfo, answers, tasks,
		resp.CurrentTaskIndex, resp.TotalTasksAssigned, resp.CompletedTasksCount,
		resp.SessionStartTime, resp.SessionEndTime, resp.LastActivity,
		resp.AbandonmentReason, resp.IPAddress, resp.UserAgent, resp.CreatedAt,
	)
	return err
}

func (r *Repository) GetResponseBySessionID(sessionID string) (*models.StudyResponse, error) {
	row := r.db.QueryRow(`SELECT `+responseColumns+` FROM study_responses WHERE session_id = ?`, sessionID)
	return scanResponse(row.Scan)
}

func scanResponse(scan func(...any) error) (*models.StudyResponse, error) {
	var resp models.StudyResponse
	var personalInfo, abandonmentReason sql.NullString
	var answers, tasks string
	var sessionEnd sql.NullTime

	err := scan(
		&resp.ID, &resp.StudyID, &resp.SessionID, &resp.RespondentID, &resp.Status,
		&personalInfo, &answers, &tasks,
		&resp.CurrentTaskIndex, &resp.TotalTasksAssigned, &resp.CompletedTasksCount,
		&resp.SessionStartTime, &sessionEnd, &resp.LastActivity,
		&abandonmentReason, &resp.IPAddress, &resp.UserAgent, &resp.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if personalInfo.Valid && personalInfo.String != "" {
		resp.PersonalInfo = &models.PersonalInfo{}
		if err := unmarshalDoc(personalInfo.String, resp.PersonalInfo); err != nil {
			return nil, err
		}
	}
	if err := unmarshalDoc(answers, &resp.ClassificationAnswers); err != nil {
		return nil, err
	}
	if err := unmarshalDoc(tasks, &resp.CompletedTasks); err != nil {
		return nil, err
	}
	if sessionEnd.Valid {
		t := sessionEnd.Time
		resp.SessionEndTime = &t
	}
	resp.AbandonmentReason = nullString(abandonmentReason)
	return &resp, nil
}

func (r *Repository) UpdateResponse(resp *models.StudyResponse) error {
	personalInfo, err := marshalNullableDoc(resp.PersonalInfo)
	if err != nil {
		return err
	}
	answers, err := marshalDoc(resp.ClassificationAnswers)
	if err != nil {
		return err
	}
	tasks, err := marshalDoc(resp.CompletedTasks)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(`
		UPDATE study_responses SET
			status = ?,
			personal_info = ?,
			classification_answers = ?,
			completed_tasks = ?,
			current_task_index = ?,
			completed_tasks_count = ?,
			session_end_time = ?,
			last_activity = ?,
			abandonment_reason = ?
		WHERE id = ?
	`,
		resp.Status, personalInfo, answers, tasks,
		resp.CurrentTaskIndex, resp.CompletedTasksCount,
		resp.SessionEndTime, resp.LastActivity, resp.AbandonmentReason,
		resp.ID,
	)
	return err
}

// GetResponsesByStudy lists all responses for a study, oldest first.
func (r *Repository) GetResponsesByStudy(studyID string) ([]models.StudyResponse, error) {
	rows, err := r.db.Query(`
		SELECT `+responseColumns+` FROM study_responses
		WHERE study_id = ?
		ORDER BY created_at ASC
	`, studyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	responses := make([]models.StudyResponse, 0)
	for rows.Next() {
		resp, err := scanResponse(rows.Scan)
		if err != nil {
			return nil, err
		}
		responses = append(responses, *resp)
	}

	return responses, rows.Err()
}

// GetTakenRespondentIDs returns respondent slots already held by
// in-progress or completed responses. Abandoned slots become available
// again.
func (r *Repository) GetTakenRespondentIDs(studyID string) ([]int, error) {
	rows, err := r.db.Query(`
		SELECT respondent_id FROM study_responses
		WHERE study_id = ? AND status != ?
	`, studyID, models.ResponseStatusAbandoned)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]int, 0)
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// GetStaleInProgressResponses finds in-progress responses whose last
// activity predates the cutoff. Used by the sweeper.
func (r *Repository) GetStaleInProgressResponses(cutoff time.Time, limit int) ([]models.StudyResponse, error) {
	rows, err := r.db.Query(`
		SELECT `+responseColumns+` FROM study_responses
		WHERE status = ? AND last_activity < ?
		ORDER BY last_activity ASC
		LIMIT ?
	`, models.ResponseStatusInProgress, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	responses := make([]models.StudyResponse, 0)
	for rows.Next() {
		resp, err := scanResponse(rows.Scan)
		if err != nil {
			return nil, err
		}
		responses = append(responses, *resp)
	}

	return responses, rows.Err()
}

// marshalNullableDoc serializes an optional sub-record; nil pointers
// become SQL NULL.
func marshalNullableDoc(v *models.PersonalInfo) (any, error) {
	if v == nil {
		return nil, nil
	}
	return marshalDoc(v)
}
