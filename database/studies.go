package database

import (
	"database/sql"
	"time"

	"iped-studio/models"
)

// ==================== STUDY OPERATIONS ====================

const studyColumns = `id, creator_id, title, background, language, study_type,
	main_question, orientation_text, rating_scale, elements,
	classification_questions, iped_parameters, tasks, share_token, share_url,
	status, total_responses, completed_responses, abandoned_responses,
	created_at, updated_at`

func (r *Repository) CreateStudy(study *models.Study) error {
	ratingScale, err := marshalDoc(study.RatingScale)
	if err != nil {
		return err
	}
	elements, err := marshalDoc(study.Elements)
	if err != nil {
		return err
	}
	questions, err := marshalDoc(study.ClassificationQuestions)
	if err != nil {
		return err
	}
	params, err := marshalDoc(study.IPEDParameters)
	if err != nil {
		return err
	}
	tasks, err := marshalDoc(study.Tasks)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(`
		INSERT INTO studies (`+studyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		study.ID, study.CreatorID, study.Title, study.Background, study.Language,
		study.StudyType, study.MainQuestion, study.OrientationText,
		ratingScale, elements, questions, params, tasks,
		study.ShareToken, study.ShareURL, study.Status,
		study.TotalResponses, study.CompletedResponses, study.AbandonedResponses,
		study.CreatedAt, study.UpdatedAt,
	)
	return err
}

func (r *Repository) GetStudyByID(studyID string) (*models.Study, error) {
	row := r.db.QueryRow(`SELECT `+studyColumns+` FROM studies WHERE id = ?`, studyID)
	return scanStudy(row)
}

func (r *Repository) GetStudyByShareToken(shareToken string) (*models.Study, error) {
	row := r.db.QueryRow(`SELECT `+studyColumns+` FROM studies WHERE share_token = ?`, shareToken)
	return scanStudy(row)
}

func scanStudy(row *sql.Row) (*models.Study, error) {
	var study models.Study
	var ratingScale, elements, questions, params, tasks string
	var shareURL sql.NullString

	err := row.Scan(
		&study.ID, &study.CreatorID, &study.Title, &study.Background, &study.Language,
		&study.StudyType, &study.MainQuestion, &study.OrientationText,
		&ratingScale, &elements, &questions, &params, &tasks,
		&study.ShareToken, &shareURL, &study.Status,
		&study.TotalResponses, &study.CompletedResponses, &study.AbandonedResponses,
		&study.CreatedAt, &study.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	study.ShareURL = nullString(shareURL)
	if err := unmarshalDoc(ratingScale, &study.RatingScale); err != nil {
		return nil, err
	}
	if err := unmarshalDoc(elements, &study.Elements); err != nil {
		return nil, err
	}
	if err := unmarshalDoc(questions, &study.ClassificationQuestions); err != nil {
		return nil, err
	}
	if err := unmarshalDoc(params, &study.IPEDParameters); err != nil {
		return nil, err
	}
	if err := unmarshalDoc(tasks, &study.Tasks); err != nil {
		return nil, err
	}
	return &study, nil
}

// GetStudiesByCreator lists a researcher's studies, newest first. Task
// matrices are omitted to keep dashboard payloads small.
func (r *Repository) GetStudiesByCreator(creatorID string) ([]models.Study, error) {
	rows, err := r.db.Query(`
		SELECT id, creator_id, title, language, study_type, main_question,
			   share_token, share_url, status,
			   total_responses, completed_responses, abandoned_responses,
			   created_at, updated_at
		FROM studies
		WHERE creator_id = ?
		ORDER BY created_at DESC
	`, creatorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	studies := make([]models.Study, 0)
	for rows.Next() {
		var study models.Study
		var shareURL sql.NullString
		if err := rows.Scan(
			&study.ID, &study.CreatorID, &study.Title, &study.Language,
			&study.StudyType, &study.MainQuestion,
			&study.ShareToken, &shareURL, &study.Status,
			&study.TotalResponses, &study.CompletedResponses, &study.AbandonedResponses,
			&study.CreatedAt, &study.UpdatedAt,
		); err != nil {
			return nil, err
		}
		study.ShareURL = nullString(shareURL)
		studies = append(studies, study)
	}

	return studies, rows.Err()
}

func (r *Repository) UpdateStudyStatus(studyID, status string) error {
	_, err := r.db.Exec(`
		UPDATE studies SET status = ?, updated_at = ? WHERE id = ?
	`, status, time.Now(), studyID)
	return err
}

func (r *Repository) DeleteStudy(studyID string) error {
	_, err := r.db.Exec(`DELETE FROM studies WHERE id = ?`, studyID)
	return err
}

// Response counters are bumped with targeted updates so concurrent
// respondents do not clobber each other.

func (r *Repository) IncrementTotalResponses(studyID string) error {
	_, err := r.db.Exec(`
		UPDATE studies SET total_responses = total_responses + 1, updated_at = ? WHERE id = ?
	`, time.Now(), studyID)
	return err
}

func (r *Repository) IncrementCompletedResponses(studyID string) error {
	_, err := r.db.Exec(`
		UPDATE studies SET completed_responses = completed_responses + 1, updated_at = ? WHERE id = ?
	`, time.Now(), studyID)
	return err
}

func (r *Repository) IncrementAbandonedResponses(studyID string) error {
	_, err := r.db.Exec(`
		UPDATE studies SET abandoned_responses = abandoned_responses + 1, updated_at = ? WHERE id = ?
	`, time.Now(), studyID)
	return err
}
