package services

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"iped-studio/models"
)

// StudyService covers the researcher dashboard: listing, status
// changes, deletion and data export.
type StudyService struct {
	studies   StudyRepository
	responses ResponseRepository
}

func NewStudyService(studies StudyRepository, responses ResponseRepository) *StudyService {
	return &StudyService{
		studies:   studies,
		responses: responses,
	}
}

// ListStudies returns the creator's studies, newest first. Task
// matrices are not loaded for listings.
func (ss *StudyService) ListStudies(creatorID string) ([]models.Study, error) {
	studies, err := ss.studies.GetStudiesByCreator(creatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list studies: %w", err)
	}
	return studies, nil
}

// GetStudy loads a study and enforces ownership. Studies owned by
// other researchers are reported as not found.
func (ss *StudyService) GetStudy(studyID, creatorID string) (*models.Study, error) {
	study, err := ss.studies.GetStudyByID(studyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load study: %w", err)
	}
	if study == nil || study.CreatorID != creatorID {
		return nil, ErrStudyNotFound
	}
	return study, nil
}

// UpdateStatus moves a study between active, paused and completed.
func (ss *StudyService) UpdateStatus(studyID, creatorID, status string) (*models.Study, error) {
	study, err := ss.GetStudy(studyID, creatorID)
	if err != nil {
		return nil, err
	}

	if err := ss.studies.UpdateStudyStatus(study.ID, status); err != nil {
		return nil, fmt.Errorf("failed to update study status: %w", err)
	}
	study.Status = status
	return study, nil
}

// Delete removes a study. Responses are removed by the database
// cascade.
func (ss *StudyService) Delete(studyID, creatorID string) error {
	study, err := ss.GetStudy(studyID, creatorID)
	if err != nil {
		return err
	}
	if err := ss.studies.DeleteStudy(study.ID); err != nil {
		return fmt.Errorf("failed to delete study: %w", err)
	}
	return nil
}

// Responses returns every respondent record for a study.
func (ss *StudyService) Responses(studyID, creatorID string) (*models.Study, []models.StudyResponse, error) {
	study, err := ss.GetStudy(studyID, creatorID)
	if err != nil {
		return nil, nil, err
	}

	responses, err := ss.responses.GetResponsesByStudy(study.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load responses: %w", err)
	}
	return study, responses, nil
}

// WriteCSV streams one row per completed task across all respondents,
// with a 0/1 column per study element.
func (ss *StudyService) WriteCSV(w io.Writer, studyID, creatorID string) error {
	study, responses, err := ss.Responses(studyID, creatorID)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)

	header := []string{
		"respondent_id", "session_id", "status",
		"age", "gender", "education",
		"task_id", "task_index", "rating",
		"task_duration_seconds", "task_start_time", "task_completion_time",
	}
	for _, el := range study.Elements {
		header = append(header, el.ElementID)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, resp := range responses {
		var age, gender, education string
		if resp.PersonalInfo != nil {
			age = resp.PersonalInfo.Age
			gender = resp.PersonalInfo.Gender
			education = resp.PersonalInfo.Education
		}

		for _, task := range resp.CompletedTasks {
			row := []string{
				strconv.Itoa(resp.RespondentID),
				resp.SessionID,
				resp.Status,
				age, gender, education,
				task.TaskID,
				strconv.Itoa(task.TaskIndex),
				strconv.Itoa(task.RatingGiven),
				strconv.FormatFloat(task.TaskDurationSeconds, 'f', 3, 64),
				task.TaskStartTime.UTC().Format("2006-01-02T15:04:05Z"),
				task.TaskCompletionTime.UTC().Format("2006-01-02T15:04:05Z"),
			}
			for _, el := range study.Elements {
				row = append(row, strconv.Itoa(task.ElementsShownInTask[el.ElementID]))
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("failed to write csv row: %w", err)
			}
		}
	}

	cw.Flush()
	return cw.Error()
}
