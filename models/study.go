package models

import (
	"strconv"
	"time"
)

// Study status values. A study is created active and can be paused or
// completed from the dashboard.
const (
	StudyStatusDraft     = "draft"
	StudyStatusActive    = "active"
	StudyStatusPaused    = "paused"
	StudyStatusCompleted = "completed"
)

// Study type values determine how elements are authored and rendered.
const (
	StudyTypeImage = "image"
	StudyTypeText  = "text"
)

type RatingScale struct {
	MinValue    int    `json:"min_value"`
	MaxValue    int    `json:"max_value"`
	MinLabel    string `json:"min_label"`
	MaxLabel    string `json:"max_label"`
	MiddleLabel string `json:"middle_label"`
}

type StudyElement struct {
	ElementID   string `json:"element_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ElementType string `json:"element_type"`
	Content     string `json:"content"`
	AltText     string `json:"alt_text"`
}

type ClassificationQuestion struct {
	QuestionID    string   `json:"question_id"`
	QuestionText  string   `json:"question_text"`
	QuestionType  string   `json:"question_type"`
	AnswerOptions []string `json:"answer_options"`
	IsRequired    bool     `json:"is_required"`
	Order         int      `json:"order"`
}

type IPEDParameters struct {
	NumElements         int `json:"num_elements"`
	TasksPerConsumer    int `json:"tasks_per_consumer"`
	NumberOfRespondents int `json:"number_of_respondents"`
	MinActiveElements   int `json:"min_active_elements"`
	MaxActiveElements   int `json:"max_active_elements"`
	TotalTasks          int `json:"total_tasks"`
}

// TaskCell is one generated task: which elements are shown (1) or
// hidden (0), keyed by element ID.
type TaskCell struct {
	TaskID        string         `json:"task_id"`
	ElementsShown map[string]int `json:"elements_shown"`
}

// TaskMatrix maps respondent index (as a decimal string) to that
// respondent's ordered task list.
type TaskMatrix map[string][]TaskCell

type Study struct {
	ID                      string                   `json:"id"`
	CreatorID               string                   `json:"creator_id"`
	Title                   string                   `json:"title"`
	Background              string                   `json:"background"`
	Language                string                   `json:"language"`
	StudyType               string                   `json:"study_type"`
	MainQuestion            string                   `json:"main_question"`
	OrientationText         string                   `json:"orientation_text"`
	RatingScale             RatingScale              `json:"rating_scale"`
	Elements                []StudyElement           `json:"elements"`
	ClassificationQuestions []ClassificationQuestion `json:"classification_questions"`
	IPEDParameters          IPEDParameters           `json:"iped_parameters"`
	Tasks                   TaskMatrix               `json:"tasks,omitempty"`
	ShareToken              string                   `json:"share_token"`
	ShareURL                string                   `json:"share_url"`
	Status                  string                   `json:"status"`
	TotalResponses          int                      `json:"total_responses"`
	CompletedResponses      int                      `json:"completed_responses"`
	AbandonedResponses      int                      `json:"abandoned_responses"`
	CreatedAt               time.Time                `json:"created_at"`
	UpdatedAt               time.Time                `json:"updated_at"`
}

// RespondentTasks returns the ordered task list assigned to a
// respondent slot, or nil if the slot has no tasks.
func (s *Study) RespondentTasks(respondentID int) []TaskCell {
	if s.Tasks == nil {
		return nil
	}
	return s.Tasks[RespondentKey(respondentID)]
}

// RespondentKey converts a respondent slot number to the string key
// used by TaskMatrix.
func RespondentKey(respondentID int) string {
	return strconv.Itoa(respondentID)
}

// ElementByID looks up a study element, returning nil when absent.
func (s *Study) ElementByID(elementID string) *StudyElement {
	for i := range s.Elements {
		if s.Elements[i].ElementID == elementID {
			return &s.Elements[i]
		}
	}
	return nil
}

type UpdateStudyStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active paused completed"`
}
