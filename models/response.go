package models

import "time"

// Response status values.
const (
	ResponseStatusInProgress = "in_progress"
	ResponseStatusCompleted  = "completed"
	ResponseStatusAbandoned  = "abandoned"
)

type PersonalInfo struct {
	Age       string `json:"age"`
	Gender    string `json:"gender"`
	Education string `json:"education"`
}

type ClassificationAnswer struct {
	QuestionID       string    `json:"question_id"`
	QuestionText     string    `json:"question_text"`
	QuestionType     string    `json:"question_type"`
	Answer           string    `json:"answer"`
	AnswerTimestamp  time.Time `json:"answer_timestamp"`
	TimeSpentSeconds float64   `json:"time_spent_seconds"`
}

type ElementInteraction struct {
	ElementID       string     `json:"element_id"`
	ViewTimeSeconds float64    `json:"view_time_seconds"`
	HoverCount      int        `json:"hover_count"`
	ClickCount      int        `json:"click_count"`
	FirstViewTime   *time.Time `json:"first_view_time,omitempty"`
	LastViewTime    *time.Time `json:"last_view_time,omitempty"`
}

type CompletedTask struct {
	TaskID              string               `json:"task_id"`
	RespondentID        int                  `json:"respondent_id"`
	TaskIndex           int                  `json:"task_index"`
	ElementsShownInTask map[string]int       `json:"elements_shown_in_task"`
	TaskStartTime       time.Time            `json:"task_start_time"`
	TaskCompletionTime  time.Time            `json:"task_completion_time"`
	TaskDurationSeconds float64              `json:"task_duration_seconds"`
	RatingGiven         int                  `json:"rating_given"`
	RatingTimestamp     time.Time            `json:"rating_timestamp"`
	ElementInteractions []ElementInteraction `json:"element_interactions"`
}

// StudyResponse is one anonymous respondent's progress through a study.
type StudyResponse struct {
	ID                    string                 `json:"id"`
	StudyID               string                 `json:"study_id"`
	SessionID             string                 `json:"session_id"`
	RespondentID          int                    `json:"respondent_id"`
	Status                string                 `json:"status"`
	PersonalInfo          *PersonalInfo          `json:"personal_info,omitempty"`
	ClassificationAnswers []ClassificationAnswer `json:"classification_answers"`
	CompletedTasks        []CompletedTask        `json:"completed_tasks"`
	CurrentTaskIndex      int                    `json:"current_task_index"`
	TotalTasksAssigned    int                    `json:"total_tasks_assigned"`
	CompletedTasksCount   int                    `json:"completed_tasks_count"`
	SessionStartTime      time.Time              `json:"session_start_time"`
	SessionEndTime        *time.Time             `json:"session_end_time,omitempty"`
	LastActivity          time.Time              `json:"last_activity"`
	AbandonmentReason     string                 `json:"abandonment_reason,omitempty"`
	IPAddress             string                 `json:"ip_address"`
	UserAgent             string                 `json:"user_agent"`
	CreatedAt             time.Time              `json:"created_at"`
}

// MarkCompleted transitions the response to completed and stamps the
// session end.
func (r *StudyResponse) MarkCompleted(now time.Time) {
	r.Status = ResponseStatusCompleted
	r.SessionEndTime = &now
	r.LastActivity = now
}

// MarkAbandoned transitions the response to abandoned with a reason.
func (r *StudyResponse) MarkAbandoned(reason string, now time.Time) {
	r.Status = ResponseStatusAbandoned
	r.AbandonmentReason = reason
	r.SessionEndTime = &now
	r.LastActivity = now
}

// TaskSession tracks fine-grained page and element events for a single
// task within a respondent session.
type TaskSession struct {
	ID                  string               `json:"id"`
	SessionID           string               `json:"session_id"`
	TaskID              string               `json:"task_id"`
	StudyResponseID     string               `json:"study_response_id"`
	PageTransitions     []PageTransition     `json:"page_transitions"`
	ElementInteractions []InteractionEvent   `json:"element_interactions"`
	Completed           bool                 `json:"completed"`
	CreatedAt           time.Time            `json:"created_at"`
	CompletedAt         *time.Time           `json:"completed_at,omitempty"`
}

type PageTransition struct {
	Page      string    `json:"page"`
	Timestamp time.Time `json:"timestamp"`
}

type InteractionEvent struct {
	ElementID string    `json:"element_id"`
	Type      string    `json:"type"`
	Duration  float64   `json:"duration"`
	Timestamp time.Time `json:"timestamp"`
}

// AddPageTransition appends a page event with the current time.
func (t *TaskSession) AddPageTransition(page string, now time.Time) {
	t.PageTransitions = append(t.PageTransitions, PageTransition{Page: page, Timestamp: now})
}

// AddElementInteraction appends an element event with the current time.
func (t *TaskSession) AddElementInteraction(elementID, eventType string, duration float64, now time.Time) {
	t.ElementInteractions = append(t.ElementInteractions, InteractionEvent{
		ElementID: elementID,
		Type:      eventType,
		Duration:  duration,
		Timestamp: now,
	})
}

// Participation request bodies.

type SubmitPersonalInfoRequest struct {
	Age       string `json:"age" validate:"max=20"`
	Gender    string `json:"gender" validate:"max=50"`
	Education string `json:"education" validate:"max=100"`
}

type ClassificationAnswerRequest struct {
	QuestionID   string  `json:"question_id" validate:"required"`
	QuestionText string  `json:"question_text"`
	QuestionType string  `json:"question_type"`
	Answer       string  `json:"answer" validate:"required"`
	TimeSpent    float64 `json:"time_spent"`
}

type SubmitClassificationRequest struct {
	Answers []ClassificationAnswerRequest `json:"answers" validate:"dive"`
}

type ElementInteractionRequest struct {
	ElementID     string  `json:"element_id" validate:"required"`
	ViewTime      float64 `json:"view_time"`
	HoverCount    int     `json:"hover_count"`
	ClickCount    int     `json:"click_count"`
	FirstViewTime string  `json:"first_view_time"`
	LastViewTime  string  `json:"last_view_time"`
}

// Rating carries no required tag: 0 is a legal value on zero-anchored
// scales, so range checking is left to the study's own scale.
type CompleteTaskRequest struct {
	Rating              int                         `json:"rating"`
	TaskStartTime       string                      `json:"task_start_time" validate:"required"`
	ElementInteractions []ElementInteractionRequest `json:"element_interactions" validate:"dive"`
}

type AbandonRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type TrackInteractionRequest struct {
	Type      string  `json:"type" validate:"required,oneof=view hover click"`
	ElementID string  `json:"element_id" validate:"required"`
	Duration  float64 `json:"duration"`
}
