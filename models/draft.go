package models

import (
	"encoding/json"
	"time"
)

// WizardSteps is the fixed step order of the study creation wizard.
var WizardSteps = []string{"1a", "1b", "1c", "2a", "2b", "2c", "3a", "3b"}

// StudyDraft holds in-progress wizard state for one researcher. Each
// completed step keeps its submitted payload so earlier steps can be
// revisited and pre-populated.
type StudyDraft struct {
	ID          string                     `json:"id"`
	UserID      string                     `json:"user_id"`
	CurrentStep string                     `json:"current_step"`
	IsComplete  bool                       `json:"is_complete"`
	Steps       map[string]json.RawMessage `json:"steps"`
	CreatedAt   time.Time                  `json:"created_at"`
	UpdatedAt   time.Time                  `json:"updated_at"`
}

// StepIndex returns the position of a step in the wizard order, or -1
// for an unknown step.
func StepIndex(step string) int {
	for i, s := range WizardSteps {
		if s == step {
			return i
		}
	}
	return -1
}

// HasStep reports whether a step has saved data.
func (d *StudyDraft) HasStep(step string) bool {
	if d.Steps == nil {
		return false
	}
	data, ok := d.Steps[step]
	return ok && len(data) > 0
}

// CanAccessStep reports whether a step may be viewed: every earlier
// step must already be complete.
func (d *StudyDraft) CanAccessStep(step string) bool {
	idx := StepIndex(step)
	if idx < 0 {
		return false
	}
	for _, s := range WizardSteps[:idx] {
		if !d.HasStep(s) {
			return false
		}
	}
	return true
}

// CanProceedToStep reports whether a step may be submitted. Submission
// has the same prerequisite as viewing: no earlier step may be skipped.
func (d *StudyDraft) CanProceedToStep(step string) bool {
	return d.CanAccessStep(step)
}

// SetStepData stores a step payload and bumps the updated timestamp.
func (d *StudyDraft) SetStepData(step string, data json.RawMessage) {
	if d.Steps == nil {
		d.Steps = make(map[string]json.RawMessage)
	}
	d.Steps[step] = data
	d.UpdatedAt = time.Now()
}

// StepData returns the raw payload for a step, or nil when unset.
func (d *StudyDraft) StepData(step string) json.RawMessage {
	if d.Steps == nil {
		return nil
	}
	return d.Steps[step]
}

// DecodeStep unmarshals a step payload into the given destination.
// Returns false when the step has no data.
func (d *StudyDraft) DecodeStep(step string, dst any) (bool, error) {
	data := d.StepData(step)
	if len(data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// Wizard step payloads. Validation tags follow the rules the original
// wizard forms enforce.

type Step1aBasicDetails struct {
	Title         string `json:"title" validate:"required,min=3,max=200"`
	Background    string `json:"background" validate:"max=5000"`
	Language      string `json:"language" validate:"required,oneof=en de fr es it nl"`
	TermsAccepted bool   `json:"terms_accepted" validate:"required"`
}

type Step1bStudyType struct {
	StudyType       string `json:"study_type" validate:"required,studytype"`
	MainQuestion    string `json:"main_question" validate:"required,min=3,max=500"`
	OrientationText string `json:"orientation_text" validate:"required,max=5000"`
}

type Step1cRatingScale struct {
	MinValue    int    `json:"min_value" validate:"gte=0,lte=10"`
	MaxValue    int    `json:"max_value" validate:"gte=1,lte=10,gtfield=MinValue"`
	MinLabel    string `json:"min_label" validate:"required,max=100"`
	MaxLabel    string `json:"max_label" validate:"required,max=100"`
	MiddleLabel string `json:"middle_label" validate:"max=100"`
}

type DraftElement struct {
	ElementID   string `json:"element_id"`
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=1000"`
	ElementType string `json:"element_type" validate:"required,studytype"`
	Content     string `json:"content" validate:"required"`
	AltText     string `json:"alt_text" validate:"max=500"`
}

type Step2aElements struct {
	StudyType   string         `json:"study_type" validate:"required,studytype"`
	NumElements int            `json:"num_elements" validate:"required,gte=2,lte=64"`
	Elements    []DraftElement `json:"elements" validate:"required,min=2,dive"`
}

type DraftQuestion struct {
	QuestionID    string   `json:"question_id"`
	QuestionText  string   `json:"question_text" validate:"required,max=500"`
	QuestionType  string   `json:"question_type" validate:"required,questiontype"`
	AnswerOptions []string `json:"answer_options"`
	IsRequired    bool     `json:"is_required"`
	Order         int      `json:"order"`
}

type Step2bQuestions struct {
	Questions []DraftQuestion `json:"questions" validate:"dive"`
}

type Step2cParameters struct {
	NumElements         int `json:"num_elements" validate:"required,gte=2,lte=64"`
	TasksPerConsumer    int `json:"tasks_per_consumer" validate:"required,gte=1,lte=200"`
	NumberOfRespondents int `json:"number_of_respondents" validate:"required,gte=1,lte=10000"`
	MinActiveElements   int `json:"min_active_elements" validate:"required,gte=1"`
	MaxActiveElements   int `json:"max_active_elements" validate:"required,gtefield=MinActiveElements"`
	TotalTasks          int `json:"total_tasks"`
}

type Step3aMatrix struct {
	TasksMatrix TaskMatrix `json:"tasks_matrix"`
	GeneratedAt time.Time  `json:"generated_at"`
	Regenerate  bool       `json:"regenerate_matrix"`
}

type Step3bLaunch struct {
	LaunchStudy bool `json:"launch_study"`
}
