package services

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"iped-studio/iped"
	"iped-studio/models"
	"iped-studio/validator"
)

// DraftService drives the study creation wizard: step gating, per-step
// validation, matrix generation and the final launch.
type DraftService struct {
	drafts   DraftRepository
	studies  StudyRepository
	validate *validator.Validator
}

func NewDraftService(drafts DraftRepository, studies StudyRepository, v *validator.Validator) *DraftService {
	return &DraftService{
		drafts:   drafts,
		studies:  studies,
		validate: v,
	}
}

// GetOrCreateDraft returns the researcher's active draft, creating one
// at step 1a when none exists.
func (ds *DraftService) GetOrCreateDraft(userID string) (*models.StudyDraft, error) {
	draft, err := ds.drafts.GetActiveDraft(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load draft: %w", err)
	}
	if draft != nil {
		return draft, nil
	}

	draft = &models.StudyDraft{
		ID:          uuid.New().String(),
		UserID:      userID,
		CurrentStep: models.WizardSteps[0],
		Steps:       make(map[string]json.RawMessage),
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := ds.drafts.CreateDraft(draft); err != nil {
		return nil, fmt.Errorf("failed to create draft: %w", err)
	}
	return draft, nil
}

// GetStep returns the saved payload for a wizard step, gated on all
// earlier steps being complete. A nil payload means the step has not
// been filled in yet.
func (ds *DraftService) GetStep(userID, step string) (*models.StudyDraft, json.RawMessage, error) {
	if models.StepIndex(step) < 0 {
		return nil, nil, ErrUnknownStep
	}

	draft, err := ds.GetOrCreateDraft(userID)
	if err != nil {
		return nil, nil, err
	}
	if !draft.CanAccessStep(step) {
		return draft, nil, ErrStepLocked
	}
	return draft, draft.StepData(step), nil
}

// SaveStep validates and stores a payload for steps 1a through 2c and
// advances the draft's current step. Steps 3a and 3b have dedicated
// operations (GenerateMatrix, Launch).
func (ds *DraftService) SaveStep(userID, step string, payload []byte) (*models.StudyDraft, string, error) {
	idx := models.StepIndex(step)
	if idx < 0 || step == "3a" || step == "3b" {
		return nil, "", ErrUnknownStep
	}

	draft, err := ds.GetOrCreateDraft(userID)
	if err != nil {
		return nil, "", err
	}
	if !draft.CanProceedToStep(step) {
		return draft, "", ErrStepLocked
	}

	normalized, err := ds.normalizeStep(draft, step, payload)
	if err != nil {
		return draft, "", err
	}

	draft.SetStepData(step, normalized)
	nextStep := models.WizardSteps[idx+1]
	draft.CurrentStep = nextStep
	if err := ds.drafts.UpdateDraft(draft); err != nil {
		return nil, "", fmt.Errorf("failed to save draft: %w", err)
	}
	return draft, nextStep, nil
}

// normalizeStep decodes, validates and canonicalizes one step payload.
func (ds *DraftService) normalizeStep(draft *models.StudyDraft, step string, payload []byte) (json.RawMessage, error) {
	switch step {
	case "1a":
		var data models.Step1aBasicDetails
		return ds.decodeAndValidate(payload, &data)

	case "1b":
		var data models.Step1bStudyType
		return ds.decodeAndValidate(payload, &data)

	case "1c":
		var data models.Step1cRatingScale
		return ds.decodeAndValidate(payload, &data)

	case "2a":
		var data models.Step2aElements
		if err := json.Unmarshal(payload, &data); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidStepPayload, err)
		}

		var step1b models.Step1bStudyType
		if _, err := draft.DecodeStep("1b", &step1b); err != nil {
			return nil, fmt.Errorf("failed to decode step 1b: %w", err)
		}
		data.StudyType = step1b.StudyType
		if data.NumElements == 0 {
			data.NumElements = len(data.Elements)
		}
		if data.NumElements != len(data.Elements) {
			return nil, fmt.Errorf("%w: expected %d elements, got %d",
				ErrInvalidStepPayload, data.NumElements, len(data.Elements))
		}
		for i := range data.Elements {
			data.Elements[i].ElementID = fmt.Sprintf("E%d", i+1)
			data.Elements[i].ElementType = step1b.StudyType
		}
		if err := ds.validate.Validate(data); err != nil {
			return nil, err
		}
		return json.Marshal(data)

	case "2b":
		var data models.Step2bQuestions
		if err := json.Unmarshal(payload, &data); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidStepPayload, err)
		}
		for i := range data.Questions {
			data.Questions[i].QuestionID = fmt.Sprintf("Q%d", i+1)
			data.Questions[i].Order = i + 1
		}
		if err := ds.validate.Validate(data); err != nil {
			return nil, err
		}
		for _, q := range data.Questions {
			if q.QuestionType != "text" && len(q.AnswerOptions) == 0 {
				return nil, fmt.Errorf("%w: question %s needs answer options",
					ErrInvalidStepPayload, q.QuestionID)
			}
		}
		return json.Marshal(data)

	case "2c":
		var data models.Step2cParameters
		if err := json.Unmarshal(payload, &data); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidStepPayload, err)
		}

		var step2a models.Step2aElements
		if _, err := draft.DecodeStep("2a", &step2a); err != nil {
			return nil, fmt.Errorf("failed to decode step 2a: %w", err)
		}
		if data.NumElements == 0 {
			data.NumElements = len(step2a.Elements)
		}
		if data.NumElements != len(step2a.Elements) {
			return nil, fmt.Errorf("%w: num_elements (%d) does not match the %d elements from step 2a",
				ErrInvalidStepPayload, data.NumElements, len(step2a.Elements))
		}
		if data.MaxActiveElements > data.NumElements {
			return nil, fmt.Errorf("%w: max_active_elements (%d) exceeds element count (%d)",
				ErrInvalidStepPayload, data.MaxActiveElements, data.NumElements)
		}
		data.TotalTasks = data.TasksPerConsumer * data.NumberOfRespondents
		if err := ds.validate.Validate(data); err != nil {
			return nil, err
		}
		return json.Marshal(data)
	}

	return nil, ErrUnknownStep
}

func (ds *DraftService) decodeAndValidate(payload []byte, dst any) (json.RawMessage, error) {
	if err := json.Unmarshal(payload, dst); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStepPayload, err)
	}
	if err := ds.validate.Validate(dst); err != nil {
		return nil, err
	}
	return json.Marshal(dst)
}

// GenerateMatrix runs step 3a: build the task matrix from the stored
// IPED parameters and elements, save it on the draft and advance to
// the launch step. Each call regenerates from a fresh seed.
func (ds *DraftService) GenerateMatrix(userID string) (*models.StudyDraft, models.TaskMatrix, iped.Summary, error) {
	draft, err := ds.GetOrCreateDraft(userID)
	if err != nil {
		return nil, nil, iped.Summary{}, err
	}
	if !draft.CanProceedToStep("3a") {
		return draft, nil, iped.Summary{}, ErrStepLocked
	}

	var step2a models.Step2aElements
	if _, err := draft.DecodeStep("2a", &step2a); err != nil {
		return nil, nil, iped.Summary{}, fmt.Errorf("failed to decode step 2a: %w", err)
	}
	var params models.Step2cParameters
	if _, err := draft.DecodeStep("2c", &params); err != nil {
		return nil, nil, iped.Summary{}, fmt.Errorf("failed to decode step 2c: %w", err)
	}

	elementIDs := make([]string, len(step2a.Elements))
	for i, el := range step2a.Elements {
		elementIDs[i] = el.ElementID
	}

	matrix, err := iped.NewGenerator(time.Now().UnixNano()).Generate(models.IPEDParameters{
		NumElements:         params.NumElements,
		TasksPerConsumer:    params.TasksPerConsumer,
		NumberOfRespondents: params.NumberOfRespondents,
		MinActiveElements:   params.MinActiveElements,
		MaxActiveElements:   params.MaxActiveElements,
		TotalTasks:          params.TotalTasks,
	}, elementIDs)
	if err != nil {
		return nil, nil, iped.Summary{}, fmt.Errorf("%w: %v", ErrInvalidStepPayload, err)
	}

	stepData, err := json.Marshal(models.Step3aMatrix{
		TasksMatrix: matrix,
		GeneratedAt: time.Now(),
	})
	if err != nil {
		return nil, nil, iped.Summary{}, fmt.Errorf("failed to encode matrix: %w", err)
	}

	draft.SetStepData("3a", stepData)
	draft.CurrentStep = "3b"
	if err := ds.drafts.UpdateDraft(draft); err != nil {
		return nil, nil, iped.Summary{}, fmt.Errorf("failed to save draft: %w", err)
	}

	return draft, matrix, iped.Summarize(matrix), nil
}

// Launch runs step 3b: assemble the study from all saved steps, persist
// it as active and consume the draft.
func (ds *DraftService) Launch(userID, baseURL string) (*models.Study, error) {
	draft, err := ds.GetOrCreateDraft(userID)
	if err != nil {
		return nil, err
	}
	if !draft.CanProceedToStep("3b") {
		return nil, ErrStepLocked
	}

	var step1a models.Step1aBasicDetails
	var step1b models.Step1bStudyType
	var step1c models.Step1cRatingScale
	var step2a models.Step2aElements
	var step2b models.Step2bQuestions
	var step2c models.Step2cParameters
	var step3a models.Step3aMatrix

	required := []struct {
		step string
		dst  any
	}{
		{"1a", &step1a}, {"1b", &step1b}, {"1c", &step1c},
		{"2a", &step2a}, {"2c", &step2c}, {"3a", &step3a},
	}
	for _, r := range required {
		ok, err := draft.DecodeStep(r.step, r.dst)
		if err != nil {
			return nil, fmt.Errorf("failed to decode step %s: %w", r.step, err)
		}
		if !ok {
			return nil, ErrDraftIncomplete
		}
	}
	// Classification questions are optional.
	if _, err := draft.DecodeStep("2b", &step2b); err != nil {
		return nil, fmt.Errorf("failed to decode step 2b: %w", err)
	}

	elements := make([]models.StudyElement, len(step2a.Elements))
	for i, el := range step2a.Elements {
		elements[i] = models.StudyElement{
			ElementID:   el.ElementID,
			Name:        el.Name,
			Description: el.Description,
			ElementType: el.ElementType,
			Content:     el.Content,
			AltText:     el.AltText,
		}
	}

	questions := make([]models.ClassificationQuestion, len(step2b.Questions))
	for i, q := range step2b.Questions {
		questions[i] = models.ClassificationQuestion{
			QuestionID:    q.QuestionID,
			QuestionText:  q.QuestionText,
			QuestionType:  q.QuestionType,
			AnswerOptions: q.AnswerOptions,
			IsRequired:    q.IsRequired,
			Order:         q.Order,
		}
	}

	shareToken := strings.ReplaceAll(uuid.New().String(), "-", "")
	study := &models.Study{
		ID:              uuid.New().String(),
		CreatorID:       userID,
		Title:           step1a.Title,
		Background:      step1a.Background,
		Language:        step1a.Language,
		StudyType:       step1b.StudyType,
		MainQuestion:    step1b.MainQuestion,
		OrientationText: step1b.OrientationText,
		RatingScale: models.RatingScale{
			MinValue:    step1c.MinValue,
			MaxValue:    step1c.MaxValue,
			MinLabel:    step1c.MinLabel,
			MaxLabel:    step1c.MaxLabel,
			MiddleLabel: step1c.MiddleLabel,
		},
		Elements:                elements,
		ClassificationQuestions: questions,
		IPEDParameters: models.IPEDParameters{
			NumElements:         step2c.NumElements,
			TasksPerConsumer:    step2c.TasksPerConsumer,
			NumberOfRespondents: step2c.NumberOfRespondents,
			MinActiveElements:   step2c.MinActiveElements,
			MaxActiveElements:   step2c.MaxActiveElements,
			TotalTasks:          step2c.TotalTasks,
		},
		Tasks:      step3a.TasksMatrix,
		ShareToken: shareToken,
		ShareURL:   fmt.Sprintf("%s/s/%s", strings.TrimRight(baseURL, "/"), shareToken),
		Status:     models.StudyStatusActive,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}

	if err := ds.studies.CreateStudy(study); err != nil {
		return nil, fmt.Errorf("failed to create study: %w", err)
	}

	// Consume the draft. The sweeper picks up any leftovers if the
	// delete fails after the complete flag is set.
	draft.IsComplete = true
	if err := ds.drafts.UpdateDraft(draft); err != nil {
		return nil, fmt.Errorf("failed to finalize draft: %w", err)
	}
	if err := ds.drafts.DeleteDraft(draft.ID); err != nil {
		return nil, fmt.Errorf("failed to delete draft: %w", err)
	}

	return study, nil
}

// Reset discards the researcher's active draft so the wizard starts
// over.
func (ds *DraftService) Reset(userID string) error {
	draft, err := ds.drafts.GetActiveDraft(userID)
	if err != nil {
		return fmt.Errorf("failed to load draft: %w", err)
	}
	if draft == nil {
		return nil
	}
	return ds.drafts.DeleteDraft(draft.ID)
}

// Status summarizes draft progress for the wizard sidebar.
func (ds *DraftService) Status(userID string) (map[string]any, error) {
	draft, err := ds.drafts.GetActiveDraft(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load draft: %w", err)
	}
	if draft == nil {
		return map[string]any{"draft_exists": false}, nil
	}

	steps := make(map[string]bool, len(models.WizardSteps))
	for _, step := range models.WizardSteps {
		steps[step] = draft.HasStep(step)
	}
	return map[string]any{
		"draft_exists": true,
		"draft_id":     draft.ID,
		"current_step": draft.CurrentStep,
		"steps":        steps,
		"created_at":   draft.CreatedAt,
		"updated_at":   draft.UpdatedAt,
	}, nil
}
