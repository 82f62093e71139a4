package services

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"iped-studio/models"
	"iped-studio/validator"
)

func newDraftService(drafts *MockDraftRepo, studies *MockStudyRepo) *DraftService {
	return NewDraftService(drafts, studies, validator.New())
}

// draftWithSteps builds a draft with the given steps already filled in
// with minimal valid payloads.
func draftWithSteps(t *testing.T, userID string, steps ...string) *models.StudyDraft {
	t.Helper()

	draft := &models.StudyDraft{
		ID:     "d1",
		UserID: userID,
		Steps:  make(map[string]json.RawMessage),
	}

	elements := make([]models.DraftElement, 4)
	for i := range elements {
		elements[i] = models.DraftElement{
			ElementID:   fmt.Sprintf("E%d", i+1),
			Name:        fmt.Sprintf("Element %d", i+1),
			ElementType: "text",
			Content:     fmt.Sprintf("Statement %d", i+1),
		}
	}

	payloads := map[string]any{
		"1a": models.Step1aBasicDetails{
			Title: "Packaging study", Language: "en", TermsAccepted: true,
		},
		"1b": models.Step1bStudyType{
			StudyType: "text", MainQuestion: "How appealing is this?",
			OrientationText: "Rate each combination.",
		},
		"1c": models.Step1cRatingScale{
			MinValue: 1, MaxValue: 5, MinLabel: "Not at all", MaxLabel: "Very",
		},
		"2a": models.Step2aElements{
			StudyType: "text", NumElements: 4, Elements: elements,
		},
		"2b": models.Step2bQuestions{},
		"2c": models.Step2cParameters{
			NumElements: 4, TasksPerConsumer: 6, NumberOfRespondents: 5,
			MinActiveElements: 2, MaxActiveElements: 3, TotalTasks: 30,
		},
	}

	for _, step := range steps {
		if step == "3a" {
			matrix := models.TaskMatrix{}
			for r := 0; r < 5; r++ {
				var tasks []models.TaskCell
				for tk := 0; tk < 6; tk++ {
					tasks = append(tasks, models.TaskCell{
						TaskID: fmt.Sprintf("r%d_t%d", r, tk),
						ElementsShown: map[string]int{
							"E1": 1, "E2": 1, "E3": 0, "E4": 0,
						},
					})
				}
				matrix[models.RespondentKey(r)] = tasks
			}
			data, err := json.Marshal(models.Step3aMatrix{TasksMatrix: matrix})
			require.NoError(t, err)
			draft.Steps["3a"] = data
			continue
		}

		data, err := json.Marshal(payloads[step])
		require.NoError(t, err)
		draft.Steps[step] = data
	}
	return draft
}

func TestDraftService_GetOrCreateDraft(t *testing.T) {
	t.Run("creates draft at first step when none exists", func(t *testing.T) {
		drafts := new(MockDraftRepo)
		drafts.On("GetActiveDraft", "u1").Return(nil, nil)
		drafts.On("CreateDraft", mock.AnythingOfType("*models.StudyDraft")).Return(nil)

		svc := newDraftService(drafts, new(MockStudyRepo))
		draft, err := svc.GetOrCreateDraft("u1")

		require.NoError(t, err)
		assert.Equal(t, "1a", draft.CurrentStep)
		drafts.AssertExpectations(t)
	})

	t.Run("returns existing draft", func(t *testing.T) {
		existing := draftWithSteps(t, "u1", "1a")
		drafts := new(MockDraftRepo)
		drafts.On("GetActiveDraft", "u1").Return(existing, nil)

		svc := newDraftService(drafts, new(MockStudyRepo))
		draft, err := svc.GetOrCreateDraft("u1")

		require.NoError(t, err)
		assert.Same(t, existing, draft)
		drafts.AssertNotCalled(t, "CreateDraft")
	})
}

func TestDraftService_SaveStep(t *testing.T) {
	t.Run("saves valid step and advances", func(t *testing.T) {
		draft := draftWithSteps(t, "u1")
		drafts := new(MockDraftRepo)
		drafts.On("GetActiveDraft", "u1").Return(draft, nil)
		drafts.On("UpdateDraft", draft).Return(nil)

		svc := newDraftService(drafts, new(MockStudyRepo))
		payload := []byte(`{"title":"Packaging study","language":"en","terms_accepted":true}`)
		saved, nextStep, err := svc.SaveStep("u1", "1a", payload)

		require.NoError(t, err)
		assert.Equal(t, "1b", nextStep)
		assert.Equal(t, "1b", saved.CurrentStep)
		assert.True(t, saved.HasStep("1a"))
	})

	t.Run("rejects skipping ahead", func(t *testing.T) {
		draft := draftWithSteps(t, "u1", "1a")
		drafts := new(MockDraftRepo)
		drafts.On("GetActiveDraft", "u1").Return(draft, nil)

		svc := newDraftService(drafts, new(MockStudyRepo))
		_, _, err := svc.SaveStep("u1", "2a", []byte(`{}`))

		assert.ErrorIs(t, err, ErrStepLocked)
		drafts.AssertNotCalled(t, "UpdateDraft")
	})

	t.Run("rejects invalid payload", func(t *testing.T) {
		draft := draftWithSteps(t, "u1")
		drafts := new(MockDraftRepo)
		drafts.On("GetActiveDraft", "u1").Return(draft, nil)

		svc := newDraftService(drafts, new(MockStudyRepo))
		_, _, err := svc.SaveStep("u1", "1a", []byte(`{"title":"x","language":"en"}`))

		var verrs validator.ValidationErrors
		assert.ErrorAs(t, err, &verrs)
	})

	t.Run("rejects unknown and reserved steps", func(t *testing.T) {
		svc := newDraftService(new(MockDraftRepo), new(MockStudyRepo))

		for _, step := range []string{"9z", "3a", "3b"} {
			_, _, err := svc.SaveStep("u1", step, []byte(`{}`))
			assert.ErrorIs(t, err, ErrUnknownStep, "step %s", step)
		}
	})

	t.Run("assigns element ids and forces study type on 2a", func(t *testing.T) {
		draft := draftWithSteps(t, "u1", "1a", "1b", "1c")
		drafts := new(MockDraftRepo)
		drafts.On("GetActiveDraft", "u1").Return(draft, nil)
		drafts.On("UpdateDraft", draft).Return(nil)

		svc := newDraftService(drafts, new(MockStudyRepo))
		payload := []byte(`{"num_elements":2,"elements":[
			{"name":"A","element_type":"image","content":"alpha"},
			{"name":"B","element_type":"image","content":"beta"}]}`)
		saved, _, err := svc.SaveStep("u1", "2a", payload)
		require.NoError(t, err)

		var data models.Step2aElements
		ok, err := saved.DecodeStep("2a", &data)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "E1", data.Elements[0].ElementID)
		assert.Equal(t, "E2", data.Elements[1].ElementID)
		// Element type follows the step 1b study type, not the payload.
		assert.Equal(t, "text", data.Elements[0].ElementType)
	})

	t.Run("rejects element count mismatch on 2a", func(t *testing.T) {
		draft := draftWithSteps(t, "u1", "1a", "1b", "1c")
		drafts := new(MockDraftRepo)
		drafts.On("GetActiveDraft", "u1").Return(draft, nil)

		svc := newDraftService(drafts, new(MockStudyRepo))
		payload := []byte(`{"num_elements":3,"elements":[
			{"name":"A","element_type":"text","content":"alpha"},
			{"name":"B","element_type":"text","content":"beta"}]}`)
		_, _, err := svc.SaveStep("u1", "2a", payload)

		assert.ErrorIs(t, err, ErrInvalidStepPayload)
	})

	t.Run("requires answer options for choice questions on 2b", func(t *testing.T) {
		draft := draftWithSteps(t, "u1", "1a", "1b", "1c", "2a")
		drafts := new(MockDraftRepo)
		drafts.On("GetActiveDraft", "u1").Return(draft, nil)

		svc := newDraftService(drafts, new(MockStudyRepo))
		payload := []byte(`{"questions":[
			{"question_text":"Age group?","question_type":"single_choice"}]}`)
		_, _, err := svc.SaveStep("u1", "2b", payload)

		assert.ErrorIs(t, err, ErrInvalidStepPayload)
	})

	t.Run("computes total tasks on 2c", func(t *testing.T) {
		draft := draftWithSteps(t, "u1", "1a", "1b", "1c", "2a", "2b")
		drafts := new(MockDraftRepo)
		drafts.On("GetActiveDraft", "u1").Return(draft, nil)
		drafts.On("UpdateDraft", draft).Return(nil)

		svc := newDraftService(drafts, new(MockStudyRepo))
		payload := []byte(`{"num_elements":4,"tasks_per_consumer":6,
			"number_of_respondents":5,"min_active_elements":2,"max_active_elements":3}`)
		saved, nextStep, err := svc.SaveStep("u1", "2c", payload)
		require.NoError(t, err)
		assert.Equal(t, "3a", nextStep)

		var params models.Step2cParameters
		ok, err := saved.DecodeStep("2c", &params)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 30, params.TotalTasks)
	})

	t.Run("rejects max active elements above element count on 2c", func(t *testing.T) {
		draft := draftWithSteps(t, "u1", "1a", "1b", "1c", "2a", "2b")
		drafts := new(MockDraftRepo)
		drafts.On("GetActiveDraft", "u1").Return(draft, nil)

		svc := newDraftService(drafts, new(MockStudyRepo))
		payload := []byte(`{"num_elements":4,"tasks_per_consumer":6,
			"number_of_respondents":5,"min_active_elements":2,"max_active_elements":9}`)
		_, _, err := svc.SaveStep("u1", "2c", payload)

		assert.ErrorIs(t, err, ErrInvalidStepPayload)
	})
}

func TestDraftService_GenerateMatrix(t *testing.T) {
	t.Run("builds matrix from stored parameters", func(t *testing.T) {
		draft := draftWithSteps(t, "u1", "1a", "1b", "1c", "2a", "2b", "2c")
		drafts := new(MockDraftRepo)
		drafts.On("GetActiveDraft", "u1").Return(draft, nil)
		drafts.On("UpdateDraft", draft).Return(nil)

		svc := newDraftService(drafts, new(MockStudyRepo))
		saved, matrix, summary, err := svc.GenerateMatrix("u1")

		require.NoError(t, err)
		assert.Len(t, matrix, 5)
		for r := 0; r < 5; r++ {
			assert.Len(t, matrix[models.RespondentKey(r)], 6)
		}
		assert.Equal(t, 30, summary.TotalTasks)
		assert.LessOrEqual(t, summary.MaxExposure-summary.MinExposure, 1)
		assert.Equal(t, "3b", saved.CurrentStep)
		assert.True(t, saved.HasStep("3a"))
	})

	t.Run("requires earlier steps", func(t *testing.T) {
		draft := draftWithSteps(t, "u1", "1a", "1b")
		drafts := new(MockDraftRepo)
		drafts.On("GetActiveDraft", "u1").Return(draft, nil)

		svc := newDraftService(drafts, new(MockStudyRepo))
		_, _, _, err := svc.GenerateMatrix("u1")

		assert.ErrorIs(t, err, ErrStepLocked)
	})
}

func TestDraftService_Launch(t *testing.T) {
	t.Run("assembles active study and consumes draft", func(t *testing.T) {
		draft := draftWithSteps(t, "u1", "1a", "1b", "1c", "2a", "2b", "2c", "3a")
		drafts := new(MockDraftRepo)
		drafts.On("GetActiveDraft", "u1").Return(draft, nil)
		drafts.On("UpdateDraft", draft).Return(nil)
		drafts.On("DeleteDraft", "d1").Return(nil)

		var createdStudy *models.Study
		studies := new(MockStudyRepo)
		studies.On("CreateStudy", mock.AnythingOfType("*models.Study")).
			Run(func(args mock.Arguments) {
				createdStudy = args.Get(0).(*models.Study)
			}).Return(nil)

		svc := newDraftService(drafts, studies)
		study, err := svc.Launch("u1", "http://localhost:3000/")

		require.NoError(t, err)
		require.Same(t, createdStudy, study)
		assert.Equal(t, models.StudyStatusActive, study.Status)
		assert.Equal(t, "u1", study.CreatorID)
		assert.Equal(t, "Packaging study", study.Title)
		assert.Len(t, study.ShareToken, 32)
		assert.Equal(t, "http://localhost:3000/s/"+study.ShareToken, study.ShareURL)
		assert.Len(t, study.Elements, 4)
		assert.Len(t, study.Tasks, 5)
		assert.True(t, draft.IsComplete)
		drafts.AssertExpectations(t)
	})

	t.Run("rejects launch before matrix generation", func(t *testing.T) {
		draft := draftWithSteps(t, "u1", "1a", "1b", "1c", "2a", "2b", "2c")
		drafts := new(MockDraftRepo)
		drafts.On("GetActiveDraft", "u1").Return(draft, nil)

		svc := newDraftService(drafts, new(MockStudyRepo))
		_, err := svc.Launch("u1", "http://localhost:3000")

		assert.ErrorIs(t, err, ErrStepLocked)
	})
}

func TestDraftService_Status(t *testing.T) {
	t.Run("reports no draft", func(t *testing.T) {
		drafts := new(MockDraftRepo)
		drafts.On("GetActiveDraft", "u1").Return(nil, nil)

		svc := newDraftService(drafts, new(MockStudyRepo))
		status, err := svc.Status("u1")

		require.NoError(t, err)
		assert.Equal(t, false, status["draft_exists"])
	})

	t.Run("reports per-step completion", func(t *testing.T) {
		draft := draftWithSteps(t, "u1", "1a", "1b")
		draft.CurrentStep = "1c"
		drafts := new(MockDraftRepo)
		drafts.On("GetActiveDraft", "u1").Return(draft, nil)

		svc := newDraftService(drafts, new(MockStudyRepo))
		status, err := svc.Status("u1")

		require.NoError(t, err)
		assert.Equal(t, true, status["draft_exists"])
		assert.Equal(t, "1c", status["current_step"])
		steps := status["steps"].(map[string]bool)
		assert.True(t, steps["1a"])
		assert.False(t, steps["2c"])
	})
}
