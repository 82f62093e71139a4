package services

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"iped-studio/models"
)

// ParticipationService drives the anonymous respondent flow from the
// share link to study completion.
type ParticipationService struct {
	studies   StudyRepository
	responses ResponseRepository
}

func NewParticipationService(studies StudyRepository, responses ResponseRepository) *ParticipationService {
	return &ParticipationService{
		studies:   studies,
		responses: responses,
	}
}

// GetStudyByToken resolves a share token. The caller decides how to
// present inactive studies.
func (ps *ParticipationService) GetStudyByToken(shareToken string) (*models.Study, error) {
	study, err := ps.studies.GetStudyByShareToken(shareToken)
	if err != nil {
		return nil, fmt.Errorf("failed to look up study: %w", err)
	}
	if study == nil {
		return nil, ErrStudyNotFound
	}
	return study, nil
}

// Start assigns the respondent a free slot and opens a response. The
// slot count is capped at the configured number of respondents;
// abandoned slots are handed out again.
func (ps *ParticipationService) Start(shareToken, ipAddress, userAgent string) (*models.StudyResponse, error) {
	study, err := ps.GetStudyByToken(shareToken)
	if err != nil {
		return nil, err
	}
	if study.Status != models.StudyStatusActive {
		return nil, ErrStudyInactive
	}

	respondentID, err := ps.nextRespondentID(study)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	resp := &models.StudyResponse{
		ID:                 uuid.New().String(),
		StudyID:            study.ID,
		SessionID:          uuid.New().String(),
		RespondentID:       respondentID,
		Status:             models.ResponseStatusInProgress,
		TotalTasksAssigned: study.IPEDParameters.TasksPerConsumer,
		SessionStartTime:   now,
		LastActivity:       now,
		IPAddress:          ipAddress,
		UserAgent:          userAgent,
		CreatedAt:          now,
	}
	if err := ps.responses.CreateResponse(resp); err != nil {
		return nil, fmt.Errorf("failed to create response: %w", err)
	}

	if err := ps.studies.IncrementTotalResponses(study.ID); err != nil {
		return nil, fmt.Errorf("failed to update study counters: %w", err)
	}

	return resp, nil
}

// nextRespondentID finds the lowest free slot in [0, R).
func (ps *ParticipationService) nextRespondentID(study *models.Study) (int, error) {
	taken, err := ps.responses.GetTakenRespondentIDs(study.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to list respondent slots: %w", err)
	}
	sort.Ints(taken)

	next := 0
	for _, id := range taken {
		if id == next {
			next++
		} else if id > next {
			break
		}
	}
	if next >= study.IPEDParameters.NumberOfRespondents {
		return 0, ErrStudyFull
	}
	return next, nil
}

// GetResponse resolves an in-progress respondent session.
func (ps *ParticipationService) GetResponse(sessionID string) (*models.StudyResponse, error) {
	if sessionID == "" {
		return nil, ErrNoActiveSession
	}
	resp, err := ps.responses.GetResponseBySessionID(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load response: %w", err)
	}
	if resp == nil {
		return nil, ErrResponseNotFound
	}
	return resp, nil
}

// SubmitPersonalInfo stores optional demographics on the response.
func (ps *ParticipationService) SubmitPersonalInfo(sessionID string, req models.SubmitPersonalInfoRequest) error {
	resp, err := ps.GetResponse(sessionID)
	if err != nil {
		return err
	}

	resp.PersonalInfo = &models.PersonalInfo{
		Age:       req.Age,
		Gender:    req.Gender,
		Education: req.Education,
	}
	resp.LastActivity = time.Now()
	return ps.responses.UpdateResponse(resp)
}

// SubmitClassification appends classification answers.
func (ps *ParticipationService) SubmitClassification(sessionID string, req models.SubmitClassificationRequest) error {
	resp, err := ps.GetResponse(sessionID)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, a := range req.Answers {
		resp.ClassificationAnswers = append(resp.ClassificationAnswers, models.ClassificationAnswer{
			QuestionID:       a.QuestionID,
			QuestionText:     a.QuestionText,
			QuestionType:     a.QuestionType,
			Answer:           a.Answer,
			AnswerTimestamp:  now,
			TimeSpentSeconds: a.TimeSpent,
		})
	}
	resp.LastActivity = now
	return ps.responses.UpdateResponse(resp)
}

// TaskView is everything the task page needs to render one task.
type TaskView struct {
	Study           *models.Study
	Response        *models.StudyResponse
	Task            models.TaskCell
	VisibleElements []models.StudyElement
	TaskIndex       int
	TotalTasks      int
}

// GetTask resolves a task by index for the respondent's assigned slot.
func (ps *ParticipationService) GetTask(shareToken, sessionID string, taskIndex int) (*TaskView, error) {
	study, err := ps.GetStudyByToken(shareToken)
	if err != nil {
		return nil, err
	}
	if study.Status != models.StudyStatusActive {
		return nil, ErrStudyInactive
	}

	resp, err := ps.GetResponse(sessionID)
	if err != nil {
		return nil, err
	}

	tasks := study.RespondentTasks(resp.RespondentID)
	if taskIndex < 0 || taskIndex >= len(tasks) {
		return nil, ErrTaskIndexInvalid
	}
	task := tasks[taskIndex]

	visible := make([]models.StudyElement, 0, len(study.Elements))
	for _, el := range study.Elements {
		if task.ElementsShown[el.ElementID] == 1 {
			visible = append(visible, el)
		}
	}

	return &TaskView{
		Study:           study,
		Response:        resp,
		Task:            task,
		VisibleElements: visible,
		TaskIndex:       taskIndex,
		TotalTasks:      len(tasks),
	}, nil
}

// StartTask opens (or reuses) the task session for timing and bumps the
// respondent's position.
func (ps *ParticipationService) StartTask(shareToken, sessionID string, taskIndex int) (*models.TaskSession, error) {
	view, err := ps.GetTask(shareToken, sessionID, taskIndex)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	ts, err := ps.responses.GetTaskSession(sessionID, view.Task.TaskID)
	if err != nil {
		return nil, fmt.Errorf("failed to load task session: %w", err)
	}
	if ts == nil {
		ts = &models.TaskSession{
			ID:              uuid.New().String(),
			SessionID:       sessionID,
			TaskID:          view.Task.TaskID,
			StudyResponseID: view.Response.ID,
			CreatedAt:       now,
		}
		ts.AddPageTransition("task_start", now)
		if err := ps.responses.CreateTaskSession(ts); err != nil {
			return nil, fmt.Errorf("failed to create task session: %w", err)
		}
	}

	view.Response.CurrentTaskIndex = taskIndex
	view.Response.LastActivity = now
	if err := ps.responses.UpdateResponse(view.Response); err != nil {
		return nil, fmt.Errorf("failed to update response: %w", err)
	}

	return ts, nil
}

// CompleteTaskResult reports where the respondent goes next.
type CompleteTaskResult struct {
	StudyCompleted bool
	NextTaskIndex  int
}

// CompleteTask records the rating and interactions for a task. When
// the final assigned task completes, the whole response completes and
// the study counter is bumped exactly once.
func (ps *ParticipationService) CompleteTask(shareToken, sessionID string, taskIndex int, req models.CompleteTaskRequest) (*CompleteTaskResult, error) {
	view, err := ps.GetTask(shareToken, sessionID, taskIndex)
	if err != nil {
		return nil, err
	}
	resp := view.Response
	study := view.Study

	if resp.Status != models.ResponseStatusInProgress {
		return nil, ErrResponseFinished
	}
	if resp.CompletedTasksCount >= resp.TotalTasksAssigned {
		return nil, ErrResponseFinished
	}
	if req.Rating < study.RatingScale.MinValue || req.Rating > study.RatingScale.MaxValue {
		return nil, ErrRatingOutOfRange
	}

	startTime, err := time.Parse(time.RFC3339, req.TaskStartTime)
	if err != nil {
		return nil, fmt.Errorf("%w: bad task_start_time: %v", ErrInvalidStepPayload, err)
	}

	now := time.Now()
	completed := models.CompletedTask{
		TaskID:              view.Task.TaskID,
		RespondentID:        resp.RespondentID,
		TaskIndex:           taskIndex,
		ElementsShownInTask: view.Task.ElementsShown,
		TaskStartTime:       startTime,
		TaskCompletionTime:  now,
		TaskDurationSeconds: now.Sub(startTime).Seconds(),
		RatingGiven:         req.Rating,
		RatingTimestamp:     now,
	}
	for _, in := range req.ElementInteractions {
		// Interactions for elements the study does not contain are
		// dropped rather than polluting the export.
		if study.ElementByID(in.ElementID) == nil {
			continue
		}
		interaction := models.ElementInteraction{
			ElementID:       in.ElementID,
			ViewTimeSeconds: in.ViewTime,
			HoverCount:      in.HoverCount,
			ClickCount:      in.ClickCount,
		}
		if t, err := time.Parse(time.RFC3339, in.FirstViewTime); err == nil {
			interaction.FirstViewTime = &t
		}
		if t, err := time.Parse(time.RFC3339, in.LastViewTime); err == nil {
			interaction.LastViewTime = &t
		}
		completed.ElementInteractions = append(completed.ElementInteractions, interaction)
	}

	resp.CompletedTasks = append(resp.CompletedTasks, completed)
	resp.CompletedTasksCount++
	resp.LastActivity = now

	result := &CompleteTaskResult{NextTaskIndex: taskIndex + 1}
	if resp.CompletedTasksCount >= resp.TotalTasksAssigned || taskIndex+1 >= view.TotalTasks {
		resp.MarkCompleted(now)
		result.StudyCompleted = true
	}

	if err := ps.responses.UpdateResponse(resp); err != nil {
		return nil, fmt.Errorf("failed to update response: %w", err)
	}

	if ts, err := ps.responses.GetTaskSession(sessionID, view.Task.TaskID); err == nil && ts != nil {
		ts.Completed = true
		ts.CompletedAt = &now
		if err := ps.responses.UpdateTaskSession(ts); err != nil {
			return nil, fmt.Errorf("failed to update task session: %w", err)
		}
	}

	if result.StudyCompleted {
		if err := ps.studies.IncrementCompletedResponses(study.ID); err != nil {
			return nil, fmt.Errorf("failed to update study counters: %w", err)
		}
	}

	return result, nil
}

// Abandon marks the response abandoned with a reason.
func (ps *ParticipationService) Abandon(sessionID, reason string) error {
	resp, err := ps.GetResponse(sessionID)
	if err != nil {
		return err
	}
	if resp.Status != models.ResponseStatusInProgress {
		return ErrResponseFinished
	}

	if reason == "" {
		reason = "Respondent abandoned study"
	}
	resp.MarkAbandoned(reason, time.Now())
	if err := ps.responses.UpdateResponse(resp); err != nil {
		return fmt.Errorf("failed to update response: %w", err)
	}

	return ps.studies.IncrementAbandonedResponses(resp.StudyID)
}

// TrackInteraction appends an element event to the respondent's latest
// task session.
func (ps *ParticipationService) TrackInteraction(sessionID string, req models.TrackInteractionRequest) error {
	if sessionID == "" {
		return ErrNoActiveSession
	}

	ts, err := ps.responses.GetLatestTaskSession(sessionID)
	if err != nil {
		return fmt.Errorf("failed to load task session: %w", err)
	}
	if ts == nil {
		// Nothing to attach the event to; drop it silently like the
		// rest of the tracking path.
		return nil
	}

	ts.AddElementInteraction(req.ElementID, req.Type, req.Duration, time.Now())
	return ps.responses.UpdateTaskSession(ts)
}
