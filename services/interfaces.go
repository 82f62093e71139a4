package services

import "iped-studio/models"

// UserRepository defines the interface for researcher account data access
type UserRepository interface {
	CreateUser(user *models.User) error
	GetUserByID(userID string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	UpdateLastLogin(userID string) error
}

// DraftRepository defines the interface for wizard draft data access
type DraftRepository interface {
	GetActiveDraft(userID string) (*models.StudyDraft, error)
	CreateDraft(draft *models.StudyDraft) error
	UpdateDraft(draft *models.StudyDraft) error
	DeleteDraft(draftID string) error
}

// StudyRepository defines the interface for study data access
type StudyRepository interface {
	CreateStudy(study *models.Study) error
	GetStudyByID(studyID string) (*models.Study, error)
	GetStudyByShareToken(shareToken string) (*models.Study, error)
	GetStudiesByCreator(creatorID string) ([]models.Study, error)
	UpdateStudyStatus(studyID, status string) error
	DeleteStudy(studyID string) error
	IncrementTotalResponses(studyID string) error
	IncrementCompletedResponses(studyID string) error
	IncrementAbandonedResponses(studyID string) error
}

// ResponseRepository defines the interface for respondent data access
type ResponseRepository interface {
	CreateResponse(resp *models.StudyResponse) error
	GetResponseBySessionID(sessionID string) (*models.StudyResponse, error)
	UpdateResponse(resp *models.StudyResponse) error
	GetResponsesByStudy(studyID string) ([]models.StudyResponse, error)
	GetTakenRespondentIDs(studyID string) ([]int, error)
	CreateTaskSession(ts *models.TaskSession) error
	UpdateTaskSession(ts *models.TaskSession) error
	GetTaskSession(sessionID, taskID string) (*models.TaskSession, error)
	GetLatestTaskSession(sessionID string) (*models.TaskSession, error)
}

// SessionStore defines the interface for researcher session management
type SessionStore interface {
	Create(userID, email, username string) (*models.Session, error)
	Get(sessionID string) (*models.Session, error)
	Delete(sessionID string) error
}
