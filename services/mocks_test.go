package services

import (
	"github.com/stretchr/testify/mock"

	"iped-studio/models"
)

// Shared mock implementations of the repository interfaces, used by the
// service tests in this package.

type MockUserRepo struct {
	mock.Mock
}

var _ UserRepository = (*MockUserRepo)(nil)

func (m *MockUserRepo) CreateUser(user *models.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockUserRepo) GetUserByID(userID string) (*models.User, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepo) GetUserByEmail(email string) (*models.User, error) {
	args := m.Called(email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepo) UpdateLastLogin(userID string) error {
	args := m.Called(userID)
	return args.Error(0)
}

type MockDraftRepo struct {
	mock.Mock
}

var _ DraftRepository = (*MockDraftRepo)(nil)

func (m *MockDraftRepo) GetActiveDraft(userID string) (*models.StudyDraft, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.StudyDraft), args.Error(1)
}

func (m *MockDraftRepo) CreateDraft(draft *models.StudyDraft) error {
	args := m.Called(draft)
	return args.Error(0)
}

func (m *MockDraftRepo) UpdateDraft(draft *models.StudyDraft) error {
	args := m.Called(draft)
	return args.Error(0)
}

func (m *MockDraftRepo) DeleteDraft(draftID string) error {
	args := m.Called(draftID)
	return args.Error(0)
}

type MockStudyRepo struct {
	mock.Mock
}

var _ StudyRepository = (*MockStudyRepo)(nil)

func (m *MockStudyRepo) CreateStudy(study *models.Study) error {
	args := m.Called(study)
	return args.Error(0)
}

func (m *MockStudyRepo) GetStudyByID(studyID string) (*models.Study, error) {
	args := m.Called(studyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Study), args.Error(1)
}

func (m *MockStudyRepo) GetStudyByShareToken(shareToken string) (*models.Study, error) {
	args := m.Called(shareToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Study), args.Error(1)
}

func (m *MockStudyRepo) GetStudiesByCreator(creatorID string) ([]models.Study, error) {
	args := m.Called(creatorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Study), args.Error(1)
}

func (m *MockStudyRepo) UpdateStudyStatus(studyID, status string) error {
	args := m.Called(studyID, status)
	return args.Error(0)
}

func (m *MockStudyRepo) DeleteStudy(studyID string) error {
	args := m.Called(studyID)
	return args.Error(0)
}

func (m *MockStudyRepo) IncrementTotalResponses(studyID string) error {
	args := m.Called(studyID)
	return args.Error(0)
}

func (m *MockStudyRepo) IncrementCompletedResponses(studyID string) error {
	args := m.Called(studyID)
	return args.Error(0)
}

func (m *MockStudyRepo) IncrementAbandonedResponses(studyID string) error {
	args := m.Called(studyID)
	return args.Error(0)
}

type MockResponseRepo struct {
	mock.Mock
}

var _ ResponseRepository = (*MockResponseRepo)(nil)

func (m *MockResponseRepo) CreateResponse(resp *models.StudyResponse) error {
	args := m.Called(resp)
	return args.Error(0)
}

func (m *MockResponseRepo) GetResponseBySessionID(sessionID string) (*models.StudyResponse, error) {
	args := m.Called(sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.StudyResponse), args.Error(1)
}

func (m *MockResponseRepo) UpdateResponse(resp *models.StudyResponse) error {
	args := m.Called(resp)
	return args.Error(0)
}

func (m *MockResponseRepo) GetResponsesByStudy(studyID string) ([]models.StudyResponse, error) {
	args := m.Called(studyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.StudyResponse), args.Error(1)
}

func (m *MockResponseRepo) GetTakenRespondentIDs(studyID string) ([]int, error) {
	args := m.Called(studyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int), args.Error(1)
}

func (m *MockResponseRepo) CreateTaskSession(ts *models.TaskSession) error {
	args := m.Called(ts)
	return args.Error(0)
}

func (m *MockResponseRepo) UpdateTaskSession(ts *models.TaskSession) error {
	args := m.Called(ts)
	return args.Error(0)
}

func (m *MockResponseRepo) GetTaskSession(sessionID, taskID string) (*models.TaskSession, error) {
	args := m.Called(sessionID, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TaskSession), args.Error(1)
}

func (m *MockResponseRepo) GetLatestTaskSession(sessionID string) (*models.TaskSession, error) {
	args := m.Called(sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TaskSession), args.Error(1)
}

type MockSessionStore struct {
	mock.Mock
}

var _ SessionStore = (*MockSessionStore)(nil)

func (m *MockSessionStore) Create(userID, email, username string) (*models.Session, error) {
	args := m.Called(userID, email, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *MockSessionStore) Get(sessionID string) (*models.Session, error) {
	args := m.Called(sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *MockSessionStore) Delete(sessionID string) error {
	args := m.Called(sessionID)
	return args.Error(0)
}
