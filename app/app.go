package app

import (
	"log/slog"

	"iped-studio/database"
	"iped-studio/services"
	"iped-studio/session"
	"iped-studio/storage"
	"iped-studio/validator"
)

// App holds all application dependencies
// This struct is the central point for dependency injection
type App struct {
	Repo          *database.Repository
	SessionStore  *session.Store
	Storage       storage.Storage
	Validator     *validator.Validator
	Logger        *slog.Logger
	Auth          *services.AuthService
	Drafts        *services.DraftService
	Studies       *services.StudyService
	Participation *services.ParticipationService
}

// New creates a new App instance with all dependencies
func New(repo *database.Repository, sessionStore *session.Store, store storage.Storage, logger *slog.Logger, jwtSecret string) *App {
	v := validator.New()
	return &App{
		Repo:          repo,
		SessionStore:  sessionStore,
		Storage:       store,
		Validator:     v,
		Logger:        logger,
		Auth:          services.NewAuthService(repo, sessionStore, jwtSecret),
		Drafts:        services.NewDraftService(repo, repo, v),
		Studies:       services.NewStudyService(repo, repo),
		Participation: services.NewParticipationService(repo, repo),
	}
}
