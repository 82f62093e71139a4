package services

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"iped-studio/models"
)

// AuthService handles researcher registration, login and API tokens.
type AuthService struct {
	repo      UserRepository
	sessions  SessionStore
	jwtSecret string
}

func NewAuthService(repo UserRepository, sessions SessionStore, jwtSecret string) *AuthService {
	return &AuthService{
		repo:      repo,
		sessions:  sessions,
		jwtSecret: jwtSecret,
	}
}

// Register creates a researcher account with a bcrypt password hash.
func (as *AuthService) Register(req models.RegisterRequest) (*models.User, error) {
	existing, err := as.repo.GetUserByEmail(req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.New().String(),
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
		LastLoginAt:  time.Now(),
	}
	if err := as.repo.CreateUser(user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// Login verifies credentials and opens a researcher session.
func (as *AuthService) Login(req models.LoginRequest) (*models.Session, error) {
	user, err := as.repo.GetUserByEmail(req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := as.repo.UpdateLastLogin(user.ID); err != nil {
		return nil, fmt.Errorf("failed to update last login: %w", err)
	}

	return as.sessions.Create(user.ID, user.Email, user.Username)
}

// Logout discards the researcher session.
func (as *AuthService) Logout(sessionID string) {
	as.sessions.Delete(sessionID)
}

// GetSessionInfo resolves a session cookie to its session.
func (as *AuthService) GetSessionInfo(sessionID string) (*models.Session, error) {
	sess, err := as.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// APIClaims are the claims minted into export API tokens.
type APIClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// GenerateAPIToken mints a 24-hour Bearer token for the export API.
func (as *AuthService) GenerateAPIToken(userID, email string) (string, error) {
	claims := APIClaims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(as.jwtSecret))
}
