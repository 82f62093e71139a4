package services

import "errors"

// Common service-level errors
var (
	// Auth errors
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrSessionNotFound    = errors.New("session not found")

	// Draft errors
	ErrUnknownStep        = errors.New("unknown wizard step")
	ErrInvalidStepPayload = errors.New("invalid step payload")
	ErrStepLocked         = errors.New("previous steps must be completed first")
	ErrDraftNotFound      = errors.New("draft not found")
	ErrDraftIncomplete    = errors.New("draft is missing required steps")

	// Study errors
	ErrStudyNotFound = errors.New("study not found")
	ErrStudyInactive = errors.New("study is not active")
	ErrStudyFull     = errors.New("study is full")

	// Participation errors
	ErrResponseNotFound = errors.New("study response not found")
	ErrNoActiveSession  = errors.New("no active participation session")
	ErrTaskIndexInvalid = errors.New("invalid task index")
	ErrRatingOutOfRange = errors.New("rating is outside the study's scale")
	ErrResponseFinished = errors.New("response is already finished")
)
