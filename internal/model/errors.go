package model

import "errors"

// Common errors used across the application
var (
	// Session errors
	ErrSessionNotFound = errors.New("session not found")
	ErrPlayerOffline   = errors.New("player is offline")

	// Repository errors
	ErrRepositoryNotReady = errors.New("repository not initialized")
)
