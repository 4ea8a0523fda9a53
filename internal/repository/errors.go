package repository

import "errors"

var (
	// ErrAnalysisNotFound indicates the analysis result was not found
	ErrAnalysisNotFound = errors.New("analysis result not found")

	// ErrRepositoryUnavailable indicates history storage is disabled or closed
	ErrRepositoryUnavailable = errors.New("repository unavailable")
)
