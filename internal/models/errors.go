package models

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("not the owner of this resource")
	ErrInvalidInput = errors.New("invalid input")

	// ErrAccessDenied: the test targets a different tier.
	ErrAccessDenied = errors.New("access denied for tier")
	ErrTestInactive = errors.New("test is not active")

	// ErrDailyAlreadyStarted and ErrAssignmentAlreadyActive are returned
	// together with the existing object.
	ErrDailyAlreadyStarted     = errors.New("daily challenge already started today")
	ErrAssignmentAlreadyActive = errors.New("an assignment is already active")

	// ErrAttemptInProgress: a daily start found an unfinished regular
	// attempt on the same test.
	ErrAttemptInProgress = errors.New("a non-daily attempt on this test is in progress")

	ErrAlreadyCompleted    = errors.New("attempt already completed")
	ErrNotYetCompleted     = errors.New("not yet completed")
	ErrAssignmentCompleted = errors.New("assignment already completed")
	ErrNotEligible         = errors.New("weekly assignments are for free tier only")

	ErrDuplicateEvaluation = errors.New("evaluation already recorded for attempt")
	ErrAlreadyApplied      = errors.New("attempt already applied to progress")

	ErrInvalidQuestionSet = errors.New("malformed question set")
	ErrTransient          = errors.New("temporarily unavailable, retry")
)
