package domain

import "errors"

var (
	// ErrInvalidSession is returned when a join code does not map to a live session.
	ErrInvalidSession = errors.New("invalid-session")
	// ErrNotPermitted is returned when a connection sends an event its role may not issue.
	ErrNotPermitted = errors.New("action-not-permitted")
	// ErrInvalidSubmission covers malformed or empty payloads, e.g. finalizing zero choices.
	ErrInvalidSubmission = errors.New("invalid-submission")
	// ErrUpstreamUnavailable indicates a collaborating repository call failed.
	ErrUpstreamUnavailable = errors.New("upstream-unavailable")
	// ErrNameUnavailable is returned when a join name is reserved or already taken.
	ErrNameUnavailable = errors.New("name-unavailable")
	// ErrGameUnderway is returned when a player tries to join after the lobby closed.
	ErrGameUnderway = errors.New("game-underway")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
)
