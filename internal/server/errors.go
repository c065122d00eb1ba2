package server

import "fmt"

// ErrProfileNotFound indicates no stored profile exists for the user
type ErrProfileNotFound struct {
	UserID string
}

func (e *ErrProfileNotFound) Error() string {
	return fmt.Sprintf("profile not found: %s", e.UserID)
}

// ErrPersistenceDisabled indicates the server runs without a database
type ErrPersistenceDisabled struct{}

func (e *ErrPersistenceDisabled) Error() string {
	return "profile persistence is not configured"
}
