package core

import (
	"fmt"

	"culturecore/pkg/domain"
)

// RepositoryError aliases domain.RepositoryError: a storage backend failure
// surfaced at the persistent-store boundary.
type RepositoryError = domain.RepositoryError

// ValidationError reports a missing or malformed reference supplied by the caller.
type ValidationError struct {
	Entity EntityType
	ID     string
	Reason string
}

func (e ValidationError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s: %s", e.Entity, e.Reason)
	}
	return fmt.Sprintf("%s %s: %s", e.Entity, e.ID, e.Reason)
}

// ConflictError reports an attempt to transition an entity out of order or
// out of a terminal state.
type ConflictError struct {
	Entity EntityType
	ID     string
	Reason string
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Entity, e.ID, e.Reason)
}

// ErrNotFound is returned when the entity an operation targets does not exist.
// Bad references inside an otherwise valid request are a ValidationError
// instead.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func notFound(entity EntityType, id string) error {
	return ErrNotFound{Entity: entity, ID: id}
}
