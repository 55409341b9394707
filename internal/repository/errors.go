package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrVersionConflict is returned when a conditional write lost a race
	// with another writer of the same record.
	ErrVersionConflict = errors.New("entity was modified concurrently")

	// ErrDuplicate is returned when a uniqueness rule rejects an insert.
	ErrDuplicate = errors.New("entity already exists")
)
