package store

import "errors"

var (
	// ErrNotFound is returned when a record ID does not exist in a collection.
	ErrNotFound = errors.New("record not found")

	// ErrRecordExists is returned when creating a record with an ID already in use.
	ErrRecordExists = errors.New("record already exists")

	// ErrUnknownCollection is returned for a collection that was never registered.
	ErrUnknownCollection = errors.New("unknown collection")

	// ErrCollectionExists is returned when registering a collection name again
	// with a different definition.
	ErrCollectionExists = errors.New("collection already registered with a different definition")

	// ErrInvalidSpec is returned by Register for a definition that cannot be
	// materialized as a table.
	ErrInvalidSpec = errors.New("invalid collection definition")

	// ErrInvalidGroup is returned when group values do not match the
	// collection's group columns.
	ErrInvalidGroup = errors.New("invalid group")

	// ErrCrossGroupSwap is returned when swapping records of different groups.
	ErrCrossGroupSwap = errors.New("cannot swap records in different groups")
)
