package repository

import "errors"

var (
	ErrAlreadyExists = errors.New("error already exists")
	ErrNotFound      = errors.New("error not found")
	// ErrConditionNotMet is returned by guarded updates whose WHERE predicate rejected the row.
	ErrConditionNotMet = errors.New("error condition not met")
)
