package memory

import "errors"

var (
	errConcurrencyConflict = errors.New("events matching the consistency boundary already exist")
	errDuplicateID         = errors.New("event id already exists in the store")
)
