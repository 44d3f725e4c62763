package store

import "errors"

// ErrNotFound is returned when a requested record does not exist in the store.
// It is never used for infrastructure failures: a store outage must stay
// distinguishable from "token doesn't exist".
var ErrNotFound = errors.New("not found")
