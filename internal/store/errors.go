package store

import "errors"

// Sentinel errors returned (optionally wrapped) by store implementations.
// Services translate them into domain errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrNotConnected = errors.New("store: not connected")
)
