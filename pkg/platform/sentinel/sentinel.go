package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and capability clients
// return these (optionally wrapped) so services can translate them into
// domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity or object does not exist in the store/bucket
// - ErrConflict: a conditional write lost to a concurrent writer
// - ErrNoFace: the recognition capability found zero faces in an image
// - ErrExpired: session or token past its validity window
// - ErrInvalidState: entity in wrong state for requested operation
// - ErrUnavailable: service or resource temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrNoFace       = errors.New("no face detected")
	ErrExpired      = errors.New("expired")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
