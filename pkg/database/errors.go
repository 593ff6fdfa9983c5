// Copyright 2026 TRIP Verifier Project
//
// Package database provides sentinel errors for repository operations.

package database

import "errors"

var (
	// ErrNotFound is returned when a requested entity is not found.
	ErrNotFound = errors.New("entity not found")

	// ErrChainHeadNotFound is returned when an identity has no recorded chain head.
	ErrChainHeadNotFound = errors.New("chain head not found")

	// ErrProfileNotFound is returned when an identity has no mobility profile.
	ErrProfileNotFound = errors.New("mobility profile not found")

	// ErrEpochNotFound is returned when a requested epoch record is not found.
	ErrEpochNotFound = errors.New("epoch not found")

	// ErrChallengeNotFound is returned when a challenge record is not found.
	ErrChallengeNotFound = errors.New("challenge not found")

	// ErrCertificateNotFound is returned when a certificate record is not found.
	ErrCertificateNotFound = errors.New("certificate not found")
)
