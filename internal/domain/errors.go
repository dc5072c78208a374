package domain

import "errors"

var (
	// ErrReadFailure marks a transport or decode error on a ledger read.
	ErrReadFailure = errors.New("ledger read failure")

	// ErrNoReferencePrice is returned when the price source has no usable price.
	ErrNoReferencePrice = errors.New("no reference price")

	// ErrNotFound is returned by storage lookups that match nothing.
	ErrNotFound = errors.New("not found")
)
