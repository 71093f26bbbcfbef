package service

import "errors"

var (
	ErrAccountNotFound = errors.New("trading account not found")
	ErrScanInProgress  = errors.New("scan already running for this date")
	// ErrHalted is reported when an approved order is suppressed by a lock or manual stop.
	ErrHalted = errors.New("account halted before submission")
)
