package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrOperationFailed = errors.New("operation failed")
	ErrReadDatabaseRow = errors.New("failed to read database row")

	// Billing errors
	ErrNoBillingAccount = errors.New("no active subscription")
	ErrPriceRequired    = errors.New("either a price id or an amount is required")
	ErrNotConfigured    = errors.New("provider is not configured")
)
