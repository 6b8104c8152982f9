package model

import "errors"

// Engine errors. Callers match them with errors.Is.
var (
	ErrInvalidAmount           = errors.New("invalid amount")
	ErrNoRouteFound            = errors.New("no route found")
	ErrNoSignerAvailable       = errors.New("no signer available")
	ErrApprovalFailed          = errors.New("approval failed")
	ErrSwapExecutionFailed     = errors.New("swap execution failed")
	ErrQuoteExpired            = errors.New("quote expired")
	ErrPriceHistoryUnavailable = errors.New("price history unavailable")
	ErrIndexerUnavailable      = errors.New("indexer unavailable")

	// ErrInsufficientHistory is returned when a price series is too short for a strategy.
	ErrInsufficientHistory = errors.New("insufficient price history")
)
